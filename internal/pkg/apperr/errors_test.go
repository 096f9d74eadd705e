package apperr

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", Invalid("bet", "bet must be between %d and %d", 10, 100), "❌ bet must be between 10 and 100"},
		{"wrapped validation", fmt.Errorf("admit: %w", Invalid("mines", "too many")), "❌ too many"},
		{"insufficient", fmt.Errorf("settle: %w", ErrInsufficientFunds), "❌ Insufficient balance."},
		{"cooldown", &CooldownError{Remaining: 1500 * time.Millisecond}, "⏳ Wait 2 seconds before the next bet."},
		{"conflict is generic", fmt.Errorf("tx: %w", ErrConflict), "❌ Something went wrong, please try again."},
		{"round active", ErrRoundActive, "⚠️ You already have an active round."},
		{"unknown user", fmt.Errorf("wallet: %w", ErrUserNotFound), "👋 Send /start to open an account first."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestCooldownError_Seconds(t *testing.T) {
	assert.Equal(t, 4, (&CooldownError{Remaining: 4 * time.Second}).Seconds())
	assert.Equal(t, 1, (&CooldownError{Remaining: time.Millisecond}).Seconds())
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(fmt.Errorf("x: %w", Invalid("cell", "out of range"))))
	assert.False(t, IsValidation(ErrInsufficientFunds))
}
