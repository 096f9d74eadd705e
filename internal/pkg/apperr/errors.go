// Package apperr defines the error taxonomy shared by the wagering core.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Callers branch on them with errors.Is.
var (
	// ErrInsufficientFunds is a normal negative result of a debit, not a failure.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrConflict is returned when a storage transaction kept conflicting after retries.
	ErrConflict = errors.New("concurrent modification")
	// ErrInvariant marks a state that must never happen (ledger mismatch, impossible round).
	ErrInvariant = errors.New("invariant violation")
	// ErrNoActiveRound is returned for actions on a round that does not exist (or already ended).
	ErrNoActiveRound = errors.New("no active round")
	// ErrRoundActive is returned when a user tries to open a second round of the same game.
	ErrRoundActive = errors.New("round already active")
	// ErrUserNotFound is returned when a wallet or user row is missing.
	ErrUserNotFound = errors.New("user not found")
)

// ValidationError is a user input problem. It never has side effects.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// CooldownError is returned by the admission guard when a wager arrives too early.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: %s remaining", e.Remaining)
}

// Seconds returns the remaining cooldown rounded up to whole seconds.
func (e *CooldownError) Seconds() int {
	secs := int(e.Remaining / time.Second)
	if e.Remaining%time.Second != 0 {
		secs++
	}
	return secs
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// UserMessage maps an error to the text shown in chat. Validation, cooldown and
// insufficient funds get a specific message; everything else is generic.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var v *ValidationError
	if errors.As(err, &v) {
		return "❌ " + v.Message
	}

	var c *CooldownError
	if errors.As(err, &c) {
		return fmt.Sprintf("⏳ Wait %d seconds before the next bet.", c.Seconds())
	}

	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "❌ Insufficient balance."
	case errors.Is(err, ErrRoundActive):
		return "⚠️ You already have an active round."
	case errors.Is(err, ErrNoActiveRound):
		return "⚠️ No active round."
	case errors.Is(err, ErrUserNotFound):
		return "👋 Send /start to open an account first."
	}

	return "❌ Something went wrong, please try again."
}
