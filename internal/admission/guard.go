// Package admission decides whether a wager may proceed to settlement.
package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/pkg/apperr"
)

// Guard validates bet amounts and enforces a per-user, per-scope cooldown.
type Guard struct {
	limits   *LimitsCache
	store    CooldownStore
	cooldown time.Duration
}

// NewGuard creates a Guard.
func NewGuard(limits *LimitsCache, store CooldownStore, cooldown time.Duration) *Guard {
	return &Guard{limits: limits, store: store, cooldown: cooldown}
}

// Key returns the cooldown key for a user in a scope.
func Key(scope string, userID int64) string {
	return fmt.Sprintf("%s:%d", scope, userID)
}

// Admit checks amount against the bet range and the cooldown. On success the
// cooldown is stamped before returning, so a wager that later fails for lack
// of funds still counts against the rate limit.
//
// Rejections are *apperr.ValidationError or *apperr.CooldownError and change
// nothing.
func (g *Guard) Admit(ctx context.Context, userID, amount int64, scope string) error {
	if amount <= 0 {
		return apperr.Invalid("bet", "bet must be a positive integer")
	}

	limits := g.limits.Get(ctx)
	if amount < limits.MinBet || amount > limits.MaxBet {
		return apperr.Invalid("bet", "bet must be between %d and %d", limits.MinBet, limits.MaxBet)
	}

	if g.cooldown <= 0 {
		return nil
	}

	remaining, ok, err := g.store.Acquire(ctx, Key(scope, userID), g.cooldown)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug().Int64("user_id", userID).Str("scope", scope).Dur("remaining", remaining).Msg("Wager rejected by cooldown")
		return &apperr.CooldownError{Remaining: remaining}
	}
	return nil
}
