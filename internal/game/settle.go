package game

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/model"
	"casino-bot/internal/notify"
)

// sideEffectTimeout bounds each post-commit side effect.
const sideEffectTimeout = 10 * time.Second

// Deps are the collaborators a table needs to take stakes and settle rounds.
type Deps struct {
	Guard     Admitter
	Wagers    Wagerer
	Credits   Crediter
	Losses    LossHook
	Publisher notify.Publisher

	// Dispatch runs post-commit side effects. Nil means a new goroutine.
	Dispatch func(fn func())
}

// Stake admits and debits a wager. Nothing is debited when admission fails.
func (d Deps) Stake(ctx context.Context, userID, bet int64, scope string, meta *model.Meta) (*model.Wallet, error) {
	if err := d.Guard.Admit(ctx, userID, bet, scope); err != nil {
		return nil, err
	}
	return d.Wagers.SettleWager(ctx, userID, bet, meta)
}

// AfterSettle fires the referral hook (on a loss) and the channel post for a
// committed settlement. Failures are logged and never surface to the caller.
func (d Deps) AfterSettle(ev notify.Event) {
	run := func() {
		if ev.Outcome == notify.OutcomeLoss && d.Losses != nil {
			ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			if _, err := d.Losses.OnLoss(ctx, ev.UserID, ev.Bet); err != nil {
				log.Warn().Err(err).Int64("user_id", ev.UserID).Str("round_id", ev.RoundID).Msg("Loss hook failed")
			}
			cancel()
		}
		if d.Publisher != nil {
			ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			if err := d.Publisher.Publish(ctx, ev); err != nil {
				log.Warn().Err(err).Int64("user_id", ev.UserID).Str("round_id", ev.RoundID).Msg("Publish failed")
			}
			cancel()
		}
	}

	if d.Dispatch != nil {
		d.Dispatch(run)
		return
	}
	go run()
}
