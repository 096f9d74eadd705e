package crash

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/fairness"
)

// run drives one round until it ends or the table closes.
func (t *Table) run(r *Round) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-t.quit:
			return
		case <-ticker.C:
		}
		if !t.step(r) {
			return
		}
	}
}

// step performs one tick and reports whether the loop should continue.
func (t *Table) step(r *Round) bool {
	if r.ended.Load() {
		return false
	}

	now := t.clock.Now()
	raw := t.engine.Multiplier(now.Sub(r.StartedAt))
	if fairness.Reached(raw, r.crashAt) {
		t.crash(r, true)
		return false
	}

	if now.Sub(r.lastDisplay) < t.opts.DisplayInterval {
		return true
	}
	r.lastDisplay = now

	shown := fairness.CashOutMultiplier(raw)
	if shown.Equal(r.lastShown) || t.display == nil {
		return true
	}
	r.lastShown = shown

	ctx, cancel := context.WithTimeout(context.Background(), t.opts.DisplayInterval)
	defer cancel()
	if err := t.display.Update(ctx, r, shown); err != nil {
		log.Debug().Err(err).Str("round_id", r.ID).Msg("Crash display update failed")
	}
	return true
}
