// Package mines implements the mines game: the player opens cells of a grid
// hiding a chosen number of mines and may cash out after every safe cell.
package mines

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"casino-bot/internal/fairness"
	"casino-bot/internal/game"
	"casino-bot/internal/model"
	"casino-bot/internal/notify"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/pkg/clock"
	"casino-bot/internal/pkg/lock"
)

// Scope is the cooldown scope and ledger game name.
const Scope = "mines"

// Table holds every active mines round, at most one per user.
type Table struct {
	engine *fairness.MinesEngine
	deps   game.Deps
	clock  clock.Clock
	locks  *lock.UserLock
	ttl    time.Duration

	mu     sync.Mutex
	rounds map[int64]*Round
}

// NewTable creates a Table. Rounds idle for ttl are discarded by Sweep.
func NewTable(engine *fairness.MinesEngine, deps game.Deps, clk clock.Clock, ttl time.Duration) *Table {
	if clk == nil {
		clk = clock.System{}
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Table{
		engine: engine,
		deps:   deps,
		clock:  clk,
		locks:  lock.NewUserLock(),
		ttl:    ttl,
		rounds: make(map[int64]*Round),
	}
}

// Name implements game.Game.
func (t *Table) Name() string { return "Mines" }

// Command implements game.Game.
func (t *Table) Command() string { return Scope }

// Description implements game.Game.
func (t *Table) Description() string {
	return "Open cells without hitting a mine. Every safe cell raises the payout."
}

// Usage implements game.Game.
func (t *Table) Usage() string {
	return fmt.Sprintf("/mines <bet> <mines 1-%d>", t.engine.Cells()-1)
}

// Cells returns the grid size in cells.
func (t *Table) Cells() int { return t.engine.Cells() }

// Count returns the number of active rounds.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rounds)
}

func (t *Table) active(userID int64) *Round {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rounds[userID]
}

func (t *Table) remove(r *Round) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rounds[r.UserID] == r {
		delete(t.rounds, r.UserID)
	}
}

// Current returns a view of the user's active round.
func (t *Table) Current(userID int64) (*View, error) {
	var v *View
	err := t.locks.WithLock(userID, func() error {
		r := t.active(userID)
		if r == nil {
			return apperr.ErrNoActiveRound
		}
		v = t.view(r)
		return nil
	})
	return v, err
}

// Start takes the bet and lays out the mines.
func (t *Table) Start(ctx context.Context, userID int64, username string, bet int64, mines int) (*View, error) {
	if !t.engine.ValidMines(mines) {
		return nil, apperr.Invalid("mines", "mine count must be between 1 and %d", t.engine.Cells()-1)
	}

	var v *View
	err := t.locks.WithLock(userID, func() error {
		if t.active(userID) != nil {
			return apperr.ErrRoundActive
		}

		cells, err := t.engine.PlaceMines(mines)
		if err != nil {
			return err
		}
		r := newRound(uuid.NewString(), userID, username, bet, t.engine.Cells(), cells)

		meta := model.NewGameMeta(model.GameMeta{Game: Scope, RoundID: r.ID, Bet: bet, Mines: mines})
		w, err := t.deps.Stake(ctx, userID, bet, Scope, meta)
		if err != nil {
			return err
		}

		r.StartedAt = t.clock.Now()
		r.lastAction = r.StartedAt
		r.state = StateActive

		t.mu.Lock()
		t.rounds[userID] = r
		t.mu.Unlock()

		log.Info().
			Str("round_id", r.ID).
			Int64("user_id", userID).
			Int64("bet", bet).
			Int("mines", mines).
			Msg("Mines round started")

		v = t.view(r)
		v.Balance = w.Spendable
		return nil
	})
	return v, err
}

// Open reveals a cell. A mine ends the round as a loss; opening the last safe
// cell cashes out automatically. Re-opening a cell changes nothing.
func (t *Table) Open(ctx context.Context, userID int64, index int) (*View, error) {
	var v *View
	err := t.locks.WithLock(userID, func() error {
		r := t.active(userID)
		if r == nil || r.state != StateActive {
			return apperr.ErrNoActiveRound
		}
		if r.payoutPending {
			var err error
			v, err = t.cashOut(ctx, r)
			return err
		}
		if index < 0 || index >= len(r.mines) {
			return apperr.Invalid("cell", "cell must be between 0 and %d", len(r.mines)-1)
		}
		if r.opened[index] {
			v = t.view(r)
			return nil
		}

		r.lastAction = t.clock.Now()
		r.opened[index] = true

		if r.mines[index] {
			t.explode(r)
			v = t.view(r)
			v.HitCell = index
			return nil
		}

		r.safeOpened++
		if r.safeOpened == r.safeCells() {
			var err error
			v, err = t.cashOut(ctx, r)
			return err
		}
		v = t.view(r)
		return nil
	})
	return v, err
}

// CashOut pays the current multiplier. At least one safe cell must be open.
func (t *Table) CashOut(ctx context.Context, userID int64) (*View, error) {
	var v *View
	err := t.locks.WithLock(userID, func() error {
		r := t.active(userID)
		if r == nil || r.state != StateActive {
			return apperr.ErrNoActiveRound
		}
		if r.safeOpened < 1 {
			return apperr.Invalid("cash out", "open at least one cell before cashing out")
		}
		var err error
		v, err = t.cashOut(ctx, r)
		return err
	})
	return v, err
}

func (t *Table) explode(r *Round) {
	r.state = StateExploded
	t.remove(r)

	mult := decimal.NewFromInt(1)
	if r.safeOpened > 0 {
		mult, _ = t.engine.Multiplier(r.Mines, r.safeOpened)
	}
	log.Info().
		Str("round_id", r.ID).
		Int64("user_id", r.UserID).
		Int64("bet", r.Bet).
		Int("safe_opened", r.safeOpened).
		Msg("Mines round exploded")

	t.deps.AfterSettle(notify.Event{
		Game: Scope, RoundID: r.ID, UserID: r.UserID, Username: r.Username,
		Bet: r.Bet, Multiplier: mult, Outcome: notify.OutcomeLoss,
	})
}

func (t *Table) cashOut(ctx context.Context, r *Round) (*View, error) {
	mult, err := t.engine.Multiplier(r.Mines, r.safeOpened)
	if err != nil {
		t.remove(r)
		r.state = StateExpired
		log.Error().Err(err).Str("round_id", r.ID).Int64("user_id", r.UserID).Msg("Mines round in impossible state")
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvariant, err)
	}

	payout := fairness.Payout(r.Bet, mult)
	meta := model.NewGameMeta(model.GameMeta{
		Game: Scope, RoundID: r.ID, Bet: r.Bet, Mines: r.Mines,
		SafeOpened: r.safeOpened, Multiplier: mult.StringFixed(fairness.Places),
	})

	w, err := t.deps.Credits.Credit(context.WithoutCancel(ctx), r.UserID, payout, model.EntryWin, meta)
	if err != nil {
		log.Error().Err(err).
			Str("round_id", r.ID).
			Int64("user_id", r.UserID).
			Int64("bet", r.Bet).
			Str("multiplier", mult.StringFixed(fairness.Places)).
			Int64("payout", payout).
			Msg("Failed to credit mines payout, kept for retry")
		r.payoutPending = true
		return nil, fmt.Errorf("failed to credit payout: %w", err)
	}

	r.payoutPending = false
	r.state = StateCashedOut
	t.remove(r)

	log.Info().
		Str("round_id", r.ID).
		Int64("user_id", r.UserID).
		Int64("bet", r.Bet).
		Int("safe_opened", r.safeOpened).
		Str("multiplier", mult.StringFixed(fairness.Places)).
		Int64("payout", payout).
		Msg("Mines round cashed out")

	t.deps.AfterSettle(notify.Event{
		Game: Scope, RoundID: r.ID, UserID: r.UserID, Username: r.Username,
		Bet: r.Bet, Multiplier: mult, Payout: payout, Outcome: notify.OutcomeWin,
	})

	v := t.view(r)
	v.Payout = payout
	v.Balance = w.Spendable
	return v, nil
}

// Sweep discards rounds idle for longer than the TTL and returns how many it
// dropped. Rounds whose user is mid-action are left for the next sweep. The
// bet stays debited and no ledger row is written. Rounds with a failed payout
// are never dropped; the sweep retries their credit instead.
func (t *Table) Sweep() int {
	now := t.clock.Now()

	t.mu.Lock()
	candidates := make([]*Round, 0, len(t.rounds))
	for _, r := range t.rounds {
		candidates = append(candidates, r)
	}
	t.mu.Unlock()

	dropped := 0
	for _, r := range candidates {
		if !t.locks.TryLock(r.UserID) {
			continue
		}
		if t.active(r.UserID) == r && r.payoutPending {
			_, _ = t.cashOut(context.Background(), r)
			t.locks.Unlock(r.UserID)
			continue
		}
		expired := t.active(r.UserID) == r && r.state == StateActive && now.Sub(r.lastAction) >= t.ttl
		if expired {
			r.state = StateExpired
			t.remove(r)
		}
		t.locks.Unlock(r.UserID)

		if !expired {
			continue
		}
		dropped++
		log.Info().
			Str("round_id", r.ID).
			Int64("user_id", r.UserID).
			Int64("bet", r.Bet).
			Dur("idle", now.Sub(r.lastAction)).
			Msg("Mines round expired")
		t.deps.AfterSettle(notify.Event{
			Game: Scope, RoundID: r.ID, UserID: r.UserID, Username: r.Username,
			Bet: r.Bet, Outcome: notify.OutcomeExpired,
		})
	}
	return dropped
}

// RunReaper sweeps every interval until ctx is done.
func (t *Table) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(); n > 0 {
				log.Debug().Int("count", n).Msg("Swept idle mines rounds")
			}
		}
	}
}

func (t *Table) view(r *Round) *View {
	v := &View{
		RoundID:    r.ID,
		Bet:        r.Bet,
		Mines:      r.Mines,
		Cells:      len(r.mines),
		Opened:     append([]bool(nil), r.opened...),
		SafeOpened: r.safeOpened,
		State:      r.state,
		Multiplier: decimal.NewFromInt(1),
		HitCell:    -1,
	}
	if r.safeOpened > 0 {
		v.Multiplier, _ = t.engine.Multiplier(r.Mines, r.safeOpened)
	}
	if r.state == StateActive && r.safeOpened < r.safeCells() {
		v.Next, _ = t.engine.Multiplier(r.Mines, r.safeOpened+1)
	}
	if r.state != StateActive {
		for i, m := range r.mines {
			if m {
				v.MineCells = append(v.MineCells, i)
			}
		}
	}
	return v
}
