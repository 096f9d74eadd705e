// Package crash implements the crash game: a multiplier grows from 1.00 until
// a pre-drawn crash point, and the player must cash out before it is reached.
package crash

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
const Scope = "crash"

// Display shows a running round to its player. Errors are logged and ignored.
type Display interface {
	Update(ctx context.Context, r *Round, multiplier decimal.Decimal) error
	Crashed(ctx context.Context, r *Round) error
}

// Result describes how a cash-out attempt ended.
type Result struct {
	RoundID    string
	Bet        int64
	Crashed    bool
	CrashAt    decimal.Decimal
	Multiplier decimal.Decimal
	Payout     int64
	Balance    int64
}

// Options tune the scheduler.
type Options struct {
	Tick            time.Duration
	DisplayInterval time.Duration
}

// Table holds every active crash round, at most one per user.
type Table struct {
	engine  *fairness.CrashEngine
	deps    game.Deps
	display Display
	clock   clock.Clock
	locks   *lock.UserLock
	opts    Options

	mu     sync.Mutex
	rounds map[int64]*Round

	wg        sync.WaitGroup
	quit      chan struct{}
	closeOnce sync.Once
}

// NewTable creates a Table. display may be nil.
func NewTable(engine *fairness.CrashEngine, deps game.Deps, display Display, clk clock.Clock, opts Options) *Table {
	if clk == nil {
		clk = clock.System{}
	}
	if opts.Tick <= 0 {
		opts.Tick = 120 * time.Millisecond
	}
	if opts.DisplayInterval <= 0 {
		opts.DisplayInterval = 900 * time.Millisecond
	}
	return &Table{
		engine:  engine,
		deps:    deps,
		display: display,
		clock:   clk,
		locks:   lock.NewUserLock(),
		opts:    opts,
		rounds:  make(map[int64]*Round),
		quit:    make(chan struct{}),
	}
}

// Name implements game.Game.
func (t *Table) Name() string { return "Crash" }

// Command implements game.Game.
func (t *Table) Command() string { return Scope }

// Description implements game.Game.
func (t *Table) Description() string {
	return "The multiplier climbs until it crashes. Cash out before it does."
}

// Usage implements game.Game.
func (t *Table) Usage() string { return "/crash <bet>" }

// Active returns the user's running round.
func (t *Table) Active(userID int64) (*Round, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rounds[userID]
	return r, ok
}

// Count returns the number of active rounds.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rounds)
}

func (t *Table) remove(r *Round) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rounds[r.UserID] == r {
		delete(t.rounds, r.UserID)
	}
}

// Start takes the bet and launches a round. The crash point is drawn before
// the stake is taken and never changes afterwards.
func (t *Table) Start(ctx context.Context, userID int64, username string, bet int64) (*Round, error) {
	var r *Round
	err := t.locks.WithLock(userID, func() error {
		if _, busy := t.Active(userID); busy {
			return apperr.ErrRoundActive
		}

		crashAt, err := t.engine.Next()
		if err != nil {
			return err
		}
		r = newRound(uuid.NewString(), userID, username, bet, crashAt)

		meta := model.NewGameMeta(model.GameMeta{Game: Scope, RoundID: r.ID, Bet: bet})
		if _, err := t.deps.Stake(ctx, userID, bet, Scope, meta); err != nil {
			return err
		}

		r.StartedAt = t.clock.Now()
		r.lastDisplay = r.StartedAt
		r.state.Store(int32(StateRunning))

		t.mu.Lock()
		t.rounds[userID] = r
		t.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("round_id", r.ID).
		Int64("user_id", userID).
		Int64("bet", bet).
		Str("commitment", fairness.Commitment(r.ID, r.crashAt)).
		Msg("Crash round started")

	t.wg.Add(1)
	go t.run(r)

	return r, nil
}

// CashOut settles the user's round at the current multiplier. If the crash
// point has already been reached at this instant the round settles as a loss
// instead and the result reports Crashed.
func (t *Table) CashOut(ctx context.Context, userID int64) (*Result, error) {
	var res *Result
	err := t.locks.WithLock(userID, func() error {
		r, ok := t.Active(userID)
		if !ok {
			return apperr.ErrNoActiveRound
		}
		if r.payoutPending {
			var err error
			res, err = t.pay(ctx, r)
			return err
		}
		if r.State() != StateRunning {
			return apperr.ErrNoActiveRound
		}

		raw := t.engine.Multiplier(t.clock.Now().Sub(r.StartedAt))
		if fairness.Reached(raw, r.crashAt) {
			if !t.crash(r, false) {
				return apperr.ErrNoActiveRound
			}
			res = &Result{RoundID: r.ID, Bet: r.Bet, Crashed: true, CrashAt: r.crashAt, Multiplier: r.crashAt}
			return nil
		}

		if !r.end(StateCashedOut) {
			return apperr.ErrNoActiveRound
		}
		r.cashedAt = fairness.CashOutMultiplier(raw)
		r.payoutPending = true

		var err error
		res, err = t.pay(ctx, r)
		return err
	})
	return res, err
}

// pay credits a cashed-out round at its locked-in multiplier. The round stays
// in the table until the credit commits, so a failed credit is retried by the
// next CashOut. Callers hold the user lock.
func (t *Table) pay(ctx context.Context, r *Round) (*Result, error) {
	mult := r.cashedAt
	payout := fairness.Payout(r.Bet, mult)
	meta := model.NewGameMeta(model.GameMeta{Game: Scope, RoundID: r.ID, Bet: r.Bet, Multiplier: mult.StringFixed(fairness.Places)})

	w, err := t.deps.Credits.Credit(context.WithoutCancel(ctx), r.UserID, payout, model.EntryWin, meta)
	if err != nil {
		log.Error().Err(err).
			Str("round_id", r.ID).
			Int64("user_id", r.UserID).
			Int64("bet", r.Bet).
			Str("multiplier", mult.StringFixed(fairness.Places)).
			Int64("payout", payout).
			Msg("Failed to credit crash payout, kept for retry")
		return nil, fmt.Errorf("failed to credit payout: %w", err)
	}

	r.payoutPending = false
	t.remove(r)

	log.Info().
		Str("round_id", r.ID).
		Int64("user_id", r.UserID).
		Int64("bet", r.Bet).
		Str("multiplier", mult.StringFixed(fairness.Places)).
		Int64("payout", payout).
		Msg("Crash round cashed out")

	t.deps.AfterSettle(notify.Event{
		Game: Scope, RoundID: r.ID, UserID: r.UserID, Username: r.Username,
		Bet: r.Bet, Multiplier: mult, Payout: payout, Outcome: notify.OutcomeWin,
	})
	return &Result{RoundID: r.ID, Bet: r.Bet, CrashAt: r.crashAt, Multiplier: mult, Payout: payout, Balance: w.Spendable}, nil
}

// Stop abandons the user's round. The bet stays debited and nothing is paid.
func (t *Table) Stop(userID int64) error {
	return t.locks.WithLock(userID, func() error {
		r, ok := t.Active(userID)
		if !ok || !r.end(StateStopped) {
			return apperr.ErrNoActiveRound
		}
		t.remove(r)
		log.Warn().Str("round_id", r.ID).Int64("user_id", userID).Int64("bet", r.Bet).Msg("Crash round stopped by player")
		return nil
	})
}

// crash settles r as a loss. It reports false if another transition won.
func (t *Table) crash(r *Round, show bool) bool {
	if !r.end(StateCrashed) {
		return false
	}
	t.remove(r)

	log.Info().
		Str("round_id", r.ID).
		Int64("user_id", r.UserID).
		Int64("bet", r.Bet).
		Str("crash_at", r.crashAt.StringFixed(fairness.Places)).
		Msg("Crash round crashed")

	t.deps.AfterSettle(notify.Event{
		Game: Scope, RoundID: r.ID, UserID: r.UserID, Username: r.Username,
		Bet: r.Bet, Multiplier: r.crashAt, Outcome: notify.OutcomeLoss,
	})

	if show && t.display != nil {
		ctx, cancel := context.WithTimeout(context.Background(), t.opts.DisplayInterval)
		defer cancel()
		if err := t.display.Crashed(ctx, r); err != nil {
			log.Debug().Err(err).Str("round_id", r.ID).Msg("Crash display failed")
		}
	}
	return true
}

// Close stops every scheduler loop and waits for them. Rounds still running
// are dropped without settlement.
func (t *Table) Close() {
	t.closeOnce.Do(func() { close(t.quit) })
	t.wg.Wait()
}
