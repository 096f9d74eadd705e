package crash

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// State of a crash round.
type State int32

// Round states. CashedOut, Crashed and Stopped are terminal.
const (
	StatePlacingBet State = iota
	StateRunning
	StateCashedOut
	StateCrashed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StatePlacingBet:
		return "placing_bet"
	case StateRunning:
		return "running"
	case StateCashedOut:
		return "cashed_out"
	case StateCrashed:
		return "crashed"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Round is one user's crash round.
type Round struct {
	ID        string
	UserID    int64
	Username  string
	Bet       int64
	StartedAt time.Time

	crashAt decimal.Decimal
	state   atomic.Int32
	// ended is set by whichever terminal transition wins.
	ended    atomic.Bool
	done     chan struct{}
	doneOnce sync.Once

	// Set on cash-out under the user lock. A pending payout keeps the
	// round in the table until its WIN commits.
	cashedAt      decimal.Decimal
	payoutPending bool

	// Owned by the scheduler goroutine.
	lastShown   decimal.Decimal
	lastDisplay time.Time
}

func newRound(id string, userID int64, username string, bet int64, crashAt decimal.Decimal) *Round {
	r := &Round{
		ID:        id,
		UserID:    userID,
		Username:  username,
		Bet:       bet,
		crashAt:   crashAt,
		done:      make(chan struct{}),
		lastShown: decimal.NewFromInt(1),
	}
	r.state.Store(int32(StatePlacingBet))
	return r
}

// State returns the current state.
func (r *Round) State() State { return State(r.state.Load()) }

// CrashPoint reveals the committed crash point once the round has ended.
func (r *Round) CrashPoint() (decimal.Decimal, bool) {
	if !r.ended.Load() {
		return decimal.Decimal{}, false
	}
	return r.crashAt, true
}

// Done is closed when the round reaches a terminal state.
func (r *Round) Done() <-chan struct{} { return r.done }

// end claims the single terminal transition. Only the caller that gets true
// may settle the round.
func (r *Round) end(to State) bool {
	if !r.ended.CompareAndSwap(false, true) {
		return false
	}
	r.state.Store(int32(to))
	r.doneOnce.Do(func() { close(r.done) })
	return true
}
