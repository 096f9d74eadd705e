package mines

import (
	"time"

	"github.com/shopspring/decimal"
)

// State of a mines round.
type State int

// Round states. Everything but Active is terminal.
const (
	StatePlacingBet State = iota
	StateActive
	StateExploded
	StateCashedOut
	StateExpired
)

func (s State) String() string {
	switch s {
	case StatePlacingBet:
		return "placing_bet"
	case StateActive:
		return "active"
	case StateExploded:
		return "exploded"
	case StateCashedOut:
		return "cashed_out"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// Round is one user's mines round. It is only touched under the user's lock.
type Round struct {
	ID         string
	UserID     int64
	Username   string
	Bet        int64
	Mines      int
	StartedAt  time.Time
	lastAction time.Time

	mines      []bool
	opened     []bool
	safeOpened int
	// payoutPending marks a cash-out whose WIN credit failed. The round stays
	// active and the next action or sweep retries the payout.
	payoutPending bool
	state         State
}

func newRound(id string, userID int64, username string, bet int64, cells int, mineCells []int) *Round {
	r := &Round{
		ID:       id,
		UserID:   userID,
		Username: username,
		Bet:      bet,
		Mines:    len(mineCells),
		mines:    make([]bool, cells),
		opened:   make([]bool, cells),
		state:    StatePlacingBet,
	}
	for _, i := range mineCells {
		r.mines[i] = true
	}
	return r
}

func (r *Round) safeCells() int { return len(r.mines) - r.Mines }

// View is a snapshot of a round for rendering.
type View struct {
	RoundID string
	Bet     int64
	Mines   int
	Cells   int
	Opened  []bool
	// MineCells is only filled once the round has ended.
	MineCells  []int
	SafeOpened int
	State      State
	// Multiplier is the cash-out multiplier at the current progress.
	Multiplier decimal.Decimal
	// Next is the multiplier after one more safe cell, zero when none remain.
	Next    decimal.Decimal
	HitCell int
	Payout  int64
	Balance int64
}
