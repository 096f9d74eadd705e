// Package gametest provides in-memory collaborators for game table tests.
package gametest

import (
	"context"
	"sync"

	"casino-bot/internal/game"
	"casino-bot/internal/model"
	"casino-bot/internal/notify"
	"casino-bot/internal/pkg/apperr"
)

// Entry is one recorded ledger movement.
type Entry struct {
	UserID int64
	Type   model.EntryType
	Amount int64
	Meta   *model.Meta
}

// Wallet is an in-memory Wagerer and Crediter that keeps a ledger.
type Wallet struct {
	mu       sync.Mutex
	balances map[int64]int64
	entries  []Entry
	// CreditErr, when set, fails every credit.
	CreditErr error
}

// NewWallet creates a wallet with the given starting balances.
func NewWallet(balances map[int64]int64) *Wallet {
	b := make(map[int64]int64, len(balances))
	for k, v := range balances {
		b[k] = v
	}
	return &Wallet{balances: b}
}

// SettleWager implements game.Wagerer.
func (w *Wallet) SettleWager(_ context.Context, userID, amount int64, meta *model.Meta) (*model.Wallet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.balances[userID] < amount {
		return nil, apperr.ErrInsufficientFunds
	}
	w.balances[userID] -= amount
	w.entries = append(w.entries, Entry{UserID: userID, Type: model.EntryBet, Amount: -amount, Meta: meta})
	return &model.Wallet{UserID: userID, Spendable: w.balances[userID]}, nil
}

// Credit implements game.Crediter.
func (w *Wallet) Credit(_ context.Context, userID, amount int64, typ model.EntryType, meta *model.Meta) (*model.Wallet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.CreditErr != nil {
		return nil, w.CreditErr
	}
	w.balances[userID] += amount
	w.entries = append(w.entries, Entry{UserID: userID, Type: typ, Amount: amount, Meta: meta})
	return &model.Wallet{UserID: userID, Spendable: w.balances[userID]}, nil
}

// Balance returns the user's balance.
func (w *Wallet) Balance(userID int64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID]
}

// Entries returns a copy of the recorded ledger.
func (w *Wallet) Entries() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Entry(nil), w.entries...)
}

// Count returns how many entries of typ were recorded.
func (w *Wallet) Count(typ model.EntryType) int {
	n := 0
	for _, e := range w.Entries() {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// Guard admits everything unless Err is set.
type Guard struct {
	Err error
}

// Admit implements game.Admitter.
func (g Guard) Admit(context.Context, int64, int64, string) error { return g.Err }

// Recorder collects loss hook calls and published events.
type Recorder struct {
	mu     sync.Mutex
	losses []int64
	events []notify.Event
}

// OnLoss implements game.LossHook.
func (r *Recorder) OnLoss(_ context.Context, _ int64, loss int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.losses = append(r.losses, loss)
	return 0, nil
}

// Publish implements notify.Publisher.
func (r *Recorder) Publish(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Losses returns the recorded loss amounts.
func (r *Recorder) Losses() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.losses...)
}

// Events returns the recorded events.
func (r *Recorder) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

// Deps wires the fakes into game.Deps with synchronous side effects.
func Deps(w *Wallet, r *Recorder) game.Deps {
	return game.Deps{
		Guard:     Guard{},
		Wagers:    w,
		Credits:   w,
		Losses:    r,
		Publisher: r,
		Dispatch:  func(fn func()) { fn() },
	}
}
