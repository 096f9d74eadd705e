// Package game defines what the real-time games share: the descriptors kept
// in the registry and the collaborators every table settles through.
package game

import (
	"context"

	"casino-bot/internal/model"
)

// Game describes a playable game for help texts and command routing.
type Game interface {
	// Name returns the display name, e.g. "Crash".
	Name() string
	// Command returns the chat command without the slash, e.g. "crash".
	Command() string
	// Description returns a one-line summary.
	Description() string
	// Usage returns the command syntax.
	Usage() string
}

// Admitter decides whether a wager may go ahead.
type Admitter interface {
	Admit(ctx context.Context, userID, amount int64, scope string) error
}

// Wagerer debits a stake together with its BET ledger entry.
type Wagerer interface {
	SettleWager(ctx context.Context, userID, amount int64, meta *model.Meta) (*model.Wallet, error)
}

// Crediter pays out winnings together with their ledger entry.
type Crediter interface {
	Credit(ctx context.Context, userID, amount int64, typ model.EntryType, meta *model.Meta) (*model.Wallet, error)
}

// LossHook runs after a losing settlement, e.g. to pay a referrer.
type LossHook interface {
	OnLoss(ctx context.Context, userID, lossAmount int64) (int64, error)
}
