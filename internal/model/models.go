// Package model defines the data models for the casino bot.
package model

import "time"

// User represents a Telegram user known to the platform.
type User struct {
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	ReferrerID *int64    `db:"referrer_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// Wallet is the materialized balance of a user.
// Spendable equals the sum of the user's ledger amounts at every committed state.
// Reserved holds funds earmarked for pending withdrawals.
type Wallet struct {
	UserID    int64     `db:"user_id"`
	Spendable int64     `db:"spendable"`
	Reserved  int64     `db:"reserved"`
	UpdatedAt time.Time `db:"updated_at"`
}

// EntryType categorizes a ledger entry.
type EntryType string

// Ledger entry types. The sign of the amount is fixed per type, except
// ADJUST and WITHDRAW which may go both ways (admin correction, rejected withdrawal).
const (
	EntryBet      EntryType = "BET"
	EntryWin      EntryType = "WIN"
	EntryRefund   EntryType = "REFUND"
	EntryAdjust   EntryType = "ADJUST"
	EntryReferral EntryType = "REFERRAL"
	EntryBonus    EntryType = "BONUS"
	EntryDeposit  EntryType = "DEPOSIT"
	EntryWithdraw EntryType = "WITHDRAW"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryBet, EntryWin, EntryRefund, EntryAdjust, EntryReferral, EntryBonus, EntryDeposit, EntryWithdraw:
		return true
	}
	return false
}

// CreditType reports whether t can be used for a positive credit through the ledger accessor.
func (t EntryType) CreditType() bool {
	switch t {
	case EntryWin, EntryRefund, EntryBonus, EntryAdjust, EntryReferral, EntryDeposit:
		return true
	}
	return false
}

// LedgerEntry is an immutable record of a balance change.
type LedgerEntry struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Type      EntryType `db:"type"`
	Amount    int64     `db:"amount"`
	Meta      *Meta     `db:"meta"`
	CreatedAt time.Time `db:"created_at"`
}

// BetLimits is the global wager range.
type BetLimits struct {
	MinBet int64
	MaxBet int64
}

// Valid reports whether the range is usable.
func (l BetLimits) Valid() bool {
	return l.MinBet > 0 && l.MaxBet > 0 && l.MinBet < l.MaxBet
}

// Withdrawal statuses.
const (
	WithdrawalPending   = "PENDING"
	WithdrawalCompleted = "COMPLETED"
	WithdrawalRejected  = "REJECTED"
)

// Withdrawal is a request to move reserved funds out of the platform.
type Withdrawal struct {
	ID          int64      `db:"id"`
	UserID      int64      `db:"user_id"`
	Amount      int64      `db:"amount"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
