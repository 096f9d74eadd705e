// Package service provides business logic implementations.
package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/pkg/db"
	"casino-bot/internal/repository"
)

// BalanceLedger changes a wallet and writes the matching ledger entry in one
// transaction. The ...In variants run inside a caller's transaction so that
// several steps can share one commit.
type BalanceLedger struct {
	tx      *db.Transactor
	wallets *repository.WalletRepository
	ledger  *repository.LedgerRepository
}

// NewBalanceLedger creates a new BalanceLedger instance.
func NewBalanceLedger(tx *db.Transactor, wallets *repository.WalletRepository, ledger *repository.LedgerRepository) *BalanceLedger {
	return &BalanceLedger{tx: tx, wallets: wallets, ledger: ledger}
}

// Credit adds amount to spendable and appends a positive entry of type typ.
func (s *BalanceLedger) Credit(ctx context.Context, userID, amount int64, typ model.EntryType, meta *model.Meta) (*model.Wallet, error) {
	var w *model.Wallet
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		w, err = s.CreditIn(ctx, tx, userID, amount, typ, meta)
		return err
	})
	return w, err
}

// CreditIn is Credit inside the caller's transaction.
func (s *BalanceLedger) CreditIn(ctx context.Context, tx pgx.Tx, userID, amount int64, typ model.EntryType, meta *model.Meta) (*model.Wallet, error) {
	if amount <= 0 {
		return nil, apperr.Invalid("amount", "credit amount must be positive, got %d", amount)
	}
	if !typ.CreditType() {
		return nil, apperr.Invalid("type", "%s cannot be credited", typ)
	}

	w, err := s.wallets.WithTx(tx).Credit(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.WithTx(tx).Append(ctx, userID, typ, amount, meta); err != nil {
		return nil, err
	}
	return w, nil
}

// Debit subtracts amount from spendable, only if it is covered, and appends a
// negative entry of type typ. Returns apperr.ErrInsufficientFunds otherwise.
func (s *BalanceLedger) Debit(ctx context.Context, userID, amount int64, typ model.EntryType, meta *model.Meta) (*model.Wallet, error) {
	var w *model.Wallet
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		w, err = s.DebitIn(ctx, tx, userID, amount, typ, meta)
		return err
	})
	return w, err
}

// DebitIn is Debit inside the caller's transaction.
func (s *BalanceLedger) DebitIn(ctx context.Context, tx pgx.Tx, userID, amount int64, typ model.EntryType, meta *model.Meta) (*model.Wallet, error) {
	if amount <= 0 {
		return nil, apperr.Invalid("amount", "debit amount must be positive, got %d", amount)
	}
	switch typ {
	case model.EntryBet, model.EntryAdjust:
	default:
		return nil, apperr.Invalid("type", "%s cannot be debited", typ)
	}

	w, err := s.wallets.WithTx(tx).Debit(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.WithTx(tx).Append(ctx, userID, typ, -amount, meta); err != nil {
		return nil, err
	}
	return w, nil
}

// ReserveIn moves amount from spendable to reserved and appends a negative
// WITHDRAW entry, keeping spendable equal to the ledger sum.
func (s *BalanceLedger) ReserveIn(ctx context.Context, tx pgx.Tx, userID, amount int64, meta *model.Meta) (*model.Wallet, error) {
	if amount <= 0 {
		return nil, apperr.Invalid("amount", "amount must be positive, got %d", amount)
	}

	w, err := s.wallets.WithTx(tx).Reserve(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.WithTx(tx).Append(ctx, userID, model.EntryWithdraw, -amount, meta); err != nil {
		return nil, err
	}
	return w, nil
}

// ReleaseIn moves amount from reserved back to spendable and appends a
// positive WITHDRAW entry.
func (s *BalanceLedger) ReleaseIn(ctx context.Context, tx pgx.Tx, userID, amount int64, meta *model.Meta) (*model.Wallet, error) {
	w, err := s.wallets.WithTx(tx).Release(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: reserved does not cover release of %d: %w", apperr.ErrInvariant, amount, err)
	}
	if _, err := s.ledger.WithTx(tx).Append(ctx, userID, model.EntryWithdraw, amount, meta); err != nil {
		return nil, err
	}
	return w, nil
}

// ConsumeIn removes amount from reserved. Spendable and the ledger are untouched.
func (s *BalanceLedger) ConsumeIn(ctx context.Context, tx pgx.Tx, userID, amount int64) (*model.Wallet, error) {
	w, err := s.wallets.WithTx(tx).Consume(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: reserved does not cover payout of %d: %w", apperr.ErrInvariant, amount, err)
	}
	return w, nil
}
