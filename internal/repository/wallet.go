package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/pkg/db"
)

// WalletRepository handles the per-user balance row.
// All mutations are single conditional UPDATE statements, so the balance
// check and the write happen atomically in the database.
type WalletRepository struct {
	q db.DBTX
}

// NewWalletRepository creates a new WalletRepository instance.
func NewWalletRepository(q db.DBTX) *WalletRepository {
	return &WalletRepository{q: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *WalletRepository) WithTx(tx pgx.Tx) *WalletRepository {
	return &WalletRepository{q: tx}
}

const walletColumns = `user_id, spendable, reserved, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	if err := row.Scan(&w.UserID, &w.Spendable, &w.Reserved, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// Create inserts an empty wallet for the user if none exists.
func (r *WalletRepository) Create(ctx context.Context, userID int64) error {
	const query = `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.q.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// Get returns the user's wallet.
func (r *WalletRepository) Get(ctx context.Context, userID int64) (*model.Wallet, error) {
	const query = `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

	w, err := scanWallet(r.q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// Debit subtracts amount from spendable only if spendable >= amount.
// Returns apperr.ErrInsufficientFunds when the condition does not hold.
func (r *WalletRepository) Debit(ctx context.Context, userID, amount int64) (*model.Wallet, error) {
	const query = `
		UPDATE wallets
		SET spendable = spendable - $2, updated_at = NOW()
		WHERE user_id = $1 AND spendable >= $2
		RETURNING ` + walletColumns

	return r.conditional(ctx, "debit", query, userID, amount)
}

// Credit adds amount to spendable.
func (r *WalletRepository) Credit(ctx context.Context, userID, amount int64) (*model.Wallet, error) {
	const query = `
		UPDATE wallets
		SET spendable = spendable + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + walletColumns

	w, err := scanWallet(r.q.QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}
	return w, nil
}

// Reserve moves amount from spendable to reserved if spendable covers it.
func (r *WalletRepository) Reserve(ctx context.Context, userID, amount int64) (*model.Wallet, error) {
	const query = `
		UPDATE wallets
		SET spendable = spendable - $2, reserved = reserved + $2, updated_at = NOW()
		WHERE user_id = $1 AND spendable >= $2
		RETURNING ` + walletColumns

	return r.conditional(ctx, "reserve", query, userID, amount)
}

// Release moves amount from reserved back to spendable.
func (r *WalletRepository) Release(ctx context.Context, userID, amount int64) (*model.Wallet, error) {
	const query = `
		UPDATE wallets
		SET spendable = spendable + $2, reserved = reserved - $2, updated_at = NOW()
		WHERE user_id = $1 AND reserved >= $2
		RETURNING ` + walletColumns

	return r.conditional(ctx, "release", query, userID, amount)
}

// Consume removes amount from reserved. Spendable is untouched.
func (r *WalletRepository) Consume(ctx context.Context, userID, amount int64) (*model.Wallet, error) {
	const query = `
		UPDATE wallets
		SET reserved = reserved - $2, updated_at = NOW()
		WHERE user_id = $1 AND reserved >= $2
		RETURNING ` + walletColumns

	return r.conditional(ctx, "consume", query, userID, amount)
}

// conditional runs a guarded UPDATE. No row back means either the user is
// unknown or the guard failed, and a follow-up lookup tells them apart.
func (r *WalletRepository) conditional(ctx context.Context, op, query string, userID, amount int64) (*model.Wallet, error) {
	w, err := scanWallet(r.q.QueryRow(ctx, query, userID, amount))
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to %s wallet: %w", op, err)
	}

	if _, err := r.Get(ctx, userID); err != nil {
		return nil, err
	}
	return nil, apperr.ErrInsufficientFunds
}
