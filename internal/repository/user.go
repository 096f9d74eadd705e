// Package repository provides data access layer implementations.
// Every repository runs against a db.DBTX, so it works on the pool directly
// or inside a caller's transaction via WithTx.
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

// UserRepository handles user data persistence.
type UserRepository struct {
	q db.DBTX
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(q db.DBTX) *UserRepository {
	return &UserRepository{q: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{q: tx}
}

const userColumns = `telegram_id, username, referrer_id, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.TelegramID, &u.Username, &u.ReferrerID, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Upsert creates the user if missing. An existing user keeps its referrer;
// the username is refreshed. It reports whether the user was newly created.
func (r *UserRepository) Upsert(ctx context.Context, telegramID int64, username string, referrerID *int64) (*model.User, bool, error) {
	const query = `
		INSERT INTO users (telegram_id, username, referrer_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO UPDATE SET username = EXCLUDED.username
		RETURNING ` + userColumns + `, (xmax = 0) AS inserted
	`

	var (
		u        model.User
		inserted bool
	)
	err := r.q.QueryRow(ctx, query, telegramID, username, referrerID).Scan(
		&u.TelegramID, &u.Username, &u.ReferrerID, &u.CreatedAt, &inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &u, inserted, nil
}

// GetByID retrieves a user by their Telegram ID.
// Returns apperr.ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, telegramID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	u, err := scanUser(r.q.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
