package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/db"
)

// ErrWithdrawalNotFound is returned when no withdrawal matches the id.
var ErrWithdrawalNotFound = errors.New("withdrawal not found")

// WithdrawalRepository handles withdrawal requests.
type WithdrawalRepository struct {
	q db.DBTX
}

// NewWithdrawalRepository creates a new WithdrawalRepository instance.
func NewWithdrawalRepository(q db.DBTX) *WithdrawalRepository {
	return &WithdrawalRepository{q: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *WithdrawalRepository) WithTx(tx pgx.Tx) *WithdrawalRepository {
	return &WithdrawalRepository{q: tx}
}

const withdrawalColumns = `id, user_id, amount, status, created_at, processed_at`

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var w model.Withdrawal
	if err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Status, &w.CreatedAt, &w.ProcessedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// Create inserts a pending withdrawal.
func (r *WithdrawalRepository) Create(ctx context.Context, userID, amount int64) (*model.Withdrawal, error) {
	const query = `
		INSERT INTO withdrawals (user_id, amount)
		VALUES ($1, $2)
		RETURNING ` + withdrawalColumns

	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, userID, amount))
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return w, nil
}

// ClosePending moves a PENDING withdrawal to status. It returns
// ErrWithdrawalNotFound when the id is unknown or already processed, so
// concurrent approve/reject calls resolve exactly once.
func (r *WithdrawalRepository) ClosePending(ctx context.Context, id int64, status string) (*model.Withdrawal, error) {
	const query = `
		UPDATE withdrawals
		SET status = $2, processed_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + withdrawalColumns

	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to close withdrawal: %w", err)
	}
	return w, nil
}

// ListPending returns pending withdrawals, oldest first.
func (r *WithdrawalRepository) ListPending(ctx context.Context, limit int) ([]*model.Withdrawal, error) {
	const query = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE status = 'PENDING'
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var out []*model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
