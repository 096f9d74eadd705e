package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/db"
)

// LedgerRepository appends and reads ledger entries.
// It has no update or delete methods: entries are immutable.
type LedgerRepository struct {
	q db.DBTX
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(q db.DBTX) *LedgerRepository {
	return &LedgerRepository{q: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *LedgerRepository) WithTx(tx pgx.Tx) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// Append writes a new entry. The meta must match the entry type.
func (r *LedgerRepository) Append(ctx context.Context, userID int64, typ model.EntryType, amount int64, meta *model.Meta) (*model.LedgerEntry, error) {
	if err := meta.Validate(typ); err != nil {
		return nil, fmt.Errorf("invalid ledger entry: %w", err)
	}
	raw, err := meta.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger meta: %w", err)
	}

	const query = `
		INSERT INTO ledger (user_id, type, amount, meta)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	e := model.LedgerEntry{UserID: userID, Type: typ, Amount: amount, Meta: meta}
	if err := r.q.QueryRow(ctx, query, userID, string(typ), amount, raw).Scan(&e.ID, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return &e, nil
}

// ListByUser returns the user's most recent entries, newest first.
// A zero before means no upper bound.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID int64, before time.Time, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, user_id, type, amount, meta, created_at
		FROM ledger
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	var upper *time.Time
	if !before.IsZero() {
		upper = &before
	}

	rows, err := r.q.Query(ctx, query, userID, upper, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var (
			e   model.LedgerEntry
			typ string
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &e.Amount, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Type = model.EntryType(typ)
		if e.Meta, err = model.UnmarshalMeta(raw); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}

// SumByUser returns the sum of all entry amounts for the user.
func (r *LedgerRepository) SumByUser(ctx context.Context, userID int64) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM ledger WHERE user_id = $1`

	var sum int64
	if err := r.q.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return sum, nil
}

// TotalsByType returns per-type sums for the user.
func (r *LedgerRepository) TotalsByType(ctx context.Context, userID int64) (map[model.EntryType]int64, error) {
	const query = `
		SELECT type, COALESCE(SUM(amount), 0)::BIGINT
		FROM ledger
		WHERE user_id = $1
		GROUP BY type
	`

	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to total ledger: %w", err)
	}
	defer rows.Close()

	totals := make(map[model.EntryType]int64)
	for rows.Next() {
		var (
			typ string
			sum int64
		)
		if err := rows.Scan(&typ, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan ledger total: %w", err)
		}
		totals[model.EntryType(typ)] = sum
	}
	return totals, rows.Err()
}
