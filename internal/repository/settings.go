package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/db"
)

// SettingsRepository reads and writes the single global settings row.
type SettingsRepository struct {
	q db.DBTX
}

// NewSettingsRepository creates a new SettingsRepository instance.
func NewSettingsRepository(q db.DBTX) *SettingsRepository {
	return &SettingsRepository{q: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *SettingsRepository) WithTx(tx pgx.Tx) *SettingsRepository {
	return &SettingsRepository{q: tx}
}

// GetBetLimits returns the configured global bet range.
func (r *SettingsRepository) GetBetLimits(ctx context.Context) (model.BetLimits, error) {
	const query = `SELECT min_bet, max_bet FROM settings WHERE id = 1`

	var l model.BetLimits
	if err := r.q.QueryRow(ctx, query).Scan(&l.MinBet, &l.MaxBet); err != nil {
		return model.BetLimits{}, fmt.Errorf("failed to get bet limits: %w", err)
	}
	return l, nil
}

// SetBetLimits updates the global bet range.
func (r *SettingsRepository) SetBetLimits(ctx context.Context, l model.BetLimits) error {
	const query = `UPDATE settings SET min_bet = $1, max_bet = $2, updated_at = NOW() WHERE id = 1`

	if _, err := r.q.Exec(ctx, query, l.MinBet, l.MaxBet); err != nil {
		return fmt.Errorf("failed to set bet limits: %w", err)
	}
	return nil
}

// GetReferralPercent returns the share of a referral's loss paid to the referrer.
func (r *SettingsRepository) GetReferralPercent(ctx context.Context) (int64, error) {
	const query = `SELECT referral_percent FROM settings WHERE id = 1`

	var p int64
	if err := r.q.QueryRow(ctx, query).Scan(&p); err != nil {
		return 0, fmt.Errorf("failed to get referral percent: %w", err)
	}
	return p, nil
}

// SetReferralPercent updates the referral share.
func (r *SettingsRepository) SetReferralPercent(ctx context.Context, percent int64) error {
	const query = `UPDATE settings SET referral_percent = $1, updated_at = NOW() WHERE id = 1`

	if _, err := r.q.Exec(ctx, query, percent); err != nil {
		return fmt.Errorf("failed to set referral percent: %w", err)
	}
	return nil
}
