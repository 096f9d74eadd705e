package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"casino-bot/internal/pkg/db"
)

// ReferralRepository records bonuses paid to referrers.
type ReferralRepository struct {
	q db.DBTX
}

// NewReferralRepository creates a new ReferralRepository instance.
func NewReferralRepository(q db.DBTX) *ReferralRepository {
	return &ReferralRepository{q: q}
}

// WithTx returns a copy of the repository bound to tx.
func (r *ReferralRepository) WithTx(tx pgx.Tx) *ReferralRepository {
	return &ReferralRepository{q: tx}
}

// Record stores one paid bonus.
func (r *ReferralRepository) Record(ctx context.Context, referrerID, referralID, lossAmount, bonus int64) error {
	const query = `
		INSERT INTO referral_bonuses (referrer_id, referral_id, loss_amount, bonus)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.q.Exec(ctx, query, referrerID, referralID, lossAmount, bonus); err != nil {
		return fmt.Errorf("failed to record referral bonus: %w", err)
	}
	return nil
}

// TotalEarned returns the sum of bonuses paid to the referrer.
func (r *ReferralRepository) TotalEarned(ctx context.Context, referrerID int64) (int64, error) {
	const query = `SELECT COALESCE(SUM(bonus), 0)::BIGINT FROM referral_bonuses WHERE referrer_id = $1`

	var total int64
	if err := r.q.QueryRow(ctx, query, referrerID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to total referral bonuses: %w", err)
	}
	return total, nil
}
