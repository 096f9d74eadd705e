package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/pkg/db"
	"casino-bot/internal/repository"
)

// ReferralService pays referrers a share of their referrals' losses.
type ReferralService struct {
	tx             *db.Transactor
	users          *repository.UserRepository
	settings       *repository.SettingsRepository
	referrals      *repository.ReferralRepository
	balances       *BalanceLedger
	defaultPercent int64
}

// NewReferralService creates a new ReferralService instance. defaultPercent is
// used when the settings row cannot be read.
func NewReferralService(
	tx *db.Transactor,
	users *repository.UserRepository,
	settings *repository.SettingsRepository,
	referrals *repository.ReferralRepository,
	balances *BalanceLedger,
	defaultPercent int64,
) *ReferralService {
	return &ReferralService{
		tx:             tx,
		users:          users,
		settings:       settings,
		referrals:      referrals,
		balances:       balances,
		defaultPercent: defaultPercent,
	}
}

// Bonus returns floor(loss * percent / 100).
func Bonus(loss, percent int64) int64 {
	if loss <= 0 || percent <= 0 {
		return 0
	}
	return loss * percent / 100
}

// OnLoss credits the user's referrer, if any, with its share of lossAmount.
// It returns the bonus paid, zero when nothing was due.
func (s *ReferralService) OnLoss(ctx context.Context, userID, lossAmount int64) (int64, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if user.ReferrerID == nil {
		return 0, nil
	}
	referrerID := *user.ReferrerID

	percent, err := s.settings.GetReferralPercent(ctx)
	if err != nil {
		log.Warn().Err(err).Int64("fallback", s.defaultPercent).Msg("Referral percent unavailable")
		percent = s.defaultPercent
	}

	bonus := Bonus(lossAmount, percent)
	if bonus == 0 {
		return 0, nil
	}

	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		meta := model.NewReferralMeta(model.ReferralMeta{ReferralID: userID, LossAmount: lossAmount, Percent: percent})
		if _, err := s.balances.CreditIn(ctx, tx, referrerID, bonus, model.EntryReferral, meta); err != nil {
			return err
		}
		return s.referrals.WithTx(tx).Record(ctx, referrerID, userID, lossAmount, bonus)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to pay referral bonus: %w", err)
	}

	log.Info().
		Int64("referrer_id", referrerID).
		Int64("referral_id", userID).
		Int64("loss", lossAmount).
		Int64("bonus", bonus).
		Msg("Referral bonus paid")

	return bonus, nil
}
