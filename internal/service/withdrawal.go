package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/pkg/db"
	"casino-bot/internal/repository"
)

// Withdrawal ledger actions.
const (
	WithdrawActionReserve = "RESERVE"
	WithdrawActionRefund  = "REFUND"
)

// WithdrawalService moves funds through spendable -> reserved -> out.
//
// Request writes WITHDRAW(-amount) when the funds leave spendable. Approve
// only drains reserved. Reject returns the funds with WITHDRAW(+amount).
// Spendable therefore always equals the ledger sum.
type WithdrawalService struct {
	tx          *db.Transactor
	balances    *BalanceLedger
	withdrawals *repository.WithdrawalRepository
	minAmount   int64
}

// NewWithdrawalService creates a new WithdrawalService instance.
func NewWithdrawalService(tx *db.Transactor, balances *BalanceLedger, withdrawals *repository.WithdrawalRepository, minAmount int64) *WithdrawalService {
	return &WithdrawalService{tx: tx, balances: balances, withdrawals: withdrawals, minAmount: minAmount}
}

// Request reserves amount for a new withdrawal.
func (s *WithdrawalService) Request(ctx context.Context, userID, amount int64) (*model.Withdrawal, error) {
	if amount <= 0 || amount < s.minAmount {
		return nil, apperr.Invalid("amount", "minimum withdrawal is %d", max(s.minAmount, 1))
	}

	var wd *model.Withdrawal
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		wd, err = s.withdrawals.WithTx(tx).Create(ctx, userID, amount)
		if err != nil {
			return err
		}
		meta := model.NewWithdrawalMeta(model.WithdrawalMeta{WithdrawalID: wd.ID, Action: WithdrawActionReserve})
		_, err = s.balances.ReserveIn(ctx, tx, userID, amount, meta)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("user_id", userID).Int64("withdrawal_id", wd.ID).Int64("amount", amount).Msg("Withdrawal requested")
	return wd, nil
}

// Approve completes a pending withdrawal. The reserved funds leave the platform.
func (s *WithdrawalService) Approve(ctx context.Context, id int64) (*model.Withdrawal, error) {
	var wd *model.Withdrawal
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		wd, err = s.withdrawals.WithTx(tx).ClosePending(ctx, id, model.WithdrawalCompleted)
		if err != nil {
			return err
		}
		_, err = s.balances.ConsumeIn(ctx, tx, wd.UserID, wd.Amount)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to approve withdrawal %d: %w", id, err)
	}

	log.Info().Int64("user_id", wd.UserID).Int64("withdrawal_id", id).Int64("amount", wd.Amount).Msg("Withdrawal approved")
	return wd, nil
}

// Reject cancels a pending withdrawal and returns the funds to spendable.
func (s *WithdrawalService) Reject(ctx context.Context, id int64, reason string) (*model.Withdrawal, error) {
	var wd *model.Withdrawal
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		wd, err = s.withdrawals.WithTx(tx).ClosePending(ctx, id, model.WithdrawalRejected)
		if err != nil {
			return err
		}
		meta := model.NewWithdrawalMeta(model.WithdrawalMeta{WithdrawalID: id, Action: WithdrawActionRefund, Reason: reason})
		_, err = s.balances.ReleaseIn(ctx, tx, wd.UserID, wd.Amount, meta)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reject withdrawal %d: %w", id, err)
	}

	log.Info().Int64("user_id", wd.UserID).Int64("withdrawal_id", id).Str("reason", reason).Msg("Withdrawal rejected")
	return wd, nil
}

// Pending lists withdrawals awaiting a decision.
func (s *WithdrawalService) Pending(ctx context.Context, limit int) ([]*model.Withdrawal, error) {
	return s.withdrawals.ListPending(ctx, limit)
}
