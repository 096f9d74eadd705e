package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/pkg/db"
	"casino-bot/internal/repository"
)

// AccountService handles users, wallets and ledger reads.
type AccountService struct {
	tx       *db.Transactor
	users    *repository.UserRepository
	wallets  *repository.WalletRepository
	ledger   *repository.LedgerRepository
	balances *BalanceLedger
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	tx *db.Transactor,
	users *repository.UserRepository,
	wallets *repository.WalletRepository,
	ledger *repository.LedgerRepository,
	balances *BalanceLedger,
) *AccountService {
	return &AccountService{
		tx:       tx,
		users:    users,
		wallets:  wallets,
		ledger:   ledger,
		balances: balances,
	}
}

// EnsureUser creates the user and an empty wallet if they do not exist.
// The referrer is only recorded at creation, and only if it is a known user
// other than the user itself.
func (s *AccountService) EnsureUser(ctx context.Context, telegramID int64, username string, referrerID *int64) (*model.User, bool, error) {
	if referrerID != nil && *referrerID == telegramID {
		referrerID = nil
	}
	if referrerID != nil {
		if _, err := s.users.GetByID(ctx, *referrerID); err != nil {
			if !errors.Is(err, apperr.ErrUserNotFound) {
				return nil, false, fmt.Errorf("failed to look up referrer: %w", err)
			}
			referrerID = nil
		}
	}

	var (
		user    *model.User
		created bool
	)
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		user, created, err = s.users.WithTx(tx).Upsert(ctx, telegramID, username, referrerID)
		if err != nil {
			return err
		}
		return s.wallets.WithTx(tx).Create(ctx, telegramID)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}
	return user, created, nil
}

// GetWallet returns the user's current balances.
func (s *AccountService) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	return s.wallets.Get(ctx, userID)
}

// Statement returns the user's latest ledger entries, newest first.
func (s *AccountService) Statement(ctx context.Context, userID int64, before time.Time, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.ledger.ListByUser(ctx, userID, before, limit)
}

// Deposit credits an external deposit.
func (s *AccountService) Deposit(ctx context.Context, userID, amount int64, provider, externalID string) (*model.Wallet, error) {
	meta := model.NewDepositMeta(model.DepositMeta{Provider: provider, ExternalID: externalID})
	return s.balances.Credit(ctx, userID, amount, model.EntryDeposit, meta)
}

// Bonus credits a promotional amount.
func (s *AccountService) Bonus(ctx context.Context, userID, amount int64, code string) (*model.Wallet, error) {
	return s.balances.Credit(ctx, userID, amount, model.EntryBonus, model.NewBonusMeta(model.BonusMeta{Code: code}))
}

// Adjust applies a signed manual correction.
func (s *AccountService) Adjust(ctx context.Context, userID, delta int64, reason string, actor int64) (*model.Wallet, error) {
	meta := model.NewAdjustMeta(model.AdjustMeta{Reason: reason, Actor: actor})
	switch {
	case delta > 0:
		return s.balances.Credit(ctx, userID, delta, model.EntryAdjust, meta)
	case delta < 0:
		return s.balances.Debit(ctx, userID, -delta, model.EntryAdjust, meta)
	}
	return nil, apperr.Invalid("amount", "adjustment must not be zero")
}

// AuditReport compares a wallet with its ledger.
type AuditReport struct {
	UserID     int64                     `json:"user_id"`
	Spendable  int64                     `json:"spendable"`
	Reserved   int64                     `json:"reserved"`
	LedgerSum  int64                     `json:"ledger_sum"`
	Totals     map[model.EntryType]int64 `json:"totals"`
	Consistent bool                      `json:"consistent"`
}

// Audit reads the wallet and the ledger sum in one snapshot. A mismatch is
// returned alongside an error wrapping apperr.ErrInvariant.
func (s *AccountService) Audit(ctx context.Context, userID int64) (*AuditReport, error) {
	var report AuditReport
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		// One snapshot for both reads.
		if _, err := tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL REPEATABLE READ READ ONLY"); err != nil {
			return fmt.Errorf("failed to set isolation: %w", err)
		}
		w, err := s.wallets.WithTx(tx).Get(ctx, userID)
		if err != nil {
			return err
		}
		sum, err := s.ledger.WithTx(tx).SumByUser(ctx, userID)
		if err != nil {
			return err
		}
		totals, err := s.ledger.WithTx(tx).TotalsByType(ctx, userID)
		if err != nil {
			return err
		}
		report = AuditReport{
			UserID:     userID,
			Spendable:  w.Spendable,
			Reserved:   w.Reserved,
			LedgerSum:  sum,
			Totals:     totals,
			Consistent: sum == w.Spendable,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent {
		return &report, fmt.Errorf("%w: user %d spendable %d != ledger sum %d",
			apperr.ErrInvariant, userID, report.Spendable, report.LedgerSum)
	}
	return &report, nil
}
