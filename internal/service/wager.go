package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/repository"
)

// WagerService takes stakes from wallets.
type WagerService struct {
	balances *BalanceLedger
	wallets  *repository.WalletRepository
}

// NewWagerService creates a new WagerService instance.
func NewWagerService(balances *BalanceLedger, wallets *repository.WalletRepository) *WagerService {
	return &WagerService{balances: balances, wallets: wallets}
}

// SettleWager debits amount and writes the BET entry in one transaction.
//
// A plain balance read runs first to reject obviously unaffordable bets
// without opening a transaction. The conditional debit is still the only
// authority: it re-checks funds at commit time. apperr.ErrInsufficientFunds
// is the normal negative result and leaves no trace.
func (s *WagerService) SettleWager(ctx context.Context, userID, amount int64, meta *model.Meta) (*model.Wallet, error) {
	if amount <= 0 {
		return nil, apperr.Invalid("bet", "bet must be a positive integer")
	}

	w, err := s.wallets.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	if w.Spendable < amount {
		return nil, apperr.ErrInsufficientFunds
	}

	w, err = s.balances.Debit(ctx, userID, amount, model.EntryBet, meta)
	if err != nil {
		if errors.Is(err, apperr.ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to settle wager: %w", err)
	}

	log.Debug().
		Int64("user_id", userID).
		Int64("bet", amount).
		Int64("spendable", w.Spendable).
		Msg("Wager debited")

	return w, nil
}
