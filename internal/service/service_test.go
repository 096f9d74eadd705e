package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/pkg/db"
	"casino-bot/internal/pkg/db/dbtest"
	"casino-bot/internal/repository"
)

type fixture struct {
	pool        *pgxpool.Pool
	tx          *db.Transactor
	balances    *BalanceLedger
	wagers      *WagerService
	accounts    *AccountService
	withdrawals *WithdrawalService
	referrals   *ReferralService
	settings    *repository.SettingsRepository
}

func newFixture(t *testing.T) *fixture {
	pool := dbtest.New(t)

	tx := db.NewTransactor(pool, 3)
	users := repository.NewUserRepository(pool)
	wallets := repository.NewWalletRepository(pool)
	ledger := repository.NewLedgerRepository(pool)
	settings := repository.NewSettingsRepository(pool)

	balances := NewBalanceLedger(tx, wallets, ledger)
	return &fixture{
		pool:        pool,
		tx:          tx,
		balances:    balances,
		wagers:      NewWagerService(balances, wallets),
		accounts:    NewAccountService(tx, users, wallets, ledger, balances),
		withdrawals: NewWithdrawalService(tx, balances, repository.NewWithdrawalRepository(pool), 1),
		referrals:   NewReferralService(tx, users, settings, repository.NewReferralRepository(pool), balances, 0),
		settings:    settings,
	}
}

func (f *fixture) user(t *testing.T, id, deposit int64) {
	t.Helper()
	ctx := context.Background()
	_, _, err := f.accounts.EnsureUser(ctx, id, "u", nil)
	require.NoError(t, err)
	if deposit > 0 {
		_, err = f.accounts.Deposit(ctx, id, deposit, "test", "seed")
		require.NoError(t, err)
	}
}

func (f *fixture) assertConsistent(t *testing.T, id int64) {
	t.Helper()
	report, err := f.accounts.Audit(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}

func betMeta(round string, bet int64) *model.Meta {
	return model.NewGameMeta(model.GameMeta{Game: "crash", RoundID: round, Bet: bet})
}

func TestSettleWager_ConcurrentWagersNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	const (
		n   = 16
		bet = int64(25)
		uid = int64(100)
	)
	f.user(t, uid, (n-1)*bet)

	var (
		wg               sync.WaitGroup
		ok, insufficient atomic.Int32
		unexpected       atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.wagers.SettleWager(context.Background(), uid, bet, betMeta("r", bet))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, apperr.ErrInsufficientFunds):
				insufficient.Add(1)
			default:
				unexpected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n-1), ok.Load())
	assert.Equal(t, int32(1), insufficient.Load())
	assert.Zero(t, unexpected.Load())

	w, err := f.accounts.GetWallet(context.Background(), uid)
	require.NoError(t, err)
	assert.Zero(t, w.Spendable)
	f.assertConsistent(t, uid)
}

func TestSettleWager_InsufficientLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 101, 10)

	_, err := f.wagers.SettleWager(ctx, 101, 11, betMeta("r", 11))
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	_, err = f.wagers.SettleWager(ctx, 101, 0, betMeta("r", 0))
	assert.True(t, apperr.IsValidation(err))

	entries, err := f.accounts.Statement(ctx, 101, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.EntryDeposit, entries[0].Type)
}

func TestBalanceLedger_CreditInRollsBackWithCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 102, 0)

	boom := errors.New("later step failed")
	err := f.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := f.balances.CreditIn(ctx, tx, 102, 500, model.EntryWin, betMeta("r", 100)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	w, err := f.accounts.GetWallet(ctx, 102)
	require.NoError(t, err)
	assert.Zero(t, w.Spendable)
	f.assertConsistent(t, 102)
}

func TestBalanceLedger_RejectsWrongTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 103, 100)

	_, err := f.balances.Credit(ctx, 103, 10, model.EntryBet, betMeta("r", 10))
	assert.True(t, apperr.IsValidation(err))

	_, err = f.balances.Credit(ctx, 103, -10, model.EntryWin, betMeta("r", 10))
	assert.True(t, apperr.IsValidation(err))

	_, err = f.balances.Debit(ctx, 103, 10, model.EntryWin, betMeta("r", 10))
	assert.True(t, apperr.IsValidation(err))

	f.assertConsistent(t, 103)
}

func TestWithdrawal_Flows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 104, 1000)

	wd, err := f.withdrawals.Request(ctx, 104, 300)
	require.NoError(t, err)

	w, err := f.accounts.GetWallet(ctx, 104)
	require.NoError(t, err)
	assert.Equal(t, int64(700), w.Spendable)
	assert.Equal(t, int64(300), w.Reserved)
	f.assertConsistent(t, 104)

	// Reserved funds cannot be wagered.
	_, err = f.wagers.SettleWager(ctx, 104, 701, betMeta("r", 701))
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	_, err = f.withdrawals.Reject(ctx, wd.ID, "bad address")
	require.NoError(t, err)
	w, err = f.accounts.GetWallet(ctx, 104)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), w.Spendable)
	assert.Zero(t, w.Reserved)
	f.assertConsistent(t, 104)

	wd, err = f.withdrawals.Request(ctx, 104, 400)
	require.NoError(t, err)
	_, err = f.withdrawals.Approve(ctx, wd.ID)
	require.NoError(t, err)
	_, err = f.withdrawals.Approve(ctx, wd.ID)
	assert.ErrorIs(t, err, repository.ErrWithdrawalNotFound)

	w, err = f.accounts.GetWallet(ctx, 104)
	require.NoError(t, err)
	assert.Equal(t, int64(600), w.Spendable)
	assert.Zero(t, w.Reserved)
	f.assertConsistent(t, 104)

	_, err = f.withdrawals.Request(ctx, 104, 601)
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
}

func TestReferral_OnLoss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 200, 0)

	ref := int64(200)
	_, _, err := f.accounts.EnsureUser(ctx, 201, "child", &ref)
	require.NoError(t, err)
	_, _, err = f.accounts.EnsureUser(ctx, 202, "self", func() *int64 { v := int64(202); return &v }())
	require.NoError(t, err)

	bonus, err := f.referrals.OnLoss(ctx, 201, 1000)
	require.NoError(t, err)
	assert.Zero(t, bonus, "percent defaults to zero")

	require.NoError(t, f.settings.SetReferralPercent(ctx, 5))

	bonus, err = f.referrals.OnLoss(ctx, 201, 999)
	require.NoError(t, err)
	assert.Equal(t, int64(49), bonus)

	bonus, err = f.referrals.OnLoss(ctx, 202, 1000)
	require.NoError(t, err)
	assert.Zero(t, bonus, "self referral is dropped")

	w, err := f.accounts.GetWallet(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(49), w.Spendable)
	f.assertConsistent(t, 200)
}

func TestBonus(t *testing.T) {
	assert.Equal(t, int64(0), Bonus(0, 10))
	assert.Equal(t, int64(0), Bonus(100, 0))
	assert.Equal(t, int64(10), Bonus(100, 10))
	assert.Equal(t, int64(0), Bonus(9, 10))
}

func TestAdjust(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 105, 100)

	w, err := f.accounts.Adjust(ctx, 105, -40, "chargeback", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(60), w.Spendable)

	_, err = f.accounts.Adjust(ctx, 105, -61, "too much", 1)
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	_, err = f.accounts.Adjust(ctx, 105, 0, "noop", 1)
	assert.True(t, apperr.IsValidation(err))

	f.assertConsistent(t, 105)
}

// Any sequence of wallet operations keeps spendable equal to the ledger sum.
func TestLedgerConsistency_Property(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var nextID atomic.Int64
	nextID.Store(10_000)

	rapid.Check(t, func(rt *rapid.T) {
		uid := nextID.Add(1)
		f.user(t, uid, rapid.Int64Range(0, 1000).Draw(rt, "deposit"))

		var pending []int64
		steps := rapid.IntRange(1, 15).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			amount := rapid.Int64Range(1, 400).Draw(rt, "amount")
			var err error
			switch rapid.IntRange(0, 5).Draw(rt, "op") {
			case 0:
				_, err = f.wagers.SettleWager(ctx, uid, amount, betMeta("p", amount))
			case 1:
				_, err = f.balances.Credit(ctx, uid, amount, model.EntryWin, betMeta("p", amount))
			case 2:
				var wd *model.Withdrawal
				wd, err = f.withdrawals.Request(ctx, uid, amount)
				if err == nil {
					pending = append(pending, wd.ID)
				}
			case 3:
				if len(pending) > 0 {
					_, err = f.withdrawals.Approve(ctx, pending[0])
					pending = pending[1:]
				}
			case 4:
				if len(pending) > 0 {
					_, err = f.withdrawals.Reject(ctx, pending[0], "prop")
					pending = pending[1:]
				}
			case 5:
				_, err = f.accounts.Adjust(ctx, uid, -amount, "prop", 0)
			}
			if err != nil && !errors.Is(err, apperr.ErrInsufficientFunds) {
				rt.Fatalf("unexpected error: %v", err)
			}
		}

		report, err := f.accounts.Audit(ctx, uid)
		if err != nil {
			rt.Fatalf("audit failed: %v", err)
		}
		if report.Spendable < 0 || report.Reserved < 0 {
			rt.Fatalf("negative balance: %+v", report)
		}
	})
}
