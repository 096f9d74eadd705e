// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/pkg/db/dbtest"
)

func gameMeta(round string, bet int64) *model.Meta {
	return model.NewGameMeta(model.GameMeta{Game: "crash", RoundID: round, Bet: bet})
}

func TestUserRepository_Upsert(t *testing.T) {
	pool := dbtest.New(t)
	users := NewUserRepository(pool)
	ctx := context.Background()

	u, created, err := users.Upsert(ctx, 1, "alice", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, u.ReferrerID)

	ref := int64(1)
	u, created, err = users.Upsert(ctx, 2, "bob", &ref)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, u.ReferrerID)
	assert.Equal(t, int64(1), *u.ReferrerID)

	// A second upsert refreshes the username but keeps the referrer.
	u, created, err = users.Upsert(ctx, 2, "bobby", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "bobby", u.Username)
	require.NotNil(t, u.ReferrerID)

	_, err = users.GetByID(ctx, 99)
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}

func TestWalletRepository_ConditionalUpdates(t *testing.T) {
	pool := dbtest.New(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	wallets := NewWalletRepository(pool)

	_, _, err := users.Upsert(ctx, 10, "carol", nil)
	require.NoError(t, err)
	require.NoError(t, wallets.Create(ctx, 10))

	w, err := wallets.Credit(ctx, 10, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), w.Spendable)

	_, err = wallets.Debit(ctx, 10, 101)
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	w, err = wallets.Reserve(ctx, 10, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(60), w.Spendable)
	assert.Equal(t, int64(40), w.Reserved)

	_, err = wallets.Consume(ctx, 10, 41)
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	w, err = wallets.Release(ctx, 10, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(75), w.Spendable)
	assert.Equal(t, int64(25), w.Reserved)

	w, err = wallets.Consume(ctx, 10, 25)
	require.NoError(t, err)
	assert.Equal(t, int64(75), w.Spendable)
	assert.Zero(t, w.Reserved)

	_, err = wallets.Debit(ctx, 404, 1)
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}

func TestWalletRepository_ConcurrentDebit(t *testing.T) {
	pool := dbtest.New(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	wallets := NewWalletRepository(pool)

	const (
		n   = 20
		bet = int64(50)
	)
	_, _, err := users.Upsert(ctx, 20, "dave", nil)
	require.NoError(t, err)
	require.NoError(t, wallets.Create(ctx, 20))
	_, err = wallets.Credit(ctx, 20, (n-1)*bet)
	require.NoError(t, err)

	var (
		wg           sync.WaitGroup
		ok, declined atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := wallets.Debit(ctx, 20, bet)
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, apperr.ErrInsufficientFunds):
				declined.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n-1), ok.Load())
	assert.Equal(t, int32(1), declined.Load())

	w, err := wallets.Get(ctx, 20)
	require.NoError(t, err)
	assert.Zero(t, w.Spendable)
}

func TestLedgerRepository_AppendAndRead(t *testing.T) {
	pool := dbtest.New(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	ledger := NewLedgerRepository(pool)

	_, _, err := users.Upsert(ctx, 30, "erin", nil)
	require.NoError(t, err)

	_, err = ledger.Append(ctx, 30, model.EntryDeposit, 500, model.NewDepositMeta(model.DepositMeta{Provider: "manual", ExternalID: "d1"}))
	require.NoError(t, err)
	_, err = ledger.Append(ctx, 30, model.EntryBet, -100, gameMeta("r1", 100))
	require.NoError(t, err)
	win, err := ledger.Append(ctx, 30, model.EntryWin, 150, gameMeta("r1", 100))
	require.NoError(t, err)

	_, err = ledger.Append(ctx, 30, model.EntryWin, 10, nil)
	assert.Error(t, err)

	sum, err := ledger.SumByUser(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(550), sum)

	entries, err := ledger.ListByUser(ctx, 30, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, win.ID, entries[0].ID)
	require.NotNil(t, entries[0].Meta)
	assert.Equal(t, "r1", entries[0].Meta.Game.RoundID)

	totals, err := ledger.TotalsByType(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(-100), totals[model.EntryBet])
	assert.Equal(t, int64(150), totals[model.EntryWin])
}

func TestSettingsRepository(t *testing.T) {
	pool := dbtest.New(t)
	ctx := context.Background()
	settings := NewSettingsRepository(pool)

	l, err := settings.GetBetLimits(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.BetLimits{MinBet: 10, MaxBet: 10000}, l)

	require.NoError(t, settings.SetBetLimits(ctx, model.BetLimits{MinBet: 5, MaxBet: 50}))
	l, err = settings.GetBetLimits(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), l.MaxBet)

	require.NoError(t, settings.SetReferralPercent(ctx, 7))
	p, err := settings.GetReferralPercent(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p)
}

func TestWithdrawalRepository_ClosesOnce(t *testing.T) {
	pool := dbtest.New(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	withdrawals := NewWithdrawalRepository(pool)

	_, _, err := users.Upsert(ctx, 40, "frank", nil)
	require.NoError(t, err)

	w, err := withdrawals.Create(ctx, 40, 300)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalPending, w.Status)

	pending, err := withdrawals.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	closed, err := withdrawals.ClosePending(ctx, w.ID, model.WithdrawalCompleted)
	require.NoError(t, err)
	assert.NotNil(t, closed.ProcessedAt)

	_, err = withdrawals.ClosePending(ctx, w.ID, model.WithdrawalRejected)
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)
}
