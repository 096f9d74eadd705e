package crash

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-bot/internal/fairness"
	"casino-bot/internal/game/gametest"
	"casino-bot/internal/model"
	"casino-bot/internal/notify"
	"casino-bot/internal/pkg/apperr"
	"casino-bot/internal/pkg/clock"
)

const user = int64(7)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// drawAt184 yields n = 2^52-1, i.e. u = 0.5 and a crash point of 1.84 at an 8% edge.
func drawAt184(rounds int) *bytes.Reader {
	one := []byte{0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xf8, 0x00}
	return bytes.NewReader(bytes.Repeat(one, rounds))
}

type fakeDisplay struct {
	mu      sync.Mutex
	shown   []string
	crashed int
	err     error
}

func (d *fakeDisplay) Update(_ context.Context, _ *Round, m decimal.Decimal) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, m.StringFixed(2))
	return d.err
}

func (d *fakeDisplay) Crashed(context.Context, *Round) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.crashed++
	return d.err
}

type fixture struct {
	table  *Table
	wallet *gametest.Wallet
	rec    *gametest.Recorder
	clock  *clock.Fake
}

func newFixture(t *testing.T, rounds int, balance int64, display Display) *fixture {
	t.Helper()
	w := gametest.NewWallet(map[int64]int64{user: balance})
	rec := &gametest.Recorder{}
	clk := clock.NewFake(epoch)
	engine := fairness.NewCrashEngine(0.08, 0.185, drawAt184(rounds))
	// A long tick keeps the background loop idle; tests drive step directly.
	tbl := NewTable(engine, gametest.Deps(w, rec), display, clk, Options{Tick: time.Hour, DisplayInterval: 900 * time.Millisecond})
	t.Cleanup(tbl.Close)
	return &fixture{table: tbl, wallet: w, rec: rec, clock: clk}
}

func TestStart_DebitsBetAndRejectsSecondRound(t *testing.T) {
	f := newFixture(t, 2, 1000, nil)

	r, err := f.table.Start(context.Background(), user, "alice", 100)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, r.State())
	assert.Equal(t, int64(900), f.wallet.Balance(user))

	entries := f.wallet.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.EntryBet, entries[0].Type)
	assert.Equal(t, int64(-100), entries[0].Amount)
	assert.Equal(t, r.ID, entries[0].Meta.Game.RoundID)

	_, hidden := r.CrashPoint()
	assert.False(t, hidden, "crash point stays hidden while running")

	_, err = f.table.Start(context.Background(), user, "alice", 100)
	assert.ErrorIs(t, err, apperr.ErrRoundActive)
	assert.Equal(t, int64(900), f.wallet.Balance(user))
}

func TestStart_FailedStakeLeavesNoRound(t *testing.T) {
	f := newFixture(t, 2, 50, nil)

	_, err := f.table.Start(context.Background(), user, "alice", 100)
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	_, ok := f.table.Active(user)
	assert.False(t, ok)
	assert.Empty(t, f.wallet.Entries())

	_, err = f.table.Start(context.Background(), user, "alice", 50)
	assert.NoError(t, err)
}

func TestStart_AdmissionRejectionTakesNothing(t *testing.T) {
	f := newFixture(t, 1, 1000, nil)
	f.table.deps.Guard = gametest.Guard{Err: &apperr.CooldownError{Remaining: 3 * time.Second}}

	_, err := f.table.Start(context.Background(), user, "alice", 100)
	var cd *apperr.CooldownError
	assert.True(t, errors.As(err, &cd))
	assert.Equal(t, int64(1000), f.wallet.Balance(user))
	assert.Equal(t, 0, f.table.Count())
}

func TestCashOut_PaysFlooredMultiplier(t *testing.T) {
	f := newFixture(t, 1, 1000, nil)

	_, err := f.table.Start(context.Background(), user, "alice", 100)
	require.NoError(t, err)

	// e^(0.185*3) = 1.7419...
	f.clock.Advance(3 * time.Second)
	res, err := f.table.CashOut(context.Background(), user)
	require.NoError(t, err)

	assert.False(t, res.Crashed)
	assert.Equal(t, "1.74", res.Multiplier.StringFixed(2))
	assert.Equal(t, int64(174), res.Payout)
	assert.Equal(t, int64(1074), res.Balance)
	assert.Equal(t, "1.84", res.CrashAt.StringFixed(2))

	entries := f.wallet.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, model.EntryWin, entries[1].Type)
	assert.Equal(t, "1.74", entries[1].Meta.Game.Multiplier)

	events := f.rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.OutcomeWin, events[0].Outcome)
	assert.Empty(t, f.rec.Losses())

	_, err = f.table.CashOut(context.Background(), user)
	assert.ErrorIs(t, err, apperr.ErrNoActiveRound)
}

func TestCashOut_AfterCrashPointSettlesAsLoss(t *testing.T) {
	f := newFixture(t, 1, 1000, nil)

	r, err := f.table.Start(context.Background(), user, "alice", 100)
	require.NoError(t, err)

	f.clock.Advance(3500 * time.Millisecond)
	res, err := f.table.CashOut(context.Background(), user)
	require.NoError(t, err)

	assert.True(t, res.Crashed)
	assert.Zero(t, res.Payout)
	assert.Equal(t, StateCrashed, r.State())
	assert.Equal(t, 0, f.wallet.Count(model.EntryWin))
	assert.Equal(t, []int64{100}, f.rec.Losses())

	point, revealed := r.CrashPoint()
	assert.True(t, revealed)
	assert.Equal(t, "1.84", point.StringFixed(2))
}

func TestCashOut_CreditFailureKeepsPayoutForRetry(t *testing.T) {
	f := newFixture(t, 1, 1000, nil)

	r, err := f.table.Start(context.Background(), user, "alice", 100)
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	f.wallet.CreditErr = apperr.ErrConflict
	_, err = f.table.CashOut(context.Background(), user)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, StateCashedOut, r.State())
	assert.Equal(t, 1, f.table.Count(), "round is kept until the payout commits")
	assert.Empty(t, f.rec.Events())

	_, err = f.table.Start(context.Background(), user, "alice", 100)
	assert.ErrorIs(t, err, apperr.ErrRoundActive)

	// Past the crash point: the locked-in multiplier still pays.
	f.wallet.CreditErr = nil
	f.clock.Advance(10 * time.Second)
	res, err := f.table.CashOut(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, res.Crashed)
	assert.Equal(t, "1.20", res.Multiplier.StringFixed(2))
	assert.Equal(t, int64(120), res.Payout)
	assert.Equal(t, int64(1020), f.wallet.Balance(user))
	assert.Equal(t, 1, f.wallet.Count(model.EntryWin))
	assert.Empty(t, f.rec.Losses())
	assert.Equal(t, 0, f.table.Count())
	require.Len(t, f.rec.Events(), 1)

	_, err = f.table.CashOut(context.Background(), user)
	assert.ErrorIs(t, err, apperr.ErrNoActiveRound)
}

func TestStep_CrashesAndNotifies(t *testing.T) {
	d := &fakeDisplay{}
	f := newFixture(t, 1, 1000, d)

	r, err := f.table.Start(context.Background(), user, "alice", 100)
	require.NoError(t, err)

	f.clock.Advance(3 * time.Second)
	assert.True(t, f.table.step(r))

	f.clock.Advance(500 * time.Millisecond)
	assert.False(t, f.table.step(r))

	assert.Equal(t, StateCrashed, r.State())
	assert.Equal(t, 1, d.crashed)
	assert.Equal(t, []int64{100}, f.rec.Losses())
	assert.Equal(t, 0, f.table.Count())

	select {
	case <-r.Done():
	default:
		t.Fatal("done channel not closed")
	}

	assert.False(t, f.table.step(r), "ended round does not tick")
	assert.Len(t, f.rec.Events(), 1)
}

func TestStep_ThrottlesDisplay(t *testing.T) {
	d := &fakeDisplay{err: errors.New("message not modified")}
	f := newFixture(t, 1, 1000, d)

	r, err := f.table.Start(context.Background(), user, "alice", 100)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		f.clock.Advance(500 * time.Millisecond)
		assert.True(t, f.table.step(r), "display errors are swallowed")
	}

	// 0.5s: too early. 1.0s: 1.20. 1.5s: too early. 2.0s: 1.44.
	assert.Equal(t, []string{"1.20", "1.44"}, d.shown)
}

func TestStop_KeepsBet(t *testing.T) {
	f := newFixture(t, 1, 1000, nil)

	r, err := f.table.Start(context.Background(), user, "alice", 100)
	require.NoError(t, err)

	require.NoError(t, f.table.Stop(user))
	assert.Equal(t, StateStopped, r.State())
	assert.Equal(t, int64(900), f.wallet.Balance(user))
	assert.Len(t, f.wallet.Entries(), 1)
	assert.Empty(t, f.rec.Events())

	assert.False(t, f.table.step(r))
	assert.ErrorIs(t, f.table.Stop(user), apperr.ErrNoActiveRound)
	_, err = f.table.CashOut(context.Background(), user)
	assert.ErrorIs(t, err, apperr.ErrNoActiveRound)
}

func TestCashOutRacingCrash_SettlesOnce(t *testing.T) {
	const rounds = 50
	f := newFixture(t, rounds, 100*rounds, nil)

	for i := 0; i < rounds; i++ {
		f.clock.Set(epoch)
		r, err := f.table.Start(context.Background(), user, "alice", 100)
		require.NoError(t, err)
		f.clock.Advance(3 * time.Second)

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _ = f.table.CashOut(context.Background(), user)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.table.CashOut(context.Background(), user)
		}()
		go func() {
			defer wg.Done()
			f.clock.Advance(500 * time.Millisecond)
			f.table.step(r)
		}()
		wg.Wait()

		assert.NotEqual(t, StateRunning, r.State())
	}

	wins := f.wallet.Count(model.EntryWin)
	losses := len(f.rec.Losses())
	assert.Equal(t, rounds, wins+losses)
	assert.Len(t, f.rec.Events(), rounds)
}

func TestRunLoop_CrashesOnTick(t *testing.T) {
	w := gametest.NewWallet(map[int64]int64{user: 1000})
	rec := &gametest.Recorder{}
	clk := clock.NewFake(epoch)
	engine := fairness.NewCrashEngine(0.08, 0.185, drawAt184(1))
	tbl := NewTable(engine, gametest.Deps(w, rec), nil, clk, Options{Tick: 5 * time.Millisecond})
	defer tbl.Close()

	r, err := tbl.Start(context.Background(), user, "alice", 100)
	require.NoError(t, err)

	clk.Advance(10 * time.Second)
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("round did not crash")
	}
	assert.Equal(t, StateCrashed, r.State())
	assert.Eventually(t, func() bool { return len(rec.Losses()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestClose_StopsLoops(t *testing.T) {
	f := newFixture(t, 1, 1000, nil)
	_, err := f.table.Start(context.Background(), user, "alice", 100)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		f.table.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "cashed_out", StateCashedOut.String())
	assert.Equal(t, "unknown", State(99).String())
}
