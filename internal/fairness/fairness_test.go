package fairness

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFairMultiplier_Table(t *testing.T) {
	factor := EdgeFactor(0.06)

	tests := []struct {
		mines, safeOpened int
		want              string
	}{
		{3, 1, "1.06"},
		{3, 2, "1.22"},
		{1, 0, "0.94"},
		{1, 1, "0.97"},
		{24, 1, "23.5"},
		{5, 20, "49942.2"},
	}

	for _, tt := range tests {
		got, err := FairMultiplier(25, tt.mines, tt.safeOpened, factor)
		require.NoError(t, err)
		assert.True(t, dec(tt.want).Equal(got), "mines=%d opened=%d: want %s got %s", tt.mines, tt.safeOpened, tt.want, got)
	}
}

func TestFairMultiplier_Errors(t *testing.T) {
	factor := EdgeFactor(0.06)

	_, err := FairMultiplier(25, 0, 0, factor)
	assert.Error(t, err)
	_, err = FairMultiplier(25, 25, 0, factor)
	assert.Error(t, err)
	_, err = FairMultiplier(25, 3, 23, factor)
	assert.Error(t, err)
	_, err = FairMultiplier(25, 3, -1, factor)
	assert.Error(t, err)
}

func TestFairMultiplier_StrictlyIncreasing(t *testing.T) {
	e := NewMinesEngine(5, 0.06, nil)

	rapid.Check(t, func(t *rapid.T) {
		mines := rapid.IntRange(1, 24).Draw(t, "mines")
		opened := rapid.IntRange(0, 25-mines-1).Draw(t, "opened")

		a, err := e.Multiplier(mines, opened)
		if err != nil {
			t.Fatal(err)
		}
		b, err := e.Multiplier(mines, opened+1)
		if err != nil {
			t.Fatal(err)
		}
		if !b.GreaterThan(a) {
			t.Fatalf("multiplier not increasing: %s -> %s", a, b)
		}
		if !a.Equal(a.Truncate(Places)) {
			t.Fatalf("multiplier %s has more than 2 places", a)
		}
	})
}

func TestPayout(t *testing.T) {
	assert.Equal(t, int64(106), Payout(100, dec("1.06")))
	assert.Equal(t, int64(13), Payout(7, dec("1.99")))
	assert.Equal(t, int64(0), Payout(1, dec("0.94")))
}

func TestCrashPointFromDraw(t *testing.T) {
	factor := EdgeFactor(0.08)
	const top = uint64(1)<<drawBits - 1

	// u = 1
	assert.True(t, MinCrash.Equal(CrashPointFromDraw(top, factor)))
	// u = 2^-53
	assert.True(t, MaxCrash.Equal(CrashPointFromDraw(0, factor)))
	// u = 0.5
	assert.True(t, dec("1.84").Equal(CrashPointFromDraw(1<<52-1, factor)))
	// u = 0.25
	assert.True(t, dec("3.68").Equal(CrashPointFromDraw(1<<51-1, factor)))
}

func TestCrashPoint_Bounds(t *testing.T) {
	factor := EdgeFactor(0.08)

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Uint64Range(0, 1<<drawBits-1).Draw(t, "n")
		p := CrashPointFromDraw(n, factor)

		if p.LessThan(MinCrash) || p.GreaterThan(MaxCrash) {
			t.Fatalf("crash point %s out of bounds", p)
		}
		if !p.Equal(p.Truncate(Places)) {
			t.Fatalf("crash point %s has more than 2 places", p)
		}
	})
}

func TestCrashEngine_Next(t *testing.T) {
	var buf bytes.Buffer
	// top 53 bits = 2^52 - 1, so u = 0.5
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint64(1<<52-1)<<11))

	e := NewCrashEngine(0.08, 0.185, &buf)
	p, err := e.Next()
	require.NoError(t, err)
	assert.Equal(t, "1.84", p.StringFixed(2))

	_, err = e.Next()
	assert.Error(t, err, "reader exhausted")
}

func TestGrowthMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, GrowthMultiplier(0.185, 0))
	assert.Equal(t, 1.0, GrowthMultiplier(0.185, -time.Second))
	assert.InDelta(t, 2.0, GrowthMultiplier(0.185, time.Duration(3.7467*float64(time.Second))), 0.001)

	prev := 0.0
	for ms := 0; ms < 20000; ms += 120 {
		m := GrowthMultiplier(0.185, time.Duration(ms)*time.Millisecond)
		assert.GreaterOrEqual(t, m, prev)
		prev = m
	}
}

func TestReachedAndCashOut(t *testing.T) {
	crashAt := dec("2.00")
	assert.False(t, Reached(1.9999, crashAt))
	assert.True(t, Reached(2.0, crashAt))
	assert.True(t, Reached(2.5, crashAt))

	assert.Equal(t, "1.99", CashOutMultiplier(1.9999).StringFixed(2))
	assert.Equal(t, "1.06", CashOutMultiplier(1.0699999).StringFixed(2))
}

func TestCommitment(t *testing.T) {
	a := Commitment("round-1", dec("1.84"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Commitment("round-1", dec("1.840")))
	assert.NotEqual(t, a, Commitment("round-2", dec("1.84")))
}

func TestPlaceMines(t *testing.T) {
	e := NewMinesEngine(5, 0.06, nil)

	rapid.Check(t, func(t *rapid.T) {
		mines := rapid.IntRange(1, 24).Draw(t, "mines")
		cells, err := e.PlaceMines(mines)
		if err != nil {
			t.Fatal(err)
		}
		if len(cells) != mines {
			t.Fatalf("want %d mines, got %d", mines, len(cells))
		}
		seen := map[int]bool{}
		for _, c := range cells {
			if c < 0 || c >= 25 || seen[c] {
				t.Fatalf("bad layout %v", cells)
			}
			seen[c] = true
		}
	})

	_, err := e.PlaceMines(0)
	assert.Error(t, err)
	_, err = e.PlaceMines(25)
	assert.Error(t, err)
}
