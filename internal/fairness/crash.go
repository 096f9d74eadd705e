package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Crash point bounds.
var (
	MinCrash = decimal.RequireFromString("1.01")
	MaxCrash = decimal.NewFromInt(10000)
)

// drawBits is the resolution of the uniform draw u = (n+1) / 2^drawBits.
const drawBits = 53

// CrashEngine generates crash points.
type CrashEngine struct {
	factor decimal.Decimal
	growth float64
	rnd    io.Reader
}

// NewCrashEngine creates a CrashEngine. rnd defaults to crypto/rand.
func NewCrashEngine(houseEdge, growthK float64, rnd io.Reader) *CrashEngine {
	if rnd == nil {
		rnd = rand.Reader
	}
	return &CrashEngine{factor: EdgeFactor(houseEdge), growth: growthK, rnd: rnd}
}

// Next draws a new crash point.
func (e *CrashEngine) Next() (decimal.Decimal, error) {
	var buf [8]byte
	if _, err := io.ReadFull(e.rnd, buf[:]); err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to draw crash point: %w", err)
	}
	n := binary.BigEndian.Uint64(buf[:]) >> (64 - drawBits)
	return CrashPointFromDraw(n, e.factor), nil
}

// CrashPointFromDraw maps n in [0, 2^53) to a crash point. With u = (n+1)/2^53
// in (0, 1], the point is clamp((1-edge)/u, MinCrash, MaxCrash) floored to 2dp.
func CrashPointFromDraw(n uint64, factor decimal.Decimal) decimal.Decimal {
	num := new(big.Int).Lsh(big.NewInt(1), drawBits)
	den := new(big.Int).SetUint64(n + 1)

	p := floorCents(num, den, factor)
	switch {
	case p.LessThan(MinCrash):
		return MinCrash
	case p.GreaterThan(MaxCrash):
		return MaxCrash
	}
	return p
}

// Multiplier returns the live multiplier max(1, e^(k*t)) for elapsed time.
func (e *CrashEngine) Multiplier(elapsed time.Duration) float64 {
	return GrowthMultiplier(e.growth, elapsed)
}

// GrowthMultiplier returns max(1, e^(k*t)) with t in seconds.
func GrowthMultiplier(k float64, elapsed time.Duration) float64 {
	return math.Max(1, math.Exp(k*elapsed.Seconds()))
}

// Reached reports whether the live multiplier hit the crash point.
func Reached(raw float64, crashAt decimal.Decimal) bool {
	return decimal.NewFromFloat(raw).GreaterThanOrEqual(crashAt)
}

// CashOutMultiplier floors a live multiplier to 2dp.
func CashOutMultiplier(raw float64) decimal.Decimal {
	return Floor2(decimal.NewFromFloat(raw))
}

// Commitment is a hash of the crash point bound to the round. It is logged at
// round start so an operator can later check the point was not changed.
func Commitment(roundID string, crashAt decimal.Decimal) string {
	sum := sha256.Sum256([]byte(roundID + ":" + crashAt.StringFixed(Places)))
	return hex.EncodeToString(sum[:])
}
