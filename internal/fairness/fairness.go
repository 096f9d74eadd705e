// Package fairness holds the odds math for crash and mines. Everything here is
// a pure function of its inputs except the random draws, which take an
// io.Reader so tests can supply fixed bytes.
//
// Multipliers are floored to 2 decimal places and payouts are floored to whole
// units, so the house never pays above the fair amount.
package fairness

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Places is the precision of every displayed or paid multiplier.
const Places = 2

// Payout returns floor(bet * multiplier).
func Payout(bet int64, multiplier decimal.Decimal) int64 {
	return decimal.NewFromInt(bet).Mul(multiplier).Floor().IntPart()
}

// Floor2 floors a non-negative value to 2 decimal places.
func Floor2(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(Places)
}

// EdgeFactor returns 1 - houseEdge as an exact decimal.
func EdgeFactor(houseEdge float64) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(decimal.NewFromFloat(houseEdge))
}

// floorCents returns floor(num/den * factor * 100) / 100, computed on integers.
func floorCents(num, den *big.Int, factor decimal.Decimal) decimal.Decimal {
	coef := factor.Coefficient()
	exp := factor.Exponent()

	n := new(big.Int).Mul(num, coef)
	n.Mul(n, big.NewInt(100))
	d := new(big.Int).Set(den)

	if exp >= 0 {
		n.Mul(n, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	} else {
		d.Mul(d, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil))
	}

	cents := new(big.Int).Quo(n, d)
	return decimal.NewFromBigInt(cents, -Places)
}
