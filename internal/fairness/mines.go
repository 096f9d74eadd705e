package fairness

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
)

// MinesEngine computes multipliers and mine layouts for an N×N grid.
type MinesEngine struct {
	cells  int
	factor decimal.Decimal
	rnd    io.Reader
}

// NewMinesEngine creates a MinesEngine. rnd defaults to crypto/rand.
func NewMinesEngine(gridSize int, houseEdge float64, rnd io.Reader) *MinesEngine {
	if rnd == nil {
		rnd = rand.Reader
	}
	return &MinesEngine{cells: gridSize * gridSize, factor: EdgeFactor(houseEdge), rnd: rnd}
}

// Cells returns the number of cells in the grid.
func (e *MinesEngine) Cells() int { return e.cells }

// ValidMines reports whether mines fits the grid.
func (e *MinesEngine) ValidMines(mines int) bool {
	return mines >= 1 && mines <= e.cells-1
}

// Multiplier returns the fair multiplier after safeOpened safe reveals.
func (e *MinesEngine) Multiplier(mines, safeOpened int) (decimal.Decimal, error) {
	return FairMultiplier(e.cells, mines, safeOpened, e.factor)
}

// FairMultiplier returns (1 / P) × factor floored to 2dp, where P is the
// chance of revealing safeOpened safe cells in a row:
//
//	P = ∏_{i=0}^{safeOpened-1} (safe - i) / (total - i)
func FairMultiplier(total, mines, safeOpened int, factor decimal.Decimal) (decimal.Decimal, error) {
	if mines < 1 || mines > total-1 {
		return decimal.Decimal{}, fmt.Errorf("mines %d out of range [1, %d]", mines, total-1)
	}
	safe := total - mines
	if safeOpened < 0 || safeOpened > safe {
		return decimal.Decimal{}, fmt.Errorf("safe opened %d out of range [0, %d]", safeOpened, safe)
	}

	num := big.NewInt(1) // ∏ (total - i)
	den := big.NewInt(1) // ∏ (safe - i)
	for i := 0; i < safeOpened; i++ {
		num.Mul(num, big.NewInt(int64(total-i)))
		den.Mul(den, big.NewInt(int64(safe-i)))
	}
	return floorCents(num, den, factor), nil
}

// PlaceMines picks mines distinct cells by a Fisher-Yates shuffle over
// crypto-quality randomness. The result is sorted.
func (e *MinesEngine) PlaceMines(mines int) ([]int, error) {
	if !e.ValidMines(mines) {
		return nil, fmt.Errorf("mines %d out of range [1, %d]", mines, e.cells-1)
	}

	cells := make([]int, e.cells)
	for i := range cells {
		cells[i] = i
	}
	for i := len(cells) - 1; i > 0; i-- {
		j, err := rand.Int(e.rnd, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, fmt.Errorf("failed to shuffle grid: %w", err)
		}
		k := int(j.Int64())
		cells[i], cells[k] = cells[k], cells[i]
	}

	out := append([]int(nil), cells[:mines]...)
	sort.Ints(out)
	return out, nil
}
