package admission

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"casino-bot/internal/model"
	"casino-bot/internal/pkg/clock"
)

// LimitsSource loads the global bet range, e.g. from the settings table.
type LimitsSource interface {
	GetBetLimits(ctx context.Context) (model.BetLimits, error)
}

// LimitsCache serves bet limits from memory for ttl. A failed or nonsensical
// fetch yields the fallback so betting keeps working.
type LimitsCache struct {
	src      LimitsSource
	ttl      time.Duration
	fallback model.BetLimits
	clock    clock.Clock

	mu        sync.Mutex
	cached    model.BetLimits
	fetchedAt time.Time
	loaded    bool
}

// NewLimitsCache creates a new LimitsCache.
func NewLimitsCache(src LimitsSource, ttl time.Duration, fallback model.BetLimits, clk clock.Clock) *LimitsCache {
	if clk == nil {
		clk = clock.System{}
	}
	return &LimitsCache{src: src, ttl: ttl, fallback: fallback, clock: clk}
}

// Get returns the current limits.
func (c *LimitsCache) Get(ctx context.Context) model.BetLimits {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.loaded && now.Sub(c.fetchedAt) < c.ttl {
		return c.cached
	}

	limits, err := c.src.GetBetLimits(ctx)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Failed to load bet limits, using defaults")
		limits = c.fallback
	case !limits.Valid():
		log.Warn().Int64("min", limits.MinBet).Int64("max", limits.MaxBet).Msg("Invalid bet limits, using defaults")
		limits = c.fallback
	}

	c.cached = limits
	c.fetchedAt = now
	c.loaded = true
	return limits
}
