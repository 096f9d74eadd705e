package admission

import (
	"context"
	"sync"
	"time"

	"casino-bot/internal/pkg/clock"
)

// CooldownStore atomically checks and stamps the last accepted wager per key.
type CooldownStore interface {
	// Acquire stamps key and returns ok=true when no stamp younger than window
	// exists. Otherwise it leaves the stamp alone and returns the time left.
	Acquire(ctx context.Context, key string, window time.Duration) (remaining time.Duration, ok bool, err error)
}

// MemoryCooldowns keeps stamps in process memory. Stamps are lost on restart,
// which can only shorten a cooldown.
type MemoryCooldowns struct {
	clock clock.Clock

	mu     sync.Mutex
	stamps map[string]time.Time
	calls  int
}

// pruneEvery bounds how often expired stamps are swept.
const pruneEvery = 1024

// NewMemoryCooldowns creates an empty in-memory store.
func NewMemoryCooldowns(clk clock.Clock) *MemoryCooldowns {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoryCooldowns{clock: clk, stamps: make(map[string]time.Time)}
}

// Acquire implements CooldownStore.
func (m *MemoryCooldowns) Acquire(_ context.Context, key string, window time.Duration) (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	m.calls++
	if m.calls%pruneEvery == 0 {
		m.prune(now, window)
	}

	if last, ok := m.stamps[key]; ok {
		if elapsed := now.Sub(last); elapsed < window {
			return window - elapsed, false, nil
		}
	}
	m.stamps[key] = now
	return 0, true, nil
}

func (m *MemoryCooldowns) prune(now time.Time, window time.Duration) {
	for k, t := range m.stamps {
		if now.Sub(t) >= window {
			delete(m.stamps, k)
		}
	}
}

// Len returns the number of live stamps.
func (m *MemoryCooldowns) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stamps)
}
