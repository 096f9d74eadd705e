package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCooldowns shares stamps between processes. Each stamp is a key that
// expires after the window.
type RedisCooldowns struct {
	client *redis.Client
	prefix string
}

// NewRedisCooldowns creates a store on client. Keys are prefix + key.
func NewRedisCooldowns(client *redis.Client, prefix string) *RedisCooldowns {
	return &RedisCooldowns{client: client, prefix: prefix}
}

// Returns -1 when the stamp was set, otherwise the remaining TTL in ms.
var acquireScript = redis.NewScript(`
	if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
		return -1
	end
	local ttl = redis.call("PTTL", KEYS[1])
	if ttl < 0 then
		redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
		return -1
	end
	return ttl
`)

// Acquire implements CooldownStore.
func (r *RedisCooldowns) Acquire(ctx context.Context, key string, window time.Duration) (time.Duration, bool, error) {
	res, err := acquireScript.Run(ctx, r.client, []string{r.prefix + key}, time.Now().UnixMilli(), window.Milliseconds()).Int64()
	if err != nil {
		return 0, false, fmt.Errorf("failed to acquire cooldown: %w", err)
	}
	if res < 0 {
		return 0, true, nil
	}
	return time.Duration(res) * time.Millisecond, false, nil
}
