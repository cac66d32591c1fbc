package registry

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateCache is an optional, strictly ephemeral store of the last known
// payload for a friendly_name, backed by Redis with a bounded TTL. MQTT
// retained messages remain the single source of truth per spec.md's "no
// persistence across restarts" non-goal. Neither the Registry nor
// cmd/zigbee-bridge constructs or reads a StateCache, so the ZB_REDIS_*
// settings loaded by config have no effect on entity state. NewStateCache
// returns nil (a no-op cache) when no Redis address is given.
type StateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateCache connects lazily; redis.NewClient never dials until the
// first command, matching the teacher's device-hub redis wiring.
func NewStateCache(addr, password string, db int, ttl time.Duration) *StateCache {
	if addr == "" {
		return nil
	}
	return &StateCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		ttl:    ttl,
	}
}

const keyPrefix = "zigbee-bridge:lastpayload:"

// Put stores payload for name with the configured TTL. Failures are logged
// by the caller and never propagated as fatal, per spec.md §7.
func (c *StateCache) Put(ctx context.Context, name string, payload []byte) error {
	if c == nil {
		return nil
	}
	return c.client.Set(ctx, keyPrefix+name, payload, c.ttl).Err()
}

// Get returns the cached payload for name, if present and unexpired.
func (c *StateCache) Get(ctx context.Context, name string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	v, err := c.client.Get(ctx, keyPrefix+name).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

// Close releases the underlying connection pool.
func (c *StateCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
