// Package feeds supplies the per-cycle inputs the engine consumes: the
// entity snapshot from the market collaborator and the active seismic event
// list. Both providers substitute a last-known-good value when the upstream
// endpoint is unreachable, so a feed failure degrades a cycle instead of
// failing it.
package feeds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/errors"
)

// KV is the small key-value surface the snapshot cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisKV backs the cache with redis
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(addr, password string, db int) *RedisKV {
	return &RedisKV{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// MemoryKV is a process-local fallback used in tests and when redis is not
// configured
type MemoryKV struct {
	mu      sync.RWMutex
	values  map[string]string
	expires map[string]time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
	}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return "", errors.NewWithKind(errors.KindNotFound, "key not found: "+key)
	}
	if exp, has := m.expires[key]; has && time.Now().After(exp) {
		return "", errors.NewWithKind(errors.KindNotFound, "key expired: "+key)
	}
	return v, nil
}

func (m *MemoryKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	if ttl > 0 {
		m.expires[key] = time.Now().Add(ttl)
	} else {
		delete(m.expires, key)
	}
	return nil
}

const (
	marketSnapshotKey = "riskd:snapshot:market"
	seismicEventsKey  = "riskd:snapshot:seismic"
)

// Cache stores the last-known-good feed payloads as JSON.
type Cache struct {
	kv  KV
	ttl time.Duration
}

func NewCache(kv KV, ttl time.Duration) *Cache {
	return &Cache{kv: kv, ttl: ttl}
}

func (c *Cache) store(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, key, string(data), c.ttl)
}

func (c *Cache) load(ctx context.Context, key string, v interface{}) error {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), v)
}
