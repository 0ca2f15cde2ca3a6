package feeds

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/errors"
)

func TestMemoryKVRoundTrip(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", 0))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestMemoryKVMissingKey(t *testing.T) {
	kv := NewMemoryKV()
	_, err := kv.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestMemoryKVExpiry(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, err := kv.Get(ctx, "k")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	// Overwriting without a ttl clears the old deadline.
	require.NoError(t, kv.Set(ctx, "k", "v2", 0))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestCacheStoreLoad(t *testing.T) {
	cache := NewCache(NewMemoryKV(), time.Minute)
	ctx := context.Background()

	type payload struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}
	require.NoError(t, cache.store(ctx, "riskd:test", payload{Name: "nikkei", Value: 42}))

	var got payload
	require.NoError(t, cache.load(ctx, "riskd:test", &got))
	assert.Equal(t, payload{Name: "nikkei", Value: 42}, got)

	assert.Error(t, cache.load(ctx, "riskd:absent", &got))
}
