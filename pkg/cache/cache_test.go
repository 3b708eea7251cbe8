package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Symbol     string  `json:"symbol"`
	Confidence float64 `json:"confidence"`
}

func TestMemoryCacheRoundTripAndExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryCleanup(0), WithMemoryClock(func() time.Time { return now }))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "p", payload{"BTCUSD", 0.7}, time.Minute))
	got, err := GetTyped[payload](ctx, mc, "p")
	require.NoError(t, err)
	assert.Equal(t, payload{"BTCUSD", 0.7}, got)

	now = now.Add(2 * time.Minute)
	var again payload
	assert.ErrorIs(t, mc.Get(ctx, "p", &again), ErrCacheMiss)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(0), WithMemoryClock(func() time.Time { return now }))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	now = now.Add(time.Second)
	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.Equal(t, 2, mc.Len())
	ok, _ := mc.Exists(ctx, "b")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "a", "c")
	assert.True(t, ok)
}

// countingRemote is an in-memory L2 that counts reads.
type countingRemote struct {
	*MemoryCache
	gets int
	fail error
}

func (r *countingRemote) Get(ctx context.Context, key string, dest interface{}) error {
	r.gets++
	if r.fail != nil {
		return r.fail
	}
	return r.MemoryCache.Get(ctx, key, dest)
}

func (r *countingRemote) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	if r.fail != nil {
		return r.fail
	}
	return r.MemoryCache.Set(ctx, key, value, exp)
}

func TestLayeredCachePromotesFromRemote(t *testing.T) {
	remote := &countingRemote{MemoryCache: NewMemoryCache(WithMemoryCleanup(0))}
	lc := NewLayeredCache(remote, WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, remote.MemoryCache.Set(ctx, "snap", payload{"ETHUSD", 0.4}, time.Hour))

	var p payload
	require.NoError(t, lc.Get(ctx, "snap", &p))
	require.NoError(t, lc.Get(ctx, "snap", &p))
	assert.Equal(t, "ETHUSD", p.Symbol)
	assert.Equal(t, 1, remote.gets)
}

func TestLayeredCacheWriteThroughFailure(t *testing.T) {
	remote := &countingRemote{MemoryCache: NewMemoryCache(WithMemoryCleanup(0)), fail: errors.New("redis down")}
	lc := NewLayeredCache(remote)
	defer lc.Close()
	ctx := context.Background()

	assert.Error(t, lc.Set(ctx, "k", "v", time.Minute))
	var s string
	assert.Error(t, lc.Get(ctx, "k", &s))
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "signalfuse:snapshot", GenerateKey("signalfuse", "snapshot"))
	assert.Equal(t, "snapshot", GenerateKey("", "snapshot"))
	assert.Equal(t, "pred:BTCUSD:1h", GenerateKeyWithParams("pred", "BTCUSD", "1h"))
}
