package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowConsumesAndRefills(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(WithClock(func() time.Time { return now }))

	assert.True(t, l.Allow("ip:/api/predictions", 2, 1))
	assert.True(t, l.Allow("ip:/api/predictions", 2, 1))
	assert.False(t, l.Allow("ip:/api/predictions", 2, 1))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("ip:/api/predictions", 2, 1))
	assert.False(t, l.Allow("ip:/api/predictions", 2, 1))
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	assert.True(t, l.Allow("a", 1, 0))
	assert.False(t, l.Allow("a", 1, 0))
	assert.True(t, l.Allow("b", 1, 0))
	assert.Equal(t, 2, l.Len())
}

func TestIdleBucketsAreSwept(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(WithClock(func() time.Time { return now }), WithIdleTTL(time.Minute))
	l.Allow("stale", 1, 1)

	now = now.Add(2 * time.Minute)
	for i := 0; i < 1024; i++ {
		l.Allow("fresh", 5000, 1)
	}
	assert.Equal(t, 1, l.Len())
}
