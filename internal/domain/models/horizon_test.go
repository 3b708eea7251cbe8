package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHorizon(t *testing.T) {
	assert.Equal(t, Horizon4h, NormalizeHorizon("4h"))
	assert.Equal(t, Horizon(""), NormalizeHorizon("2h"))
	assert.Equal(t, Horizon(""), NormalizeHorizon(""))
}

func TestHorizonDuration(t *testing.T) {
	assert.Equal(t, 15*time.Minute, Horizon15m.Duration())
	assert.Equal(t, 24*time.Hour, Horizon1d.Duration())
	assert.Equal(t, time.Hour, Horizon("").Duration())
}

func TestDirectionHelpers(t *testing.T) {
	d, ok := ParseDirection("down")
	assert.True(t, ok)
	assert.Equal(t, -1, d.Sign())
	_, ok = ParseDirection("sideways")
	assert.False(t, ok)
	assert.Equal(t, DirectionUp, DirectionFromSign(3))
	assert.Equal(t, DirectionNeutral, DirectionFromSign(0))
}

func TestMarketFeaturesValue(t *testing.T) {
	f := MarketFeatures{Values: map[string]float64{"zscore": 1.5}}
	assert.Equal(t, 1.5, f.Value("zscore", 0))
	assert.Equal(t, -1.0, f.Value("missing", -1))
	assert.Equal(t, 2.0, MarketFeatures{}.Value("x", 2))
}
