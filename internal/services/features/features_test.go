package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalFuse/internal/domain/models"
)

func TestComputeLogReturns(t *testing.T) {
	assert.Nil(t, ComputeLogReturns([]float64{1}))
	r := ComputeLogReturns([]float64{100, 110, 0, 121})
	require.Len(t, r, 3)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.Equal(t, 0.0, r[1])
	assert.Equal(t, 0.0, r[2])
}

func TestRealizedVolatility(t *testing.T) {
	assert.Equal(t, 0.0, RealizedVolatility([]float64{0.1}, 5, 1))
	flat := []float64{0.01, 0.01, 0.01, 0.01}
	assert.InDelta(t, 0.0, RealizedVolatility(flat, 4, 252), 1e-12)
	assert.Greater(t, RealizedVolatility([]float64{0.01, -0.02, 0.03, -0.01}, 4, 252), 0.0)
}

func TestBarsPerYear(t *testing.T) {
	assert.InDelta(t, 365*24*60, BarsPerYear(time.Minute), 1e-6)
	assert.InDelta(t, 365*24*60, BarsPerYear(0), 1e-6)
}

func TestPriceHelpers(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 2.0/3.0, Momentum(up, 2), 1e-12)
	assert.Equal(t, 0.0, Momentum(up, 10))
	assert.InDelta(t, 1.0, RangePosition(up), 1e-12)
	assert.InDelta(t, 1.0, Efficiency(up), 1e-12)
	assert.Greater(t, ZScore(up), 1.0)
	assert.InDelta(t, 5.0/3.0, Trend(up), 1e-9)

	zig := []float64{1, 2, 1, 2, 1}
	assert.Equal(t, 0.0, Efficiency(zig))
	assert.Equal(t, 0.0, ZScore([]float64{3, 3, 3}))
	assert.Equal(t, 0.0, RangePosition([]float64{3, 3}))
}

func TestWindow_WarmupAndFeatures(t *testing.T) {
	w := NewWindow(40)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	f, ok := w.Add(models.Trade{Symbol: "AAPL", Price: 100, Volume: 1, Timestamp: start})
	require.True(t, ok)
	assert.Empty(t, f.Values)

	for i := 1; i < 60; i++ {
		f, ok = w.Add(models.Trade{Symbol: "AAPL", Price: 100 + float64(i), Volume: 1 + float64(i%3), Timestamp: start.Add(time.Duration(i) * time.Second)})
		require.True(t, ok)
	}
	assert.Equal(t, 40, w.Len("AAPL"))
	assert.Equal(t, 159.0, f.Price)
	for _, k := range []string{KeyReturn, KeyVolatility, KeyMomentum, KeyZScore, KeyRangePosition, KeyTrend, KeyEfficiency, KeyVolumeRatio, KeySignedVolume, KeyAcceleration} {
		_, present := f.Values[k]
		assert.True(t, present, k)
	}
	assert.Greater(t, f.Values[KeyMomentum], 0.0)
	assert.InDelta(t, 1.0, f.Values[KeyRangePosition], 1e-12)
	assert.InDelta(t, 1.0, f.Values[KeyEfficiency], 1e-12)
	assert.InDelta(t, 1.0, f.Values[KeySignedVolume], 1e-12)
}

func TestWindow_RejectsBadTrades(t *testing.T) {
	w := NewWindow(0)
	_, ok := w.Add(models.Trade{Symbol: "X", Price: 0})
	assert.False(t, ok)
	_, ok = w.Add(models.Trade{Price: 10})
	assert.False(t, ok)
	assert.Equal(t, 0, w.Len("X"))
}
