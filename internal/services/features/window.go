package features

import (
	"math"
	"sync"

	"github.com/montanaflynn/stats"

	"SignalFuse/internal/domain/models"
	xutil "SignalFuse/pkg/util"
)

// Feature keys published by Window.
const (
	KeyReturn        = "return"
	KeyVolatility    = "volatility"
	KeyMomentum      = "momentum"
	KeyZScore        = "zscore"
	KeyVolumeRatio   = "volume_ratio"
	KeySignedVolume  = "signed_volume"
	KeyRangePosition = "range_position"
	KeyTrend         = "trend"
	KeyAcceleration  = "acceleration"
	KeyEfficiency    = "efficiency"
)

const (
	DefaultWindow   = 120
	minWindowPrices = 20
	maxWindow       = 5000
)

// Window keeps a rolling per-symbol trade history and turns each trade into
// MarketFeatures. Safe for concurrent use.
type Window struct {
	size int

	mu      sync.Mutex
	symbols map[string]*series
}

type series struct {
	prices  []float64
	volumes []float64
}

// NewWindow keeps up to size prices per symbol. Zero selects DefaultWindow.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindow
	}
	size = xutil.ClampInt(size, minWindowPrices, maxWindow)
	return &Window{size: size, symbols: make(map[string]*series)}
}

// Add appends a trade and returns the features of the updated window.
// Trades with a non-positive price are ignored and return ok=false.
func (w *Window) Add(t models.Trade) (models.MarketFeatures, bool) {
	if t.Price <= 0 || math.IsNaN(t.Price) || t.Symbol == "" {
		return models.MarketFeatures{}, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.symbols[t.Symbol]
	if !ok {
		s = &series{}
		w.symbols[t.Symbol] = s
	}
	s.prices = append(s.prices, t.Price)
	s.volumes = append(s.volumes, math.Max(t.Volume, 0))
	if len(s.prices) > w.size {
		s.prices = s.prices[len(s.prices)-w.size:]
		s.volumes = s.volumes[len(s.volumes)-w.size:]
	}

	return models.MarketFeatures{
		Symbol:    t.Symbol,
		Timestamp: t.Timestamp,
		Price:     t.Price,
		Volume:    t.Volume,
		Values:    s.features(),
	}, true
}

// Len returns the number of buffered trades for symbol.
func (w *Window) Len(symbol string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.symbols[symbol]; ok {
		return len(s.prices)
	}
	return 0
}

// features is empty until the window holds enough prices.
func (s *series) features() map[string]float64 {
	out := make(map[string]float64, 10)
	if len(s.prices) < minWindowPrices {
		return out
	}
	rets := ComputeLogReturns(s.prices)
	out[KeyReturn] = rets[len(rets)-1]
	if sd, err := stats.StandardDeviationSample(rets); err == nil && !math.IsNaN(sd) {
		out[KeyVolatility] = sd
	}
	short := len(s.prices) / 4
	out[KeyMomentum] = Momentum(s.prices, short)
	out[KeyZScore] = ZScore(s.prices)
	out[KeyRangePosition] = RangePosition(s.prices)
	out[KeyTrend] = Trend(s.prices)
	out[KeyEfficiency] = Efficiency(s.prices)

	half := len(s.prices) / 2
	out[KeyAcceleration] = Momentum(s.prices[half:], short) - Momentum(s.prices[:half+1], short)

	meanVol, _ := stats.Mean(s.volumes)
	last := s.volumes[len(s.volumes)-1]
	if meanVol > 0 {
		out[KeyVolumeRatio] = last / meanVol
	}
	var signed, total float64
	for i, r := range rets {
		v := s.volumes[i+1]
		total += v
		switch {
		case r > 0:
			signed += v
		case r < 0:
			signed -= v
		}
	}
	if total > 0 {
		out[KeySignedVolume] = signed / total
	}
	for k, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[k] = 0
		}
	}
	return out
}
