package modifiers

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
)

const (
	fractalMinPrices = 20
	hurstTrending    = 0.6
)

// FractalTimeCompression estimates the Hurst exponent of recent prices.
type FractalTimeCompression struct {
	base
	prices *Ring[float64]
	hurst  float64
	valid  bool
}

func NewFractalTimeCompression() *FractalTimeCompression {
	return &FractalTimeCompression{
		base:   base{name: NameFractalTime, reg: 0.85},
		prices: NewRing[float64](256),
		hurst:  0.5,
	}
}

func (f *FractalTimeCompression) Update(tc models.TickContext) {
	if tc.Price <= 0 || math.IsNaN(tc.Price) || math.IsInf(tc.Price, 0) {
		return
	}
	f.prices.Push(tc.Price)
	if f.prices.Len() < fractalMinPrices {
		return
	}
	f.hurst, f.valid = Hurst(logReturns(f.prices.Values()))
}

// Hurst returns the rescaled-range Hurst estimate in [0,1] and whether it could be computed.
func Hurst(series []float64) (float64, bool) {
	n := len(series)
	if n < fractalMinPrices-1 {
		return 0.5, false
	}
	var xs, ys []float64
	for size := 8; size <= n/2; size *= 2 {
		rs := meanRescaledRange(series, size)
		if rs > 0 {
			xs = append(xs, math.Log(float64(size)))
			ys = append(ys, math.Log(rs))
		}
	}
	if len(xs) >= 2 {
		_, beta := stat.LinearRegression(xs, ys, nil, false)
		if math.IsNaN(beta) {
			return 0.5, false
		}
		return clamp01(beta), true
	}
	rs := rescaledRange(series)
	if rs <= 0 {
		return 0.5, false
	}
	return clamp01(math.Log(rs) / math.Log(float64(n))), true
}

func meanRescaledRange(series []float64, size int) float64 {
	sum, cnt := 0.0, 0
	for start := 0; start+size <= len(series); start += size {
		if rs := rescaledRange(series[start : start+size]); rs > 0 {
			sum += rs
			cnt++
		}
	}
	if cnt == 0 {
		return 0
	}
	return sum / float64(cnt)
}

func rescaledRange(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var cum, lo, hi, ss float64
	for _, x := range xs {
		cum += x - m
		lo = math.Min(lo, cum)
		hi = math.Max(hi, cum)
		ss += (x - m) * (x - m)
	}
	sd := math.Sqrt(ss / float64(len(xs)))
	if sd == 0 {
		return 0
	}
	return (hi - lo) / sd
}

func logReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(prices[i]/prices[i-1]))
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// HurstExponent returns the latest estimate; 0.5 until enough prices arrive.
func (f *FractalTimeCompression) HurstExponent() float64 { return f.hurst }

func (f *FractalTimeCompression) ConfidenceModifier() float64 {
	if !f.valid {
		return 1
	}
	raw := 1 + 0.6*math.Abs(f.hurst-0.5)
	return Regularize(raw, f.reg)
}

// DirectionalHint follows the recent drift when the series is persistent.
func (f *FractalTimeCompression) DirectionalHint() (models.Direction, bool) {
	if !f.valid || f.hurst < hurstTrending {
		return models.DirectionNeutral, false
	}
	rets := logReturns(f.prices.Tail(11))
	drift := 0.0
	for _, r := range rets {
		drift += r
	}
	d := signOf(drift, 1e-9)
	return d, d != models.DirectionNeutral
}

var _ domsvc.DirectionalModifier = (*FractalTimeCompression)(nil)
