package features

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

// ComputeLogReturns computes log returns r_t = ln(P_t / P_{t-1}).
// It returns a slice of length len(prices)-1, or nil if insufficient data.
func ComputeLogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the last
// window returns using the provided number of bars per year.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sd, err := stats.StandardDeviationSample(logReturns[len(logReturns)-window:])
	if err != nil || math.IsNaN(sd) {
		return 0
	}
	return sd * math.Sqrt(barsPerYear)
}

// BarsPerYear returns the approximate number of bars per year for a sampling interval.
func BarsPerYear(interval time.Duration) float64 {
	if interval <= 0 {
		interval = time.Minute
	}
	return float64(365*24*time.Hour) / float64(interval)
}

// Momentum is the relative price change over the last n steps.
func Momentum(prices []float64, n int) float64 {
	if n <= 0 || len(prices) <= n {
		return 0
	}
	base := prices[len(prices)-1-n]
	if base <= 0 {
		return 0
	}
	return prices[len(prices)-1]/base - 1
}

// ZScore is the distance of the last value from the window mean in standard deviations.
func ZScore(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean, _ := stats.Mean(values)
	sd, _ := stats.StandardDeviationPopulation(values)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return (values[len(values)-1] - mean) / sd
}

// RangePosition places the last value inside the window range: -1 at the low, +1 at the high.
func RangePosition(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	lo, _ := stats.Min(values)
	hi, _ := stats.Max(values)
	if hi-lo == 0 {
		return 0
	}
	return 2*(values[len(values)-1]-lo)/(hi-lo) - 1
}

// Trend is the least-squares slope of values scaled by window length over the mean,
// roughly the fractional drift across the window.
func Trend(values []float64) float64 {
	n := len(values)
	if n < 3 {
		return 0
	}
	series := make(stats.Series, n)
	for i, v := range values {
		series[i] = stats.Coordinate{X: float64(i), Y: v}
	}
	fit, err := stats.LinearRegression(series)
	if err != nil || len(fit) < 2 {
		return 0
	}
	mean, _ := stats.Mean(values)
	if mean == 0 {
		return 0
	}
	slope := (fit[n-1].Y - fit[0].Y) / float64(n-1)
	return slope * float64(n) / mean
}

// Efficiency is net movement over path length in [0,1].
func Efficiency(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	path := 0.0
	for i := 1; i < len(values); i++ {
		path += math.Abs(values[i] - values[i-1])
	}
	if path == 0 {
		return 0
	}
	return math.Abs(values[len(values)-1]-values[0]) / path
}
