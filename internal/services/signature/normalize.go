package signature

import (
	"math"

	"SignalFuse/internal/domain/models"
)

const (
	defaultQuadrant  = 0.25
	defaultTemporal  = 1.0 / 3.0
	defaultIntensity = 0.5
)

// Normalize returns sig with both profiles summing to 1 and every scalar finite and in range.
// Invalid or empty profiles fall back to a uniform split.
func Normalize(sig models.DomainSignature) models.DomainSignature {
	q := sig.QuadrantProfile.Vector()
	if nq, ok := normalizeVector(q); ok {
		sig.QuadrantProfile = models.QuadrantProfile{Aggressive: nq[0], Defensive: nq[1], Tactical: nq[2], Strategic: nq[3]}
	} else {
		sig.QuadrantProfile = models.QuadrantProfile{
			Aggressive: defaultQuadrant, Defensive: defaultQuadrant,
			Tactical: defaultQuadrant, Strategic: defaultQuadrant,
		}
	}

	t := sig.TemporalFlow.Vector()
	if nt, ok := normalizeVector(t); ok {
		sig.TemporalFlow = models.TemporalFlow{Early: nt[0], Mid: nt[1], Late: nt[2]}
	} else {
		sig.TemporalFlow = models.TemporalFlow{Early: defaultTemporal, Mid: defaultTemporal, Late: defaultTemporal}
	}

	if !finite(sig.Intensity) {
		sig.Intensity = defaultIntensity
	}
	sig.Momentum = Clamp(finiteOr(sig.Momentum, 0), -1, 1)
	sig.Volatility = Clamp(finiteOr(sig.Volatility, 0), 0, 1)
	sig.HarmonicResonance = Clamp(finiteOr(sig.HarmonicResonance, 0), 0, 1)
	sig.PhaseAlignment = Clamp(finiteOr(sig.PhaseAlignment, 0), 0, 1)
	sig.DominantFrequency = math.Max(finiteOr(sig.DominantFrequency, 0), 0)
	return sig
}

// normalizeVector rescales non-negative components to sum 1.
// Negative or non-finite components, or a zero sum, make the vector invalid.
func normalizeVector(v []float64) ([]float64, bool) {
	sum := 0.0
	for _, x := range v {
		if !finite(x) || x < 0 {
			return nil, false
		}
		sum += x
	}
	if sum <= 0 {
		return nil, false
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / sum
	}
	return out, true
}

// Clamp bounds v to [lo, hi]; NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteOr(v, def float64) float64 {
	if finite(v) {
		return v
	}
	return def
}
