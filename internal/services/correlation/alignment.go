package correlation

import (
	"math"

	"SignalFuse/internal/domain/models"
	"SignalFuse/internal/services/signature"
)

// Alignment blend weights.
const (
	wQuadrant   = 0.30
	wTemporal   = 0.20
	wMomentum   = 0.20
	wVolatility = 0.15
	wResonance  = 0.15
)

// ComputeAlignment scores how similarly two domains behave, in [0,1]. It is symmetric.
func ComputeAlignment(a, b models.DomainSignature) float64 {
	score := wQuadrant*CosineSimilarity(a.QuadrantProfile.Vector(), b.QuadrantProfile.Vector()) +
		wTemporal*CosineSimilarity(a.TemporalFlow.Vector(), b.TemporalFlow.Vector()) +
		wMomentum*(1-math.Abs(a.Momentum-b.Momentum)) +
		wVolatility*(1-math.Abs(a.Volatility-b.Volatility)) +
		wResonance*(1-math.Abs(a.HarmonicResonance-b.HarmonicResonance))
	return signature.Clamp(score, 0, 1)
}

// LeadLag averages the momentum difference and the temporal skew difference.
// Positive values mean a leads b.
func LeadLag(a, b models.DomainSignature) float64 {
	v := ((a.Momentum - b.Momentum) + (a.TemporalFlow.Skew() - b.TemporalFlow.Skew())) / 2
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// CosineSimilarity returns 0 when either vector has zero norm or lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom == 0 || math.IsNaN(denom) {
		return 0
	}
	return dot / denom
}
