package models

import "time"

// Domain names one independent source of feature signals.
type Domain string

// Direction is the directional call of a prediction or a domain vote.
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

// ParseDirection maps a raw string to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionUp, DirectionDown, DirectionNeutral:
		return Direction(s), true
	default:
		return DirectionNeutral, false
	}
}

// Sign returns +1, -1 or 0.
func (d Direction) Sign() int {
	switch d {
	case DirectionUp:
		return 1
	case DirectionDown:
		return -1
	default:
		return 0
	}
}

// DirectionFromSign maps a vote sign back to a Direction.
func DirectionFromSign(s int) Direction {
	switch {
	case s > 0:
		return DirectionUp
	case s < 0:
		return DirectionDown
	default:
		return DirectionNeutral
	}
}

// DomainSignal is one raw observation produced by a domain adapter.
type DomainSignal struct {
	Domain    Domain    `json:"domain"`
	Timestamp time.Time `json:"timestamp"`
	Intensity float64   `json:"intensity"`
	Frequency float64   `json:"frequency"`
	Phase     float64   `json:"phase"`
	Harmonics []float64 `json:"harmonics,omitempty"`
	RawData   []float64 `json:"raw_data,omitempty"`
}

// QuadrantProfile is a 4-way behavioral decomposition that sums to 1.
type QuadrantProfile struct {
	Aggressive float64 `json:"aggressive"`
	Defensive  float64 `json:"defensive"`
	Tactical   float64 `json:"tactical"`
	Strategic  float64 `json:"strategic"`
}

// Vector returns the profile as a 4-vector.
func (q QuadrantProfile) Vector() []float64 {
	return []float64{q.Aggressive, q.Defensive, q.Tactical, q.Strategic}
}

// Sum returns the component sum.
func (q QuadrantProfile) Sum() float64 {
	return q.Aggressive + q.Defensive + q.Tactical + q.Strategic
}

// TemporalFlow splits a domain's activity over early/mid/late segments; sums to 1.
type TemporalFlow struct {
	Early float64 `json:"early"`
	Mid   float64 `json:"mid"`
	Late  float64 `json:"late"`
}

// Vector returns the flow as a 3-vector.
func (t TemporalFlow) Vector() []float64 {
	return []float64{t.Early, t.Mid, t.Late}
}

// Sum returns the component sum.
func (t TemporalFlow) Sum() float64 {
	return t.Early + t.Mid + t.Late
}

// Skew is late minus early activity.
func (t TemporalFlow) Skew() float64 {
	return t.Late - t.Early
}

// DomainSignature is the normalized statistical summary of one domain's recent signals.
type DomainSignature struct {
	Domain            Domain          `json:"domain"`
	QuadrantProfile   QuadrantProfile `json:"quadrant_profile"`
	TemporalFlow      TemporalFlow    `json:"temporal_flow"`
	Intensity         float64         `json:"intensity"`
	Momentum          float64         `json:"momentum"`
	Volatility        float64         `json:"volatility"`
	DominantFrequency float64         `json:"dominant_frequency"`
	HarmonicResonance float64         `json:"harmonic_resonance"`
	PhaseAlignment    float64         `json:"phase_alignment"`
	ExtractedAt       time.Time       `json:"extracted_at"`
}

// CorrelationEntry describes the rolling alignment of an unordered domain pair.
// LeadLag is expressed relative to DomainA: positive means DomainA leads.
type CorrelationEntry struct {
	DomainA     Domain    `json:"domain_a"`
	DomainB     Domain    `json:"domain_b"`
	Correlation float64   `json:"correlation"`
	LeadLag     float64   `json:"lead_lag"`
	Confidence  float64   `json:"confidence"`
	SampleSize  int       `json:"sample_size"`
	LastUpdated time.Time `json:"last_updated"`
}

// MarketFeatures is one inbound tick of market features fanned out to domain adapters.
type MarketFeatures struct {
	Symbol    string             `json:"symbol"`
	Timestamp time.Time          `json:"timestamp"`
	Price     float64            `json:"price"`
	Volume    float64            `json:"volume"`
	Values    map[string]float64 `json:"values,omitempty"`
}

// Value returns a named feature or def when absent.
func (f MarketFeatures) Value(key string, def float64) float64 {
	if f.Values == nil {
		return def
	}
	if v, ok := f.Values[key]; ok {
		return v
	}
	return def
}
