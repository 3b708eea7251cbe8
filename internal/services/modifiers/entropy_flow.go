package modifiers

import (
	"math"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
)

// EntropyFlow tracks the normalized Shannon entropy of quadrant profiles.
// Falling entropy means domains are organizing around fewer behaviors.
type EntropyFlow struct {
	base
	history *Ring[float64]
}

func NewEntropyFlow() *EntropyFlow {
	return &EntropyFlow{base: base{name: NameEntropyFlow, reg: 0.85}, history: NewRing[float64](100)}
}

func (e *EntropyFlow) Update(tc models.TickContext) {
	if len(tc.Signatures) == 0 {
		return
	}
	sum := 0.0
	for _, sig := range tc.Signatures {
		sum += NormalizedEntropy(sig.QuadrantProfile.Vector())
	}
	e.history.Push(sum / float64(len(tc.Signatures)))
}

// Current returns the latest entropy reading, 1 when none.
func (e *EntropyFlow) Current() float64 {
	if v, ok := e.history.Last(); ok {
		return v
	}
	return 1
}

// Trend is the mean of the last five readings minus the five before.
func (e *EntropyFlow) Trend() float64 {
	if e.history.Len() < 10 {
		return 0
	}
	tail := e.history.Tail(10)
	return mean(tail[5:]) - mean(tail[:5])
}

func (e *EntropyFlow) ConfidenceModifier() float64 {
	if e.history.Len() < 5 {
		return 1
	}
	raw := 1 - 2*e.Trend() + 0.1*(0.5-e.Current())
	return Regularize(raw, e.reg)
}

// NormalizedEntropy is the Shannon entropy of p divided by log(len(p)).
func NormalizedEntropy(p []float64) float64 {
	if len(p) < 2 {
		return 0
	}
	sum := 0.0
	for _, x := range p {
		if x > 0 {
			sum += x
		}
	}
	if sum <= 0 {
		return 1
	}
	h := 0.0
	for _, x := range p {
		if x <= 0 {
			continue
		}
		q := x / sum
		h -= q * math.Log(q)
	}
	return h / math.Log(float64(len(p)))
}

var _ domsvc.ConfidenceModifier = (*EntropyFlow)(nil)
