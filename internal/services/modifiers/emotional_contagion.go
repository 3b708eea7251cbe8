package modifiers

import (
	"math"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
)

// ContagionReading summarizes how one sentiment has spread across domains.
type ContagionReading struct {
	Sentiment float64
	Spread    float64
	Intensity float64
}

const (
	contagionMinDomains = 3
	sentimentDeadband   = 0.1
	euphoricSpread      = 0.85
	euphoricIntensity   = 0.6
	moderateSpread      = 0.6
)

// EmotionalContagion measures herding of domain sentiment.
type EmotionalContagion struct {
	base
	readings *Ring[ContagionReading]
}

func NewEmotionalContagion() *EmotionalContagion {
	return &EmotionalContagion{base: base{name: NameEmotionalContagion, reg: 0.85}, readings: NewRing[ContagionReading](100)}
}

func (e *EmotionalContagion) Update(tc models.TickContext) {
	if len(tc.Signatures) < contagionMinDomains {
		return
	}
	var sentiments []float64
	for _, sig := range tc.Signatures {
		s := sig.Momentum * (1 + sig.QuadrantProfile.Aggressive - sig.QuadrantProfile.Defensive) / 2
		sentiments = append(sentiments, s)
	}
	avg := mean(sentiments)
	dir := signOf(avg, 0)
	agree, intensity := 0, 0.0
	for _, s := range sentiments {
		intensity += math.Abs(s)
		if dir != models.DirectionNeutral && signOf(s, sentimentDeadband/2) == dir {
			agree++
		}
	}
	e.readings.Push(ContagionReading{
		Sentiment: avg,
		Spread:    float64(agree) / float64(len(sentiments)),
		Intensity: intensity / float64(len(sentiments)),
	})
}

// Latest returns the most recent reading.
func (e *EmotionalContagion) Latest() (ContagionReading, bool) { return e.readings.Last() }

// Velocity is the change in spread over the last ten readings.
func (e *EmotionalContagion) Velocity() float64 {
	tail := e.readings.Tail(10)
	if len(tail) < 2 {
		return 0
	}
	return tail[len(tail)-1].Spread - tail[0].Spread
}

func (e *EmotionalContagion) ConfidenceModifier() float64 {
	r, ok := e.readings.Last()
	if !ok {
		return 1
	}
	var raw float64
	switch {
	case r.Spread >= euphoricSpread && r.Intensity >= euphoricIntensity:
		raw = 0.85
	case r.Spread >= moderateSpread:
		raw = 1 + 0.15*(r.Spread-moderateSpread)/(euphoricSpread-moderateSpread)
	default:
		raw = 1
	}
	return Regularize(raw, e.reg)
}

var _ domsvc.ConfidenceModifier = (*EmotionalContagion)(nil)
