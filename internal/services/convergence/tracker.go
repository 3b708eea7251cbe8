package convergence

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"SignalFuse/internal/domain/models"
	"SignalFuse/internal/services/signature"
)

var ErrEventNotFound = errors.New("convergence event not found")

// Config holds the tuned detection constants.
type Config struct {
	MinimumDomains         int
	MinimumAlignment       int
	MomentumCutoff         float64
	ImprobabilityThreshold float64
	Retention              time.Duration
	MaxEvents              int
	MinResolvedForStats    int
}

func DefaultConfig() Config {
	return Config{
		MinimumDomains:         10,
		MinimumAlignment:       10,
		MomentumCutoff:         0.2,
		ImprobabilityThreshold: 0.90,
		Retention:              30 * 24 * time.Hour,
		MaxEvents:              500,
		MinResolvedForStats:    30,
	}
}

// Tracker detects statistically improbable multi-domain directional alignment.
type Tracker struct {
	cfg    Config
	events []models.ConvergenceEvent
}

func NewTracker(cfg Config) *Tracker {
	d := DefaultConfig()
	if cfg.MinimumDomains <= 0 {
		cfg.MinimumDomains = d.MinimumDomains
	}
	if cfg.MinimumAlignment <= 0 {
		cfg.MinimumAlignment = d.MinimumAlignment
	}
	if cfg.MomentumCutoff <= 0 {
		cfg.MomentumCutoff = d.MomentumCutoff
	}
	if cfg.ImprobabilityThreshold <= 0 {
		cfg.ImprobabilityThreshold = d.ImprobabilityThreshold
	}
	if cfg.Retention <= 0 {
		cfg.Retention = d.Retention
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = d.MaxEvents
	}
	if cfg.MinResolvedForStats <= 0 {
		cfg.MinResolvedForStats = d.MinResolvedForStats
	}
	return &Tracker{cfg: cfg}
}

// Detect partitions domains by momentum and records an event when the larger
// directional bucket is big enough and improbable enough.
func (t *Tracker) Detect(sigs map[models.Domain]models.DomainSignature, now time.Time) (models.ConvergenceEvent, bool) {
	t.prune(now)
	if len(sigs) < t.cfg.MinimumDomains {
		return models.ConvergenceEvent{}, false
	}

	var bullish, bearish []models.Domain
	neutral := 0
	for _, d := range signature.SortedDomains(sigs) {
		m := sigs[d].Momentum
		switch {
		case m > t.cfg.MomentumCutoff:
			bullish = append(bullish, d)
		case m < -t.cfg.MomentumCutoff:
			bearish = append(bearish, d)
		default:
			neutral++
		}
	}

	aligned, dir := bullish, models.DirectionUp
	if len(bearish) > len(bullish) {
		aligned, dir = bearish, models.DirectionDown
	}
	if len(aligned) <= neutral || len(aligned) < t.cfg.MinimumAlignment {
		return models.ConvergenceEvent{}, false
	}

	consensus := momentumConsensus(sigs, aligned)
	improbability := Improbability(len(aligned), consensus)
	if improbability < t.cfg.ImprobabilityThreshold {
		return models.ConvergenceEvent{}, false
	}

	ev := models.ConvergenceEvent{
		ID:                       uuid.NewString(),
		Timestamp:                now,
		AlignedDomains:           aligned,
		AlignmentCount:           len(aligned),
		Direction:                dir,
		MomentumConsensus:        consensus,
		StatisticalImprobability: improbability,
	}
	t.events = append(t.events, ev)
	if len(t.events) > t.cfg.MaxEvents {
		t.events = t.events[len(t.events)-t.cfg.MaxEvents:]
	}
	return ev, true
}

// Improbability is 1 - min(0.5^(n-1)*(2-consensus), 1).
func Improbability(aligned int, consensus float64) float64 {
	if aligned <= 0 {
		return 0
	}
	consensus = signature.Clamp(consensus, 0, 1)
	chance := math.Pow(0.5, float64(aligned-1)) * (2 - consensus)
	return signature.Clamp(1-math.Min(chance, 1), 0, 1)
}

func momentumConsensus(sigs map[models.Domain]models.DomainSignature, aligned []models.Domain) float64 {
	if len(aligned) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range aligned {
		sum += math.Abs(sigs[d].Momentum)
	}
	return signature.Clamp(sum/float64(len(aligned)), 0, 1)
}

// Resolve attaches the actual direction to an open event.
func (t *Tracker) Resolve(id string, actual models.Direction, now time.Time) (models.ConvergenceEvent, error) {
	t.prune(now)
	for i := range t.events {
		if t.events[i].ID != id {
			continue
		}
		if t.events[i].Outcome == nil {
			t.events[i].Outcome = &models.ConvergenceOutcome{
				ActualDirection: actual,
				WasCorrect:      actual == t.events[i].Direction,
				ResolvedAt:      now,
			}
		}
		return t.events[i], nil
	}
	return models.ConvergenceEvent{}, ErrEventNotFound
}

func (t *Tracker) prune(now time.Time) {
	cutoff := now.Add(-t.cfg.Retention)
	keep := t.events[:0]
	for _, ev := range t.events {
		if ev.Timestamp.After(cutoff) {
			keep = append(keep, ev)
		}
	}
	for i := len(keep); i < len(t.events); i++ {
		t.events[i] = models.ConvergenceEvent{}
	}
	t.events = keep
}

// Events returns a copy of the retained events, oldest first.
func (t *Tracker) Events() []models.ConvergenceEvent {
	out := make([]models.ConvergenceEvent, len(t.events))
	copy(out, t.events)
	return out
}

func (t *Tracker) ResolvedCount() int {
	n := 0
	for _, ev := range t.events {
		if ev.Outcome != nil {
			n++
		}
	}
	return n
}
