package modifiers

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
)

type EquivalencePhase string

const (
	PhaseStrongEquivalence EquivalencePhase = "strong_equivalence"
	PhaseWeakEquivalence   EquivalencePhase = "weak_equivalence"
	PhaseDecorrelated      EquivalencePhase = "decorrelated"
	PhaseInverse           EquivalencePhase = "inverse"
)

type BlendStrategy string

const (
	StrategyFollow     BlendStrategy = "follow"
	StrategyContrarian BlendStrategy = "contrarian"
)

const (
	equivalenceWindow     = time.Hour
	equivalenceMinSamples = 5
	equivalenceRate       = 0.1
)

type equivalenceSample struct {
	at          time.Time
	pattern     float64
	fundamental float64
	actual      float64
}

// EquivalenceState is the tracker's view over the current window.
type EquivalenceState struct {
	Phase                  EquivalencePhase
	Strategy               BlendStrategy
	PatternAccuracy        float64
	FundamentalAccuracy    float64
	PatternCorrelation     float64
	FundamentalCorrelation float64
	CrossCorrelation       float64
	PatternWeight          float64
	FundamentalWeight      float64
	Samples                int
}

// DynamicEquivalenceTracker learns how far pattern and fundamental signals can stand in for each other.
type DynamicEquivalenceTracker struct {
	base
	samples *Ring[equivalenceSample]
	state   EquivalenceState
	current struct{ pattern, fundamental float64 }
}

func NewDynamicEquivalenceTracker() *DynamicEquivalenceTracker {
	return &DynamicEquivalenceTracker{
		base:    base{name: NameDynamicEquivalence, reg: 0.85},
		samples: NewRing[equivalenceSample](500),
		state: EquivalenceState{
			Phase:             PhaseDecorrelated,
			Strategy:          StrategyFollow,
			PatternWeight:     0.5,
			FundamentalWeight: 0.5,
		},
	}
}

func (d *DynamicEquivalenceTracker) Update(tc models.TickContext) {
	d.current.pattern = tc.PatternSignal
	d.current.fundamental = tc.FundamentalSignal
}

// LearnOutcome records the resolved pattern/fundamental pair and re-derives weights.
func (d *DynamicEquivalenceTracker) LearnOutcome(oc models.OutcomeContext) {
	actual := float64(oc.ActualDirection.Sign())
	if oc.ActualMagnitude > 0 {
		actual *= oc.ActualMagnitude
	}
	at := oc.ResolvedAt
	if at.IsZero() {
		at = time.Now()
	}
	d.samples.Push(equivalenceSample{
		at:          at,
		pattern:     oc.Envelope.PatternSignal,
		fundamental: oc.Envelope.FundamentalSignal,
		actual:      actual,
	})
	d.recompute(at)
}

func (d *DynamicEquivalenceTracker) recompute(now time.Time) {
	cutoff := now.Add(-equivalenceWindow)
	var ps, fs, as []float64
	for _, s := range d.samples.Values() {
		if s.at.Before(cutoff) {
			continue
		}
		ps = append(ps, s.pattern)
		fs = append(fs, s.fundamental)
		as = append(as, s.actual)
	}
	d.state.Samples = len(ps)
	if len(ps) < equivalenceMinSamples {
		return
	}
	d.state.PatternAccuracy = directionalAccuracy(ps, as)
	d.state.FundamentalAccuracy = directionalAccuracy(fs, as)
	d.state.PatternCorrelation = pearson(ps, as)
	d.state.FundamentalCorrelation = pearson(fs, as)
	d.state.CrossCorrelation = pearson(ps, fs)
	d.state.Phase = classifyEquivalence(d.state.CrossCorrelation)

	total := d.state.PatternAccuracy + d.state.FundamentalAccuracy
	target := 0.5
	if total > 0 {
		target = d.state.PatternAccuracy / total
	}
	wp := d.state.PatternWeight + equivalenceRate*(target-d.state.PatternWeight)
	wf := d.state.FundamentalWeight + equivalenceRate*((1-target)-d.state.FundamentalWeight)
	d.SetWeights(wp, wf)

	d.state.Strategy = StrategyFollow
	if d.state.Phase == PhaseInverse && d.state.PatternAccuracy < 0.5 {
		d.state.Strategy = StrategyContrarian
	}
}

func classifyEquivalence(r float64) EquivalencePhase {
	switch {
	case r > 0.7:
		return PhaseStrongEquivalence
	case r > 0.3:
		return PhaseWeakEquivalence
	case r < -0.3:
		return PhaseInverse
	default:
		return PhaseDecorrelated
	}
}

func directionalAccuracy(pred, actual []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	hits := 0
	for i := range pred {
		if signOf(pred[i], 1e-9) == signOf(actual[i], 1e-9) {
			hits++
		}
	}
	return float64(hits) / float64(len(pred))
}

// pearson guards gonum's correlation against constant series.
func pearson(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// SetWeights normalizes and installs the blend weights. Non-positive totals reset to 0.5/0.5.
func (d *DynamicEquivalenceTracker) SetWeights(pattern, fundamental float64) {
	pattern, fundamental = math.Max(pattern, 0), math.Max(fundamental, 0)
	total := pattern + fundamental
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		d.state.PatternWeight, d.state.FundamentalWeight = 0.5, 0.5
		return
	}
	d.state.PatternWeight = pattern / total
	d.state.FundamentalWeight = fundamental / total
}

// SetStrategy overrides the blend strategy; the next learned outcome may change it again.
func (d *DynamicEquivalenceTracker) SetStrategy(s BlendStrategy) { d.state.Strategy = s }

func (d *DynamicEquivalenceTracker) State() EquivalenceState { return d.state }

// BlendPredictions mixes pattern and fundamental signals by the learned weights.
// In the inverse phase with a contrarian strategy the pattern side is inverted.
func (d *DynamicEquivalenceTracker) BlendPredictions(p, f float64) float64 {
	if d.state.Phase == PhaseInverse && d.state.Strategy == StrategyContrarian {
		return -p*d.state.PatternWeight + f*d.state.FundamentalWeight
	}
	return p*d.state.PatternWeight + f*d.state.FundamentalWeight
}

func (d *DynamicEquivalenceTracker) ConfidenceModifier() float64 {
	if d.state.Samples < equivalenceMinSamples {
		return 1
	}
	var raw float64
	switch d.state.Phase {
	case PhaseStrongEquivalence:
		raw = 1.1
	case PhaseWeakEquivalence:
		raw = 1.05
	case PhaseInverse:
		raw = 0.9
	default:
		raw = 1
	}
	if signOf(d.current.pattern, 0.05) != models.DirectionNeutral &&
		signOf(d.current.pattern, 0.05) == signOf(d.current.fundamental, 0.05) {
		raw += 0.05
	}
	return Regularize(raw, d.reg)
}

var (
	_ domsvc.ConfidenceModifier = (*DynamicEquivalenceTracker)(nil)
	_ domsvc.OutcomeLearner     = (*DynamicEquivalenceTracker)(nil)
)
