package modifiers

import (
	"math"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
	"SignalFuse/internal/services/signature"
)

// Modifier names, in application order.
const (
	NameEntropyFlow        = "entropy_flow"
	NameArchetypal         = "archetypal_resonance"
	NameMorphicField       = "morphic_field"
	NameEmotionalContagion = "emotional_contagion"
	NameFractalTime        = "fractal_time"
	NameInverseNoise       = "inverse_noise"
	NameBiorhythmLunar     = "biorhythm_lunar"
	NameDynamicEquivalence = "dynamic_equivalence"
	NameQuantumCloud       = "quantum_cloud"
)

const (
	MinFactor = 0.8
	MaxFactor = 1.2
)

// Regularize shrinks a raw factor toward 1 by reg and bounds the result.
func Regularize(raw, reg float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 1
	}
	return signature.Clamp(1+reg*(raw-1), MinFactor, MaxFactor)
}

type base struct {
	name string
	reg  float64
}

func (b base) Name() string            { return b.name }
func (b base) Regularization() float64 { return b.reg }

// Set owns one instance of each modifier and exposes them in fixed order.
type Set struct {
	Entropy     *EntropyFlow
	Archetypal  *ArchetypalResonance
	Morphic     *MorphicField
	Contagion   *EmotionalContagion
	Fractal     *FractalTimeCompression
	Noise       *InverseNoiseAmplifier
	Biorhythm   *BiorhythmLunarSync
	Equivalence *DynamicEquivalenceTracker
	Cloud       *QuantumCloudGenerator

	ordered []domsvc.ConfidenceModifier
}

// NewSet builds the standard modifier chain.
func NewSet() *Set {
	s := &Set{
		Entropy:     NewEntropyFlow(),
		Archetypal:  NewArchetypalResonance(),
		Morphic:     NewMorphicField(),
		Contagion:   NewEmotionalContagion(),
		Fractal:     NewFractalTimeCompression(),
		Noise:       NewInverseNoiseAmplifier(),
		Biorhythm:   NewBiorhythmLunarSync(),
		Equivalence: NewDynamicEquivalenceTracker(),
		Cloud:       NewQuantumCloudGenerator(),
	}
	s.ordered = []domsvc.ConfidenceModifier{
		s.Entropy, s.Archetypal, s.Morphic, s.Contagion, s.Fractal,
		s.Noise, s.Biorhythm, s.Equivalence, s.Cloud,
	}
	return s
}

// Ordered returns the modifiers in application order.
func (s *Set) Ordered() []domsvc.ConfidenceModifier {
	return append([]domsvc.ConfidenceModifier(nil), s.ordered...)
}

// Update feeds the tick to every modifier in order.
func (s *Set) Update(tc models.TickContext) {
	for _, m := range s.ordered {
		m.Update(tc)
	}
}

// LearnOutcome forwards a resolved prediction to modifiers that learn from outcomes.
func (s *Set) LearnOutcome(oc models.OutcomeContext) {
	for _, m := range s.ordered {
		if l, ok := m.(domsvc.OutcomeLearner); ok {
			l.LearnOutcome(oc)
		}
	}
}

// Snapshots reports each modifier's current factor and hint.
func (s *Set) Snapshots() []models.ModifierSnapshot {
	out := make([]models.ModifierSnapshot, 0, len(s.ordered))
	for _, m := range s.ordered {
		snap := models.ModifierSnapshot{Name: m.Name(), Factor: m.ConfidenceModifier(), Regularization: m.Regularization()}
		if dm, ok := m.(domsvc.DirectionalModifier); ok {
			if d, ok := dm.DirectionalHint(); ok {
				snap.Hint = d
			}
		}
		out = append(out, snap)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func signOf(x, eps float64) models.Direction {
	switch {
	case x > eps:
		return models.DirectionUp
	case x < -eps:
		return models.DirectionDown
	default:
		return models.DirectionNeutral
	}
}
