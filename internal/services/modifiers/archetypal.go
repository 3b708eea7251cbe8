package modifiers

import (
	"math"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
)

// Archetype labels the character of a single tick.
type Archetype string

const (
	ArchetypeHero      Archetype = "hero"
	ArchetypeShadow    Archetype = "shadow"
	ArchetypeTrickster Archetype = "trickster"
	ArchetypeSage      Archetype = "sage"
)

const (
	sageReturn         = 0.0005
	persistenceWindow  = 20
	directionalPersist = 0.7
)

// ArchetypalResonance classifies ticks into archetypes and rewards persistence.
type ArchetypalResonance struct {
	base
	archetypes *Ring[Archetype]
	absReturns *Ring[float64]
	lastPrice  float64
}

func NewArchetypalResonance() *ArchetypalResonance {
	return &ArchetypalResonance{
		base:       base{name: NameArchetypal, reg: 0.80},
		archetypes: NewRing[Archetype](200),
		absReturns: NewRing[float64](200),
	}
}

func (a *ArchetypalResonance) Update(tc models.TickContext) {
	price := tc.Price
	if price <= 0 || math.IsNaN(price) {
		return
	}
	prev := a.lastPrice
	a.lastPrice = price
	if prev <= 0 {
		return
	}
	ret := (price - prev) / prev
	vol := tc.Features["volatility"]
	typical := mean(a.absReturns.Values())
	a.absReturns.Push(math.Abs(ret))
	a.archetypes.Push(classify(ret, vol, typical))
}

func classify(ret, vol, typical float64) Archetype {
	switch {
	case math.Abs(ret) < sageReturn:
		return ArchetypeSage
	case typical > 0 && math.Abs(ret) > 3*typical:
		return ArchetypeTrickster
	case vol > 0.05:
		return ArchetypeTrickster
	case ret > 0:
		return ArchetypeHero
	default:
		return ArchetypeShadow
	}
}

// Dominant returns the latest archetype and the share of recent ticks that match it.
func (a *ArchetypalResonance) Dominant() (Archetype, float64) {
	last, ok := a.archetypes.Last()
	if !ok {
		return "", 0
	}
	tail := a.archetypes.Tail(persistenceWindow)
	n := 0
	for _, x := range tail {
		if x == last {
			n++
		}
	}
	return last, float64(n) / float64(len(tail))
}

func (a *ArchetypalResonance) ConfidenceModifier() float64 {
	if a.archetypes.Len() < 5 {
		return 1
	}
	arch, persistence := a.Dominant()
	raw := 0.9 + 0.3*persistence
	if arch == ArchetypeTrickster {
		raw = 1.1 - 0.3*persistence
	}
	return Regularize(raw, a.reg)
}

func (a *ArchetypalResonance) DirectionalHint() (models.Direction, bool) {
	if a.archetypes.Len() < 5 {
		return models.DirectionNeutral, false
	}
	arch, persistence := a.Dominant()
	if persistence <= directionalPersist {
		return models.DirectionNeutral, false
	}
	switch arch {
	case ArchetypeHero:
		return models.DirectionUp, true
	case ArchetypeShadow:
		return models.DirectionDown, true
	default:
		return models.DirectionNeutral, false
	}
}

var _ domsvc.DirectionalModifier = (*ArchetypalResonance)(nil)
