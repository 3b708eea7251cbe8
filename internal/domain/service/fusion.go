package service

import (
	"context"

	"SignalFuse/internal/domain/models"
)

// DomainSignalAdapter turns market features into one domain's signature.
// Implementations own their I/O and must apply their own timeouts.
type DomainSignalAdapter interface {
	Domain() models.Domain
	Initialize(ctx context.Context) error
	ProcessRawData(ctx context.Context, features models.MarketFeatures) (models.DomainSignal, error)
	ExtractSignature(ctx context.Context, signals []models.DomainSignal) (models.DomainSignature, error)
}

// ConfidenceModifier maps internal module state to a bounded multiplicative confidence factor.
type ConfidenceModifier interface {
	Name() string
	Update(tc models.TickContext)
	// ConfidenceModifier returns the regularized factor in [0.8, 1.2].
	ConfidenceModifier() float64
	Regularization() float64
}

// DirectionalModifier may suggest a direction while consensus is neutral.
type DirectionalModifier interface {
	ConfidenceModifier
	DirectionalHint() (models.Direction, bool)
}

// OutcomeLearner receives resolved predictions.
type OutcomeLearner interface {
	LearnOutcome(oc models.OutcomeContext)
}

// EventSink receives typed engine events.
type EventSink interface {
	Emit(ev models.EngineEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev models.EngineEvent)

func (f EventSinkFunc) Emit(ev models.EngineEvent) { f(ev) }
