package models

import "time"

// EventKind classifies typed engine events.
type EventKind string

const (
	EventSignatureIngested   EventKind = "signature_ingested"
	EventAdapterFailed       EventKind = "adapter_failed"
	EventConvergenceDetected EventKind = "convergence_detected"
	EventPhaseLockDetected   EventKind = "phase_lock_detected"
	EventPredictionGenerated EventKind = "prediction_generated"
	EventOutcomeRecorded     EventKind = "outcome_recorded"
	EventDomainAccuracy      EventKind = "domain_accuracy"
	EventCalibrationReached  EventKind = "calibration_reached"
	EventNoiseAnomaly        EventKind = "noise_anomaly"
)

// EngineEvent is a typed observability event emitted by the fusion core.
type EngineEvent struct {
	Kind      EventKind `json:"kind"`
	At        time.Time `json:"at"`
	Symbol    string    `json:"symbol,omitempty"`
	Domain    Domain    `json:"domain,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Value     float64   `json:"value"`
	Count     int       `json:"count,omitempty"`
	RefID     string    `json:"ref_id,omitempty"`
	Label     string    `json:"label,omitempty"`
}

// PhaseState is the current synchronization picture of the periodic processes.
type PhaseState struct {
	Phases        map[string]float64 `json:"phases"`
	Coherence     float64            `json:"coherence"`
	DominantPhase float64            `json:"dominant_phase"`
	Lock          *PhaseLockEvent    `json:"lock,omitempty"`
}

// EngineSnapshot is an immutable copy of the engine state published after each command.
type EngineSnapshot struct {
	TakenAt             time.Time                  `json:"taken_at"`
	Domains             int                        `json:"domains"`
	Signatures          map[Domain]DomainSignature `json:"signatures"`
	AccuracyByDomain    map[Domain]float64         `json:"accuracy_by_domain"`
	HistoryLength       int                        `json:"history_length"`
	IsCalibrated        bool                       `json:"is_calibrated"`
	EvolutionGeneration int                        `json:"evolution_generation"`
	LearningVelocity    float64                    `json:"learning_velocity"`
	ResolvedEvents      int                        `json:"resolved_events"`
	Calibration         CalibrationAdvice          `json:"calibration"`
	Convergence         ConvergenceStats           `json:"convergence"`
	Phase               PhaseState                 `json:"phase"`
	StrongestPairs      []CorrelationEntry         `json:"strongest_pairs"`
	Modifiers           []ModifierSnapshot         `json:"modifiers"`
	LastPrediction      *PredictionEnvelope        `json:"last_prediction,omitempty"`
}
