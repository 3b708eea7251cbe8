package models

import "time"

// ConvergenceOutcome is attached to a ConvergenceEvent once ground truth arrives.
type ConvergenceOutcome struct {
	ActualDirection Direction `json:"actual_direction"`
	WasCorrect      bool      `json:"was_correct"`
	ResolvedAt      time.Time `json:"resolved_at"`
}

// ConvergenceEvent flags an improbable multi-domain directional alignment.
type ConvergenceEvent struct {
	ID                       string              `json:"id"`
	Timestamp                time.Time           `json:"timestamp"`
	AlignedDomains           []Domain            `json:"aligned_domains"`
	AlignmentCount           int                 `json:"alignment_count"`
	Direction                Direction           `json:"direction"`
	MomentumConsensus        float64             `json:"momentum_consensus"`
	StatisticalImprobability float64             `json:"statistical_improbability"`
	Outcome                  *ConvergenceOutcome `json:"outcome,omitempty"`
}

// ConvergenceStats summarizes resolved events against the 1/3 chance baseline.
type ConvergenceStats struct {
	TotalEvents    int     `json:"total_events"`
	ResolvedEvents int     `json:"resolved_events"`
	CorrectEvents  int     `json:"correct_events"`
	Accuracy       float64 `json:"accuracy"`
	Baseline       float64 `json:"baseline"`
	ZScore         float64 `json:"z_score"`
	PValue         float64 `json:"p_value"`
	Conclusion     string  `json:"conclusion"`
}

// CalibrationResolution marks a CalibrationRecord as resolved.
type CalibrationResolution struct {
	ActualDirection Direction `json:"actual_direction"`
	WasCorrect      bool      `json:"was_correct"`
	ResolvedAt      time.Time `json:"resolved_at"`
}

// CalibrationRecord pairs a stated confidence with its eventual outcome.
type CalibrationRecord struct {
	ID                  string                 `json:"id"`
	PredictedConfidence float64                `json:"predicted_confidence"`
	PredictedDirection  Direction              `json:"predicted_direction"`
	Symbol              string                 `json:"symbol"`
	Horizon             string                 `json:"horizon"`
	CreatedAt           time.Time              `json:"created_at"`
	Resolved            *CalibrationResolution `json:"resolved,omitempty"`
}

// CalibrationBucket is one confidence decile of the reliability diagram.
type CalibrationBucket struct {
	Lower          float64 `json:"lower"`
	Upper          float64 `json:"upper"`
	Count          int     `json:"count"`
	MeanConfidence float64 `json:"mean_confidence"`
	Accuracy       float64 `json:"accuracy"`
}

// CalibrationAdvice is the self-learned confidence rescaling.
type CalibrationAdvice struct {
	Status           string              `json:"status"`
	SampleSize       int                 `json:"sample_size"`
	ECE              float64             `json:"ece"`
	AdjustmentFactor float64             `json:"adjustment_factor"`
	Buckets          []CalibrationBucket `json:"buckets,omitempty"`
}

// PhaseLockEvent records a detected phase-lock between periodic processes.
type PhaseLockEvent struct {
	ID                string        `json:"id"`
	Timestamp         time.Time     `json:"timestamp"`
	Cycles            []string      `json:"cycles"`
	Coherence         float64       `json:"coherence"`
	DominantPhase     float64       `json:"dominant_phase"`
	Implication       string        `json:"implication"`
	PredictedDuration time.Duration `json:"predicted_duration"`
	Resolved          bool          `json:"resolved"`
	WasCorrect        bool          `json:"was_correct"`
}

// UnifiedPrediction is the fused, confidence-bounded prediction.
type UnifiedPrediction struct {
	Symbol              string    `json:"symbol"`
	Direction           Direction `json:"direction"`
	Confidence          float64   `json:"confidence"`
	Magnitude           float64   `json:"magnitude"`
	TimeHorizon         string    `json:"time_horizon"`
	ContributingDomains []Domain  `json:"contributing_domains"`
	ConsensusStrength   float64   `json:"consensus_strength"`
	HarmonicAlignment   float64   `json:"harmonic_alignment"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// ModifierSnapshot captures one confidence modifier's contribution to a prediction.
type ModifierSnapshot struct {
	Name           string    `json:"name"`
	Factor         float64   `json:"factor"`
	Regularization float64   `json:"regularization"`
	Hint           Direction `json:"hint,omitempty"`
	Applied        bool      `json:"applied_hint,omitempty"`
}

// TruthScore is the combined evidence used to scale base confidence.
type TruthScore struct {
	ConvergenceImprobability float64 `json:"convergence_improbability"`
	PhaseCoherence           float64 `json:"phase_coherence"`
	PatternAgreement         float64 `json:"pattern_agreement"`
	BlendedSignal            float64 `json:"blended_signal"`
	Combined                 float64 `json:"combined"`
	NoiseLevel               float64 `json:"noise_level"`
}

// ConfidenceInterval is a closed [Lower, Upper] range.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v falls inside the interval.
func (c ConfidenceInterval) Contains(v float64) bool {
	return v >= c.Lower && v <= c.Upper
}

// ProbabilityCloud is a Gaussian-mixture outcome distribution.
type ProbabilityCloud struct {
	Mean          float64               `json:"mean"`
	StdDev        float64               `json:"std_dev"`
	Skewness      float64               `json:"skewness"`
	Kurtosis      float64               `json:"kurtosis"`
	CI50          ConfidenceInterval    `json:"ci50"`
	CI75          ConfidenceInterval    `json:"ci75"`
	CI95          ConfidenceInterval    `json:"ci95"`
	Outcomes      map[Direction]float64 `json:"outcomes"`
	Entropy       float64               `json:"entropy"`
	ComponentSize int                   `json:"component_size"`
	GeneratedAt   time.Time             `json:"generated_at"`
}

// PredictionEnvelope is the tagged result of GenerateUnifiedPrediction.
type PredictionEnvelope struct {
	ID                 string             `json:"id"`
	Prediction         UnifiedPrediction  `json:"prediction"`
	CalibrationID      string             `json:"calibration_id"`
	ConvergenceEventID string             `json:"convergence_event_id,omitempty"`
	PhaseLockID        string             `json:"phase_lock_id,omitempty"`
	ProbabilityCloud   *ProbabilityCloud  `json:"probability_cloud,omitempty"`
	ModifierSnapshots  []ModifierSnapshot `json:"modifier_snapshots"`
	DomainVotes        map[Domain]int     `json:"domain_votes"`
	PatternSignal      float64            `json:"pattern_signal"`
	FundamentalSignal  float64            `json:"fundamental_signal"`
	Truth              TruthScore         `json:"truth"`
	RawConfidence      float64            `json:"raw_confidence"`
}

// Outcome is ground truth for a previously generated prediction.
type Outcome struct {
	PredictionID    string    `json:"prediction_id" validate:"required"`
	ActualDirection Direction `json:"actual_direction" validate:"required,oneof=up down neutral"`
	ActualMagnitude float64   `json:"actual_magnitude"`
	ResolvedAt      time.Time `json:"resolved_at"`
}

// OutcomeContext is handed to modifiers that learn from resolved predictions.
type OutcomeContext struct {
	Envelope        PredictionEnvelope
	ActualDirection Direction
	ActualMagnitude float64
	ResolvedAt      time.Time
}

// TickContext is the immutable per-tick view shared by every confidence modifier.
type TickContext struct {
	Symbol            string
	Timestamp         time.Time
	Price             float64
	Volume            float64
	Features          map[string]float64
	Signatures        map[Domain]DomainSignature
	PatternSignal     float64
	FundamentalSignal float64
}
