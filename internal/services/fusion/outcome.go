package fusion

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"SignalFuse/internal/domain/models"
	"SignalFuse/internal/services/calibration"
	"SignalFuse/internal/services/convergence"
	"SignalFuse/internal/services/phase"
)

// OutcomeResult reports the effects of one resolved prediction.
type OutcomeResult struct {
	Correct          bool
	Generation       int
	LearningVelocity float64
	ResolvedEvents   int
	BecameCalibrated bool
}

// RecordPredictionOutcome closes the feedback loop for a prediction: it resolves the
// linked convergence, calibration and phase-lock records and re-weights domains.
// A prediction is learned from once; repeats return ErrAlreadyResolved.
func (e *Engine) RecordPredictionOutcome(env models.PredictionEnvelope, actual models.Direction, magnitude float64) (OutcomeResult, error) {
	if _, ok := models.ParseDirection(string(actual)); !ok {
		return OutcomeResult{}, fmt.Errorf("record outcome %q: %w", actual, ErrInvalidDirection)
	}
	if e.isResolved(env.ID) {
		return OutcomeResult{}, fmt.Errorf("record outcome %s: %w", env.ID, ErrAlreadyResolved)
	}
	if math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		magnitude = 0
	}
	now := e.clock()

	if env.ConvergenceEventID != "" {
		if _, err := e.convergence.Resolve(env.ConvergenceEventID, actual, now); err != nil && !errors.Is(err, convergence.ErrEventNotFound) {
			return OutcomeResult{}, fmt.Errorf("resolve convergence: %w", err)
		}
	}
	if env.CalibrationID != "" {
		if _, err := e.calibration.ResolvePrediction(env.CalibrationID, actual, now); err != nil && !errors.Is(err, calibration.ErrRecordNotFound) {
			return OutcomeResult{}, fmt.Errorf("resolve calibration: %w", err)
		}
	}
	if env.PhaseLockID != "" {
		if _, err := e.phase.Resolve(env.PhaseLockID, actual); err != nil && !errors.Is(err, phase.ErrLockNotFound) {
			return OutcomeResult{}, fmt.Errorf("resolve phase lock: %w", err)
		}
	}

	for _, d := range sortedVoteDomains(env.DomainVotes) {
		vote := env.DomainVotes[d]
		if vote == 0 {
			continue
		}
		acc := e.accuracyOf(d)
		if vote == actual.Sign() {
			acc += e.cfg.HitAlpha * (1 - acc)
		} else {
			acc -= e.cfg.MissAlpha * acc
		}
		acc = math.Min(math.Max(acc, e.cfg.AccuracyFloor), 1)
		e.accuracy[d] = acc
		e.emit(models.EngineEvent{Kind: models.EventDomainAccuracy, At: now, Domain: d, Value: acc})
	}

	correct := env.Prediction.Direction == actual
	e.outcomes = append(e.outcomes, correct)
	if limit := 2 * e.cfg.VelocityWindow; len(e.outcomes) > limit {
		e.outcomes = e.outcomes[len(e.outcomes)-limit:]
	}
	if len(e.outcomes) >= 2*e.cfg.VelocityWindow {
		w := e.cfg.VelocityWindow
		e.learningVelocity = hitRate(e.outcomes[w:]) - hitRate(e.outcomes[:w])
	}

	e.markResolved(env.ID)
	e.modifiers.LearnOutcome(models.OutcomeContext{
		Envelope:        env,
		ActualDirection: actual,
		ActualMagnitude: magnitude,
		ResolvedAt:      now,
	})
	e.generation++

	resolved := e.ResolvedEvents()
	res := OutcomeResult{
		Correct:          correct,
		Generation:       e.generation,
		LearningVelocity: e.learningVelocity,
		ResolvedEvents:   resolved,
	}
	if !e.isCalibrated && resolved >= e.cfg.CalibrationGate {
		e.isCalibrated = true
		res.BecameCalibrated = true
		e.emit(models.EngineEvent{Kind: models.EventCalibrationReached, At: now, Count: resolved})
	}
	e.emit(models.EngineEvent{
		Kind: models.EventOutcomeRecorded, At: now, Symbol: env.Prediction.Symbol,
		Direction: actual, Value: magnitude, RefID: env.ID, Count: e.generation, Label: outcomeLabel(correct),
	})
	return res, nil
}

// RecordOutcomeByID looks a prediction up in history and records its outcome.
func (e *Engine) RecordOutcomeByID(id string, actual models.Direction, magnitude float64) (OutcomeResult, error) {
	env, ok := e.FindPrediction(id)
	if !ok {
		return OutcomeResult{}, fmt.Errorf("record outcome %s: %w", id, ErrPredictionNotFound)
	}
	return e.RecordPredictionOutcome(env, actual, magnitude)
}

func (e *Engine) isResolved(id string) bool {
	if id == "" {
		return false
	}
	_, ok := e.resolved[id]
	return ok
}

// markResolved remembers id, forgetting the oldest ids beyond ResolvedMemory.
func (e *Engine) markResolved(id string) {
	if id == "" {
		return
	}
	e.resolved[id] = struct{}{}
	e.resolvedOrder = append(e.resolvedOrder, id)
	if over := len(e.resolvedOrder) - e.cfg.ResolvedMemory; over > 0 {
		for _, old := range e.resolvedOrder[:over] {
			delete(e.resolved, old)
		}
		e.resolvedOrder = append([]string(nil), e.resolvedOrder[over:]...)
	}
}

// ResolvedEvents counts resolved records across convergence, calibration and phase tracking.
func (e *Engine) ResolvedEvents() int {
	return e.convergence.ResolvedCount() + e.calibration.ResolvedCount() + e.phase.ResolvedCount()
}

func outcomeLabel(correct bool) string {
	if correct {
		return "hit"
	}
	return "miss"
}

func hitRate(xs []bool) float64 {
	if len(xs) == 0 {
		return 0
	}
	n := 0
	for _, x := range xs {
		if x {
			n++
		}
	}
	return float64(n) / float64(len(xs))
}

func sortedVoteDomains(m map[models.Domain]int) []models.Domain {
	out := make([]models.Domain, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
