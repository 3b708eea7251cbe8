package fusion

import "SignalFuse/internal/domain/models"

// Snapshot returns an immutable copy of the engine state.
func (e *Engine) Snapshot() models.EngineSnapshot {
	acc := make(map[models.Domain]float64, len(e.accuracy))
	for _, d := range e.registry.Domains() {
		acc[d] = e.accuracyOf(d)
	}
	for d, v := range e.accuracy {
		acc[d] = v
	}
	phaseState := e.lastPhase
	if phaseState.Phases != nil {
		phases := make(map[string]float64, len(phaseState.Phases))
		for k, v := range phaseState.Phases {
			phases[k] = v
		}
		phaseState.Phases = phases
	}
	if phaseState.Lock != nil {
		l := *phaseState.Lock
		l.Cycles = append([]string(nil), l.Cycles...)
		phaseState.Lock = &l
	}
	snap := models.EngineSnapshot{
		TakenAt:             e.clock(),
		Domains:             e.registry.Len(),
		Signatures:          e.registry.All(),
		AccuracyByDomain:    acc,
		HistoryLength:       len(e.history),
		IsCalibrated:        e.isCalibrated,
		EvolutionGeneration: e.generation,
		LearningVelocity:    e.learningVelocity,
		ResolvedEvents:      e.ResolvedEvents(),
		Calibration:         e.calibration.Advice(),
		Convergence:         e.convergence.Statistics(),
		Phase:               phaseState,
		StrongestPairs:      e.matrix.StrongestPairs(10),
		Modifiers:           e.modifiers.Snapshots(),
	}
	if n := len(e.history); n > 0 {
		last := e.history[n-1]
		snap.LastPrediction = &last
	}
	return snap
}

// FindPrediction looks up a prediction in the bounded history.
func (e *Engine) FindPrediction(id string) (models.PredictionEnvelope, bool) {
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].ID == id {
			return e.history[i], true
		}
	}
	return models.PredictionEnvelope{}, false
}

// History returns up to limit most recent predictions, oldest first. limit <= 0 returns all.
func (e *Engine) History(limit int) []models.PredictionEnvelope {
	h := e.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]models.PredictionEnvelope(nil), h...)
}
