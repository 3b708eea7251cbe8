package fusion

import (
	"math"

	"github.com/google/uuid"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
	"SignalFuse/internal/services/modifiers"
	"SignalFuse/internal/services/signature"
)

type domainVote struct {
	domain models.Domain
	score  float64
	vote   int
	weight float64
}

// GenerateUnifiedPrediction fuses the registered signatures into one capped prediction.
// An empty horizon is derived from the mean dominant frequency.
func (e *Engine) GenerateUnifiedPrediction(symbol, horizon string) models.PredictionEnvelope {
	now := e.clock()
	sigs := e.registry.All()
	domains := signature.SortedDomains(sigs)

	votes := make([]domainVote, 0, len(domains))
	var sumW, sumVW, sumPA, sumRes, sumInt, sumFreq float64
	for _, d := range domains {
		s := sigs[d]
		score := (s.Momentum + (s.QuadrantProfile.Aggressive - s.QuadrantProfile.Defensive)) / 2
		v := 0
		switch {
		case score > e.cfg.VoteThreshold:
			v = 1
		case score < -e.cfg.VoteThreshold:
			v = -1
		}
		w := e.accuracyOf(d) * s.HarmonicResonance
		votes = append(votes, domainVote{domain: d, score: score, vote: v, weight: w})
		sumW += w
		sumVW += float64(v) * w
		sumPA += s.PhaseAlignment
		sumRes += s.HarmonicResonance
		sumInt += s.Intensity
		sumFreq += s.DominantFrequency
	}

	normalized := 0.0
	if sumW > 0 {
		normalized = sumVW / sumW
	}
	dir := models.DirectionNeutral
	switch {
	case normalized > e.cfg.DirectionThreshold:
		dir = models.DirectionUp
	case normalized < -e.cfg.DirectionThreshold:
		dir = models.DirectionDown
	}

	n := float64(len(votes))
	var consensus, meanPA, meanRes, meanInt, meanFreq float64
	var contributing []models.Domain
	domainVotes := make(map[models.Domain]int, len(votes))
	if n > 0 {
		matches := 0
		for _, v := range votes {
			domainVotes[v.domain] = v.vote
			if v.vote == dir.Sign() {
				matches++
				if v.vote != 0 {
					contributing = append(contributing, v.domain)
				}
			}
		}
		consensus = float64(matches) / n
		meanPA, meanRes, meanInt, meanFreq = sumPA/n, sumRes/n, sumInt/n, sumFreq/n
	}

	truth := e.truthScore(dir)
	base := meanPA * consensus
	conf := base * (1 + truth.Combined)
	if truth.NoiseLevel > e.cfg.NoiseThreshold {
		conf *= e.cfg.NoisePenalty
	}

	cloud := e.modifiers.Cloud.Generate(e.cloudComponents(votes), now)

	snaps := make([]models.ModifierSnapshot, 0, 9)
	for _, m := range e.modifiers.Ordered() {
		f := m.ConfidenceModifier()
		conf *= f
		snap := models.ModifierSnapshot{Name: m.Name(), Factor: f, Regularization: m.Regularization()}
		if dm, ok := m.(domsvc.DirectionalModifier); ok {
			if hint, ok := dm.DirectionalHint(); ok {
				snap.Hint = hint
				if len(votes) > 0 && dir == models.DirectionNeutral && hint != models.DirectionNeutral {
					dir = hint
					snap.Applied = true
				}
			}
		}
		snaps = append(snaps, snap)
	}
	raw := conf
	conf = e.calibration.Adjust(conf)
	conf = signature.Clamp(conf, 0, e.cfg.ConfidenceCap)

	if horizon == "" {
		horizon = e.horizonFor(meanFreq)
	}
	pred := models.UnifiedPrediction{
		Symbol:              symbol,
		Direction:           dir,
		Confidence:          conf,
		Magnitude:           math.Abs(normalized) * math.Max(meanInt, 0),
		TimeHorizon:         horizon,
		ContributingDomains: contributing,
		ConsensusStrength:   consensus,
		HarmonicAlignment:   meanRes,
		GeneratedAt:         now,
	}

	env := models.PredictionEnvelope{
		ID:                uuid.NewString(),
		Prediction:        pred,
		ProbabilityCloud:  &cloud,
		ModifierSnapshots: snaps,
		DomainVotes:       domainVotes,
		PatternSignal:     e.lastTick.PatternSignal,
		FundamentalSignal: e.lastTick.FundamentalSignal,
		Truth:             truth,
		RawConfidence:     raw,
	}
	if e.lastConvergence != nil && e.lastConvergence.Direction == dir {
		env.ConvergenceEventID = e.lastConvergence.ID
	}
	if lock, ok := e.phase.ActiveLock(now); ok {
		env.PhaseLockID = lock.ID
	}
	env.CalibrationID = e.calibration.RecordPrediction(conf, dir, symbol, horizon, now)

	e.history = append(e.history, env)
	if len(e.history) > e.cfg.HistorySize {
		e.history = e.history[len(e.history)-e.cfg.HistorySize:]
	}
	e.emit(models.EngineEvent{
		Kind: models.EventPredictionGenerated, At: now, Symbol: symbol, Direction: dir,
		Value: conf, Count: len(contributing), RefID: env.ID,
	})
	return env
}

// truthScore blends convergence improbability, phase coherence and the support the
// learned pattern/fundamental blend gives to dir.
func (e *Engine) truthScore(dir models.Direction) models.TruthScore {
	t := models.TruthScore{
		PhaseCoherence: e.lastPhase.Coherence,
		NoiseLevel:     e.modifiers.Noise.NoiseLevel(),
	}
	if e.lastConvergence != nil && e.lastConvergence.Direction == dir {
		t.ConvergenceImprobability = e.lastConvergence.StatisticalImprobability
	}
	p, f := e.lastTick.PatternSignal, e.lastTick.FundamentalSignal
	t.BlendedSignal = signature.Clamp(e.modifiers.Equivalence.BlendPredictions(p, f), -1, 1)
	if dir == models.DirectionNeutral {
		t.PatternAgreement = 1 - math.Abs(t.BlendedSignal)
	} else {
		t.PatternAgreement = (1 + float64(dir.Sign())*t.BlendedSignal) / 2
	}
	t.PatternAgreement = signature.Clamp(t.PatternAgreement, 0, 1)
	t.Combined = signature.Clamp(
		e.cfg.TruthConvergence*t.ConvergenceImprobability+
			e.cfg.TruthPhase*t.PhaseCoherence+
			e.cfg.TruthAgreement*t.PatternAgreement, 0, 1)
	return t
}

func (e *Engine) cloudComponents(votes []domainVote) []modifiers.CloudComponent {
	out := make([]modifiers.CloudComponent, 0, len(votes))
	for _, v := range votes {
		out = append(out, modifiers.CloudComponent{
			Value:      v.score * e.cfg.CloudScale,
			Confidence: v.weight,
			Source:     string(v.domain),
		})
	}
	return out
}

// horizonFor maps mean dominant frequency (cycles per hour) to a horizon label.
func (e *Engine) horizonFor(freq float64) string {
	switch {
	case freq <= 0 || math.IsNaN(freq):
		return e.cfg.DefaultHorizon
	case freq >= 4:
		return string(models.Horizon15m)
	case freq >= 1:
		return string(models.Horizon1h)
	case freq >= 0.25:
		return string(models.Horizon4h)
	default:
		return string(models.Horizon1d)
	}
}
