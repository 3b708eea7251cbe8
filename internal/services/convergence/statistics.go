package convergence

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"SignalFuse/internal/domain/models"
)

// ChanceBaseline is the accuracy of a uniform guess over three directions.
const ChanceBaseline = 1.0 / 3.0

const (
	ConclusionInsufficient = "insufficient_data"
	ConclusionStrong       = "strong_evidence"
	ConclusionModerate     = "moderate_evidence"
	ConclusionWeak         = "weak_evidence"
	ConclusionNone         = "no_evidence"
)

// Statistics tests resolved-event accuracy against the chance baseline with a one-tailed z-test.
func (t *Tracker) Statistics() models.ConvergenceStats {
	st := models.ConvergenceStats{
		TotalEvents: len(t.events),
		Baseline:    ChanceBaseline,
		PValue:      1,
		Conclusion:  ConclusionInsufficient,
	}
	for _, ev := range t.events {
		if ev.Outcome == nil {
			continue
		}
		st.ResolvedEvents++
		if ev.Outcome.WasCorrect {
			st.CorrectEvents++
		}
	}
	if st.ResolvedEvents > 0 {
		st.Accuracy = float64(st.CorrectEvents) / float64(st.ResolvedEvents)
	}
	if st.ResolvedEvents < t.cfg.MinResolvedForStats {
		return st
	}
	st.ZScore, st.PValue = ZTest(st.Accuracy, ChanceBaseline, st.ResolvedEvents)
	st.Conclusion = Conclude(st.PValue)
	return st
}

// ZTest returns the z-score and one-tailed p-value of observed accuracy against p0.
func ZTest(observed, p0 float64, n int) (float64, float64) {
	if n <= 0 || p0 <= 0 || p0 >= 1 {
		return 0, 1
	}
	se := math.Sqrt(p0 * (1 - p0) / float64(n))
	if se == 0 {
		return 0, 1
	}
	z := (observed - p0) / se
	p := 1 - distuv.UnitNormal.CDF(z)
	if math.IsNaN(p) {
		p = 1
	}
	return z, p
}

// Conclude bands a p-value into a qualitative conclusion.
func Conclude(p float64) string {
	switch {
	case p < 0.01:
		return ConclusionStrong
	case p < 0.05:
		return ConclusionModerate
	case p < 0.10:
		return ConclusionWeak
	default:
		return ConclusionNone
	}
}
