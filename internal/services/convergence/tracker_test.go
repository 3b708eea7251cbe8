package convergence

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalFuse/internal/domain/models"
)

func signatures(up, down, flat int, momentum float64) map[models.Domain]models.DomainSignature {
	out := map[models.Domain]models.DomainSignature{}
	add := func(prefix string, n int, m float64) {
		for i := 0; i < n; i++ {
			d := models.Domain(fmt.Sprintf("%s%02d", prefix, i))
			out[d] = models.DomainSignature{Domain: d, Momentum: m}
		}
	}
	add("up", up, momentum)
	add("down", down, -momentum)
	add("flat", flat, 0)
	return out
}

func TestDetect_TooFewDomains(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	_, ok := tr.Detect(signatures(9, 0, 0, 0.9), time.Now())
	assert.False(t, ok)
}

func TestDetect_NeverBelowMinimumAlignment(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	now := time.Now()
	for up := 0; up <= 21; up++ {
		ev, ok := tr.Detect(signatures(up, 0, 21-up, 0.8), now)
		if ok {
			assert.GreaterOrEqual(t, ev.AlignmentCount, 10)
			assert.GreaterOrEqual(t, ev.StatisticalImprobability, 0.9)
		}
		if up < 10 {
			assert.False(t, ok, "up=%d", up)
		}
	}
}

func TestDetect_BearishMajority(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	ev, ok := tr.Detect(signatures(2, 15, 4, 0.6), time.Now())
	require.True(t, ok)
	assert.Equal(t, models.DirectionDown, ev.Direction)
	assert.Equal(t, 15, ev.AlignmentCount)
	assert.InDelta(t, 0.6, ev.MomentumConsensus, 1e-9)
	assert.NotEmpty(t, ev.ID)
}

func TestImprobability(t *testing.T) {
	assert.Equal(t, 0.0, Improbability(0, 1))
	assert.InDelta(t, 1-0.5*1.5, Improbability(2, 0.5), 1e-12)
	assert.Greater(t, Improbability(12, 1), Improbability(12, 0))
}

func TestResolveAndPrune(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ev, ok := tr.Detect(signatures(21, 0, 0, 0.9), start)
	require.True(t, ok)

	got, err := tr.Resolve(ev.ID, models.DirectionUp, start.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got.Outcome)
	assert.True(t, got.Outcome.WasCorrect)
	assert.Equal(t, 1, tr.ResolvedCount())

	_, err = tr.Resolve("missing", models.DirectionUp, start)
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, _ = tr.Detect(signatures(0, 0, 3, 0), start.Add(31*24*time.Hour))
	assert.Empty(t, tr.Events())
}

func TestStatistics(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	now := time.Now()
	st := tr.Statistics()
	assert.Equal(t, ConclusionInsufficient, st.Conclusion)

	for i := 0; i < 40; i++ {
		ev, ok := tr.Detect(signatures(21, 0, 0, 0.9), now)
		require.True(t, ok)
		actual := models.DirectionUp
		if i%5 == 0 {
			actual = models.DirectionDown
		}
		_, err := tr.Resolve(ev.ID, actual, now)
		require.NoError(t, err)
	}
	st = tr.Statistics()
	assert.Equal(t, 40, st.ResolvedEvents)
	assert.InDelta(t, 0.8, st.Accuracy, 1e-9)
	assert.Greater(t, st.ZScore, 0.0)
	assert.Less(t, st.PValue, 0.01)
	assert.Equal(t, ConclusionStrong, st.Conclusion)
}

func TestConclude(t *testing.T) {
	assert.Equal(t, ConclusionStrong, Conclude(0.001))
	assert.Equal(t, ConclusionModerate, Conclude(0.03))
	assert.Equal(t, ConclusionWeak, Conclude(0.07))
	assert.Equal(t, ConclusionNone, Conclude(0.5))
}

func TestEventsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEvents = 5
	tr := NewTracker(cfg)
	now := time.Now()
	for i := 0; i < 12; i++ {
		_, _ = tr.Detect(signatures(21, 0, 0, 0.9), now)
	}
	assert.Len(t, tr.Events(), 5)
}
