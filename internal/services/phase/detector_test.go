package phase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalFuse/internal/domain/models"
)

func cycleAt(name string, period time.Duration, phase float64, now time.Time) Cycle {
	return Cycle{Name: name, Period: period, Epoch: now.Add(-time.Duration(phase * float64(period))), Amplitude: 1}
}

func TestCurrentPhase(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Cycle{Name: "c", Period: 10 * time.Hour, Epoch: epoch}
	assert.InDelta(t, 0.25, c.CurrentPhase(epoch.Add(2*time.Hour+30*time.Minute)), 1e-9)
	assert.InDelta(t, 0.5, c.CurrentPhase(epoch.Add(25*time.Hour)), 1e-9)
	assert.InDelta(t, 0.9, c.CurrentPhase(epoch.Add(-time.Hour)), 1e-9)
	assert.Equal(t, 0.0, Cycle{}.CurrentPhase(epoch))
}

func TestCoherence(t *testing.T) {
	r, dom := Coherence([]float64{0.3, 0.3, 0.3})
	assert.InDelta(t, 1.0, r, 1e-9)
	assert.InDelta(t, 0.3, dom, 1e-9)

	r, _ = Coherence([]float64{0, 0.5})
	assert.InDelta(t, 0.0, r, 1e-9)

	r, _ = Coherence(nil)
	assert.Equal(t, 0.0, r)
}

func TestCircularDistance(t *testing.T) {
	assert.InDelta(t, 0.1, CircularDistance(0.95, 0.05), 1e-12)
	assert.InDelta(t, 0.5, CircularDistance(0, 0.5), 1e-12)
}

func TestImplicationQuartiles(t *testing.T) {
	d := NewDetector()
	assert.Equal(t, ImplicationReversal, d.Implication(0.1, 0.9))
	assert.Equal(t, ImplicationStrongTrend, d.Implication(0.1, 0.6))
	assert.Equal(t, ImplicationStrongTrend, d.Implication(0.3, 0.9))
	assert.Equal(t, ImplicationVolatility, d.Implication(0.6, 0.9))
	assert.Equal(t, ImplicationConsolidate, d.Implication(0.6, 0.6))
	assert.Equal(t, ImplicationReversal, d.Implication(0.8, 0.6))
}

func TestDetect_Lock(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d := NewDetector(WithCycles(
		cycleAt("a", 10*time.Hour, 0.10, now),
		cycleAt("b", 20*time.Hour, 0.12, now),
		cycleAt("c", 30*time.Hour, 0.15, now),
	))
	st, created := d.Detect(now)
	require.True(t, created)
	require.NotNil(t, st.Lock)
	assert.Greater(t, st.Coherence, 0.9)
	assert.Equal(t, []string{"a", "b", "c"}, st.Lock.Cycles)
	assert.Equal(t, ImplicationReversal, st.Lock.Implication)
	assert.InDelta(t, (2 * time.Hour).Seconds(), st.Lock.PredictedDuration.Seconds(), 1e-3)

	_, created = d.Detect(now.Add(time.Minute))
	assert.False(t, created)
	assert.Len(t, d.Locks(), 1)

	active, ok := d.ActiveLock(now.Add(time.Hour))
	require.True(t, ok)

	res, err := d.Resolve(active.ID, models.DirectionUp)
	require.NoError(t, err)
	assert.True(t, res.WasCorrect)
	assert.Equal(t, 1, d.ResolvedCount())

	_, err = d.Resolve("nope", models.DirectionUp)
	assert.ErrorIs(t, err, ErrLockNotFound)
}

func TestDetect_NoLockWhenSpread(t *testing.T) {
	now := time.Now()
	d := NewDetector(WithCycles(
		cycleAt("a", time.Hour, 0.0, now),
		cycleAt("b", time.Hour, 0.33, now),
		cycleAt("c", time.Hour, 0.66, now),
	))
	st, created := d.Detect(now)
	assert.False(t, created)
	assert.Nil(t, st.Lock)
	assert.Less(t, st.Coherence, 0.1)
}

func TestDefaultCycles(t *testing.T) {
	d := NewDetector()
	assert.Len(t, d.Cycles(), 8)
	for _, p := range d.Phases(time.Now()) {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.Less(t, p, 1.0)
	}
}
