package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"SignalFuse/internal/domain/models"
	"SignalFuse/internal/services/adapters"
	"SignalFuse/internal/services/fusion"
)

func newRunner(t *testing.T, m *fakeMetrics) *EngineRunner {
	t.Helper()
	engine := fusion.NewEngine(
		fusion.WithAdapters(adapters.DefaultAdapters()...),
		fusion.WithEventSink(NewEventRecorder(m, nil)),
	)
	r := NewEngineRunner(engine, WithMailboxSize(8), WithCommandTimeout(2*time.Second))
	require.NoError(t, r.Start(context.Background()))
	return r
}

func alignedSignatures(n int, momentum float64) []models.DomainSignature {
	out := make([]models.DomainSignature, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.DomainSignature{
			Domain:            models.Domain("d" + string(rune('a'+i))),
			Momentum:          momentum,
			Intensity:         0.8,
			HarmonicResonance: 0.9,
			PhaseAlignment:    0.9,
			QuadrantProfile:   models.QuadrantProfile{Aggressive: 0.7, Defensive: 0.1, Tactical: 0.1, Strategic: 0.1},
		})
	}
	return out
}

func TestEngineRunner_SerializesConcurrentCommands(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := newFakeMetrics()
	r := newRunner(t, m)
	defer r.Stop()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.IngestSignatures(ctx, alignedSignatures(12, 0.6), time.Time{})
			assert.NoError(t, err)
			_, err = r.Predict(ctx, "AAPL", "")
			assert.NoError(t, err)
			assert.NotNil(t, r.Snapshot())
		}()
	}
	wg.Wait()

	hist, err := r.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 16)
	assert.Equal(t, 16, m.predictionCount())

	snap := r.Snapshot()
	assert.Equal(t, 12, snap.Domains)
	require.NotNil(t, snap.LastPrediction)
	assert.Equal(t, models.DirectionUp, snap.LastPrediction.Prediction.Direction)
	assert.LessOrEqual(t, snap.LastPrediction.Prediction.Confidence, 0.95)
}

func TestEngineRunner_OutcomeRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newRunner(t, newFakeMetrics())
	defer r.Stop()
	ctx := context.Background()

	_, err := r.IngestSignatures(ctx, alignedSignatures(12, 0.6), time.Time{})
	require.NoError(t, err)
	env, err := r.Predict(ctx, "AAPL", "1h")
	require.NoError(t, err)

	found, err := r.FindPrediction(ctx, env.ID)
	require.NoError(t, err)
	assert.Equal(t, env.ID, found.ID)

	res, err := r.RecordOutcome(ctx, env.ID, models.DirectionUp, 0.01)
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 1, res.Generation)

	_, err = r.RecordOutcome(ctx, "missing", models.DirectionUp, 0)
	assert.ErrorIs(t, err, fusion.ErrPredictionNotFound)

	_, err = r.FindPrediction(ctx, "missing")
	assert.ErrorIs(t, err, fusion.ErrPredictionNotFound)

	events, err := r.ConvergenceEvents(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestEngineRunner_RecoversPanics(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newRunner(t, newFakeMetrics())
	defer r.Stop()

	_, err := call(context.Background(), r, "boom", func(context.Context, *fusion.Engine) (int, error) {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	_, err = r.Predict(context.Background(), "AAPL", "")
	assert.NoError(t, err)
}

func TestEngineRunner_StoppedRejectsCommands(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newRunner(t, newFakeMetrics())
	r.Stop()
	r.Stop()

	_, err := r.Predict(context.Background(), "AAPL", "")
	assert.True(t, errors.Is(err, ErrRunnerStopped))
	assert.ErrorIs(t, r.Start(context.Background()), ErrRunnerStopped)
}

func TestEngineRunner_CanceledContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newRunner(t, newFakeMetrics())
	defer r.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Predict(ctx, "AAPL", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineRunner_UnstartedStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := NewEngineRunner(fusion.NewEngine())
	assert.NotNil(t, r.Snapshot())
	r.Stop()
	_, err := r.History(context.Background(), 1)
	assert.ErrorIs(t, err, ErrRunnerStopped)
}
