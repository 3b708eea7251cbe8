package fusion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
	"SignalFuse/internal/services/modifiers"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(opts ...Option) (*Engine, *fixedClock, *[]models.EngineEvent) {
	clk := &fixedClock{now: time.Date(2024, 4, 2, 15, 0, 0, 0, time.UTC)}
	var events []models.EngineEvent
	sink := domsvc.EventSinkFunc(func(ev models.EngineEvent) { events = append(events, ev) })
	opts = append([]Option{WithClock(clk.Now), WithEventSink(sink)}, opts...)
	return NewEngine(opts...), clk, &events
}

func uniformSignatures(n int, momentum, resonance float64) []models.DomainSignature {
	out := make([]models.DomainSignature, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.DomainSignature{
			Domain:            models.Domain(fmt.Sprintf("domain_%02d", i)),
			Momentum:          momentum,
			HarmonicResonance: resonance,
			PhaseAlignment:    0.9,
			Intensity:         0.6,
		})
	}
	return out
}

func countKind(events []models.EngineEvent, kind models.EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestGenerate_TwentyOneAlignedDomains(t *testing.T) {
	e, clk, events := newTestEngine()
	res := e.IngestSignatures(uniformSignatures(21, 0.5, 0.9), clk.now)
	assert.Equal(t, 21, res.Ingested)
	require.NotNil(t, res.Convergence)

	env := e.GenerateUnifiedPrediction("BTCUSDT", "")
	p := env.Prediction
	assert.Equal(t, models.DirectionUp, p.Direction)
	assert.Equal(t, 1.0, p.ConsensusStrength)
	assert.InDelta(t, 0.95, p.Confidence, 1e-9)
	assert.Len(t, p.ContributingDomains, 21)
	assert.InDelta(t, 0.9, p.HarmonicAlignment, 1e-9)
	assert.Equal(t, res.Convergence.ID, env.ConvergenceEventID)
	assert.NotEmpty(t, env.CalibrationID)
	assert.NotNil(t, env.ProbabilityCloud)
	assert.Len(t, env.ModifierSnapshots, 9)
	assert.Equal(t, 1, countKind(*events, models.EventPredictionGenerated))
	assert.Equal(t, 1, countKind(*events, models.EventConvergenceDetected))
}

func TestGenerate_EmptyRegistryIsNeutral(t *testing.T) {
	e, _, _ := newTestEngine()
	var env models.PredictionEnvelope
	require.NotPanics(t, func() { env = e.GenerateUnifiedPrediction("ETH", "") })
	assert.Equal(t, models.DirectionNeutral, env.Prediction.Direction)
	assert.Equal(t, 0.0, env.Prediction.Confidence)
	assert.Equal(t, "1h", env.Prediction.TimeHorizon)
}

func TestGenerate_PriceOnlyTicksStayNeutral(t *testing.T) {
	e, clk, _ := newTestEngine()
	price := 100.0
	for i := 0; i < 30; i++ {
		price *= 1.01
		clk.advance(time.Minute)
		e.ProcessMarketSignal(context.Background(), models.MarketFeatures{Symbol: "X", Timestamp: clk.now, Price: price})
	}
	require.Equal(t, 0, e.Snapshot().Domains)

	env := e.GenerateUnifiedPrediction("X", "")
	assert.Equal(t, models.DirectionNeutral, env.Prediction.Direction)
	assert.Equal(t, 0.0, env.Prediction.Confidence)
	for _, s := range env.ModifierSnapshots {
		assert.False(t, s.Applied, s.Name)
	}
}

func TestHistory_FIFO(t *testing.T) {
	e, clk, _ := newTestEngine()
	e.IngestSignatures(uniformSignatures(3, 0.3, 0.5), clk.now)
	var ids []string
	for i := 0; i < 1001; i++ {
		ids = append(ids, e.GenerateUnifiedPrediction("X", "1h").ID)
	}
	h := e.History(0)
	assert.Len(t, h, 1000)
	assert.Equal(t, ids[1], h[0].ID)
	assert.Equal(t, ids[1000], h[999].ID)
	_, ok := e.FindPrediction(ids[0])
	assert.False(t, ok)
	assert.Len(t, e.History(5), 5)
}

func TestConfidence_AlwaysBounded(t *testing.T) {
	e, clk, _ := newTestEngine()
	r := rand.New(rand.NewSource(11))
	for tick := 0; tick < 150; tick++ {
		var sigs []models.DomainSignature
		for i := 0; i < 1+r.Intn(25); i++ {
			sigs = append(sigs, models.DomainSignature{
				Domain:            models.Domain(fmt.Sprintf("d%d", i)),
				QuadrantProfile:   models.QuadrantProfile{Aggressive: r.Float64(), Defensive: r.Float64(), Tactical: r.Float64(), Strategic: r.Float64()},
				TemporalFlow:      models.TemporalFlow{Early: r.Float64(), Mid: r.Float64(), Late: r.Float64()},
				Momentum:          r.NormFloat64(),
				Volatility:        r.Float64(),
				HarmonicResonance: r.Float64() * 1.5,
				PhaseAlignment:    r.Float64() * 1.5,
				Intensity:         r.Float64(),
				DominantFrequency: r.Float64() * 5,
			})
		}
		clk.advance(time.Minute)
		e.IngestSignatures(sigs, clk.now)
		env := e.GenerateUnifiedPrediction("X", "")
		require.GreaterOrEqual(t, env.Prediction.Confidence, 0.0)
		require.LessOrEqual(t, env.Prediction.Confidence, 0.95)
		_, err := e.RecordPredictionOutcome(env, models.DirectionFromSign(r.Intn(3)-1), r.Float64()*0.05)
		require.NoError(t, err)
	}
	for d, acc := range e.Snapshot().AccuracyByDomain {
		assert.GreaterOrEqual(t, acc, 0.05, string(d))
		assert.LessOrEqual(t, acc, 1.0, string(d))
	}
}

func TestRecordOutcome_AsymmetricAccuracy(t *testing.T) {
	e, clk, _ := newTestEngine()
	e.IngestSignatures([]models.DomainSignature{
		{Domain: "bull", Momentum: 0.8, HarmonicResonance: 1, PhaseAlignment: 1},
	}, clk.now)
	env := e.GenerateUnifiedPrediction("X", "")
	require.Equal(t, 1, env.DomainVotes["bull"])

	_, err := e.RecordPredictionOutcome(env, models.DirectionUp, 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 0.525, e.Snapshot().AccuracyByDomain["bull"], 1e-12)

	next := e.GenerateUnifiedPrediction("X", "")
	_, err = e.RecordPredictionOutcome(next, models.DirectionDown, 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 0.525*0.85, e.Snapshot().AccuracyByDomain["bull"], 1e-12)

	_, err = e.RecordPredictionOutcome(env, models.Direction("sideways"), 0)
	assert.ErrorIs(t, err, ErrInvalidDirection)

	_, err = e.RecordOutcomeByID("missing", models.DirectionUp, 0)
	assert.ErrorIs(t, err, ErrPredictionNotFound)
}

func TestRecordOutcome_RepeatIsRejected(t *testing.T) {
	e, clk, events := newTestEngine()
	e.IngestSignatures([]models.DomainSignature{
		{Domain: "bull", Momentum: 0.8, HarmonicResonance: 1, PhaseAlignment: 1},
	}, clk.now)
	env := e.GenerateUnifiedPrediction("X", "")

	res, err := e.RecordPredictionOutcome(env, models.DirectionDown, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Generation)
	acc := e.Snapshot().AccuracyByDomain["bull"]

	for i := 0; i < 2; i++ {
		_, err = e.RecordPredictionOutcome(env, models.DirectionDown, 0.01)
		assert.ErrorIs(t, err, ErrAlreadyResolved)
		_, err = e.RecordOutcomeByID(env.ID, models.DirectionUp, 0.01)
		assert.ErrorIs(t, err, ErrAlreadyResolved)
	}
	snap := e.Snapshot()
	assert.Equal(t, 1, snap.EvolutionGeneration)
	assert.Equal(t, acc, snap.AccuracyByDomain["bull"])
	assert.Equal(t, 1, countKind(*events, models.EventOutcomeRecorded))
}

func TestRecordOutcome_ResolvedMemoryIsBounded(t *testing.T) {
	e, clk, _ := newTestEngine(WithConfig(Config{ResolvedMemory: 2}))
	e.IngestSignatures(uniformSignatures(3, 0.3, 0.5), clk.now)
	var ids []string
	for i := 0; i < 3; i++ {
		env := e.GenerateUnifiedPrediction("X", "1h")
		_, err := e.RecordPredictionOutcome(env, models.DirectionUp, 0.01)
		require.NoError(t, err)
		ids = append(ids, env.ID)
	}
	assert.Len(t, e.resolved, 2)
	assert.Equal(t, ids[1:], e.resolvedOrder)
	assert.False(t, e.isResolved(ids[0]))
	assert.True(t, e.isResolved(ids[2]))
}

func TestRecordOutcome_CalibrationGateAndVelocity(t *testing.T) {
	e, clk, events := newTestEngine()
	e.IngestSignatures(uniformSignatures(4, 0.6, 0.8), clk.now)
	becameCalibrated := 0
	for i := 0; i < 60; i++ {
		env := e.GenerateUnifiedPrediction("X", "")
		require.Equal(t, models.DirectionUp, env.Prediction.Direction)
		actual := models.DirectionDown
		if i >= 10 {
			actual = models.DirectionUp
		}
		res, err := e.RecordOutcomeByID(env.ID, actual, 0.01)
		require.NoError(t, err)
		if res.BecameCalibrated {
			becameCalibrated++
			assert.GreaterOrEqual(t, res.ResolvedEvents, 50)
		}
		if i == 19 {
			assert.InDelta(t, 1.0, res.LearningVelocity, 1e-12)
		}
		assert.Equal(t, i+1, res.Generation)
	}
	assert.True(t, e.IsCalibrated())
	assert.Equal(t, 1, becameCalibrated)
	assert.Equal(t, 1, countKind(*events, models.EventCalibrationReached))
	snap := e.Snapshot()
	assert.True(t, snap.IsCalibrated)
	assert.Equal(t, 60, snap.EvolutionGeneration)
}

func TestGenerate_CloudFactorUsesCurrentCloud(t *testing.T) {
	e, clk, _ := newTestEngine()
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 40; i++ {
		clk.advance(time.Minute)
		e.IngestSignatures(uniformSignatures(12, r.Float64()*2-1, 0.2+0.8*r.Float64()), clk.now)
		env := e.GenerateUnifiedPrediction("X", "1h")
		factor := math.NaN()
		for _, s := range env.ModifierSnapshots {
			if s.Name == modifiers.NameQuantumCloud {
				factor = s.Factor
			}
		}
		assert.InDelta(t, e.modifiers.Cloud.ConfidenceModifier(), factor, 1e-12)
		_, err := e.RecordPredictionOutcome(env, models.DirectionFromSign(r.Intn(3)-1), r.Float64()*0.05)
		require.NoError(t, err)
	}
}

func TestTruth_AgreementFollowsLearnedWeights(t *testing.T) {
	e, clk, _ := newTestEngine()
	e.IngestSignatures(uniformSignatures(21, 0.5, 0.9), clk.now)

	e.modifiers.Equivalence.SetWeights(0, 1)
	fundamentalOnly := e.GenerateUnifiedPrediction("X", "1h")
	require.Equal(t, models.DirectionUp, fundamentalOnly.Prediction.Direction)
	assert.InDelta(t, 0.5, fundamentalOnly.Truth.BlendedSignal, 1e-9)
	assert.InDelta(t, 0.75, fundamentalOnly.Truth.PatternAgreement, 1e-9)

	e.modifiers.Equivalence.SetWeights(1, 0)
	patternOnly := e.GenerateUnifiedPrediction("X", "1h")
	assert.InDelta(t, 0.0, patternOnly.Truth.BlendedSignal, 1e-9)
	assert.InDelta(t, 0.5, patternOnly.Truth.PatternAgreement, 1e-9)
	assert.Less(t, patternOnly.Truth.Combined, fundamentalOnly.Truth.Combined)
}

type stubAdapter struct {
	domain   models.Domain
	momentum float64
	fail     bool
	panics   bool
}

func (s *stubAdapter) Domain() models.Domain { return s.domain }

func (s *stubAdapter) Initialize(context.Context) error { return nil }

func (s *stubAdapter) ProcessRawData(_ context.Context, f models.MarketFeatures) (models.DomainSignal, error) {
	if s.panics {
		panic("boom")
	}
	if s.fail {
		return models.DomainSignal{}, errors.New("upstream timeout")
	}
	return models.DomainSignal{Domain: s.domain, Timestamp: f.Timestamp, Intensity: 0.5, RawData: []float64{f.Price}}, nil
}

func (s *stubAdapter) ExtractSignature(_ context.Context, signals []models.DomainSignal) (models.DomainSignature, error) {
	return models.DomainSignature{
		Domain:            s.domain,
		Momentum:          s.momentum,
		HarmonicResonance: 0.8,
		PhaseAlignment:    0.8,
		Intensity:         float64(len(signals)) / 50,
	}, nil
}

func TestProcessMarketSignal_ContainsAdapterFailures(t *testing.T) {
	e, clk, events := newTestEngine(WithAdapters(
		&stubAdapter{domain: "ok", momentum: 0.4},
		&stubAdapter{domain: "flaky", fail: true},
		&stubAdapter{domain: "broken", panics: true},
	))
	assert.Equal(t, 3, e.Initialize(context.Background()))
	var res ProcessResult
	require.NotPanics(t, func() {
		res = e.ProcessMarketSignal(context.Background(), models.MarketFeatures{Symbol: "X", Timestamp: clk.now, Price: 100})
	})
	assert.Equal(t, 1, res.Ingested)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 2, countKind(*events, models.EventAdapterFailed))
}

func TestDirectionalHint_OnlyWhileNeutral(t *testing.T) {
	e, clk, _ := newTestEngine(WithAdapters(&stubAdapter{domain: "flat", momentum: 0}))
	price := 100.0
	for i := 0; i < 30; i++ {
		price *= 1.002
		clk.advance(time.Minute)
		e.ProcessMarketSignal(context.Background(), models.MarketFeatures{
			Symbol: "X", Timestamp: clk.now, Price: price, Values: map[string]float64{"volatility": 0.01},
		})
	}
	env := e.GenerateUnifiedPrediction("X", "")
	assert.Equal(t, models.DirectionUp, env.Prediction.Direction)
	applied := 0
	for _, s := range env.ModifierSnapshots {
		if s.Applied {
			applied++
			assert.Equal(t, "archetypal_resonance", s.Name)
		}
	}
	assert.Equal(t, 1, applied)

	e.IngestSignatures([]models.DomainSignature{{Domain: "flat", Momentum: -0.9, HarmonicResonance: 1, PhaseAlignment: 1}}, clk.now)
	env = e.GenerateUnifiedPrediction("X", "")
	assert.Equal(t, models.DirectionDown, env.Prediction.Direction)
	for _, s := range env.ModifierSnapshots {
		assert.False(t, s.Applied)
	}
}
