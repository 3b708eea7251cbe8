package modifiers

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
	"SignalFuse/internal/services/signature"
)

func TestRing_FIFO(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.Equal(t, []int{3, 4, 5}, r.Values())
	assert.Equal(t, []int{4, 5}, r.Tail(2))
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, 5, last)
}

func TestRegularize(t *testing.T) {
	assert.Equal(t, 1.0, Regularize(math.NaN(), 0.85))
	assert.Equal(t, MaxFactor, Regularize(3, 0.85))
	assert.Equal(t, MinFactor, Regularize(-1, 0.85))
	assert.InDelta(t, 1.085, Regularize(1.1, 0.85), 1e-12)
}

func TestSet_OrderAndRegularization(t *testing.T) {
	s := NewSet()
	var names []string
	for _, m := range s.Ordered() {
		names = append(names, m.Name())
		assert.GreaterOrEqual(t, m.Regularization(), 0.8)
		assert.LessOrEqual(t, m.Regularization(), 0.9)
	}
	assert.Equal(t, []string{
		NameEntropyFlow, NameArchetypal, NameMorphicField, NameEmotionalContagion, NameFractalTime,
		NameInverseNoise, NameBiorhythmLunar, NameDynamicEquivalence, NameQuantumCloud,
	}, names)
}

func randomTick(r *rand.Rand, at time.Time, price float64) models.TickContext {
	sigs := map[models.Domain]models.DomainSignature{}
	for i := 0; i < 8; i++ {
		d := models.Domain(fmt.Sprintf("d%d", i))
		sigs[d] = signature.Normalize(models.DomainSignature{
			Domain:          d,
			QuadrantProfile: models.QuadrantProfile{Aggressive: r.Float64(), Defensive: r.Float64(), Tactical: r.Float64(), Strategic: r.Float64()},
			TemporalFlow:    models.TemporalFlow{Early: r.Float64(), Mid: r.Float64(), Late: r.Float64()},
			Momentum:        r.Float64()*2 - 1,
		})
	}
	return models.TickContext{
		Symbol:            "BTC",
		Timestamp:         at,
		Price:             price,
		Features:          map[string]float64{"volatility": r.Float64() * 0.1},
		Signatures:        sigs,
		PatternSignal:     r.Float64()*2 - 1,
		FundamentalSignal: r.Float64()*2 - 1,
	}
}

func TestSet_FactorsStayBounded(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	s := NewSet()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < 400; i++ {
		price *= 1 + (r.Float64()-0.5)*0.02
		p := price
		if i%97 == 0 {
			p = math.NaN()
		}
		s.Update(randomTick(r, start.Add(time.Duration(i)*time.Minute), p))
		if i%3 == 0 {
			env := models.PredictionEnvelope{PatternSignal: r.Float64() - 0.5, FundamentalSignal: r.Float64() - 0.5}
			cloud := s.Cloud.Generate([]CloudComponent{{Value: r.Float64()*0.1 - 0.05, Confidence: r.Float64()}}, start)
			env.ProbabilityCloud = &cloud
			s.LearnOutcome(models.OutcomeContext{
				Envelope:        env,
				ActualDirection: models.DirectionFromSign(r.Intn(3) - 1),
				ActualMagnitude: r.Float64() * 0.05,
				ResolvedAt:      start.Add(time.Duration(i) * time.Minute),
			})
		}
		for _, m := range s.Ordered() {
			f := m.ConfidenceModifier()
			require.False(t, math.IsNaN(f), m.Name())
			require.GreaterOrEqual(t, f, MinFactor, m.Name())
			require.LessOrEqual(t, f, MaxFactor, m.Name())
		}
	}
	assert.Len(t, s.Snapshots(), 9)
}

func TestEntropyFlow(t *testing.T) {
	assert.InDelta(t, 1.0, NormalizedEntropy([]float64{0.25, 0.25, 0.25, 0.25}), 1e-12)
	assert.InDelta(t, 0.0, NormalizedEntropy([]float64{1, 0, 0, 0}), 1e-12)

	e := NewEntropyFlow()
	assert.Equal(t, 1.0, e.ConfidenceModifier())
	now := time.Now()
	for i := 0; i < 10; i++ {
		a := 0.25 + 0.07*float64(i)
		rest := (1 - a) / 3
		e.Update(models.TickContext{Timestamp: now, Signatures: map[models.Domain]models.DomainSignature{
			"x": {Domain: "x", QuadrantProfile: models.QuadrantProfile{Aggressive: a, Defensive: rest, Tactical: rest, Strategic: rest}},
		}})
	}
	assert.Less(t, e.Trend(), 0.0)
	assert.Greater(t, e.ConfidenceModifier(), 1.0)
}

func TestArchetypal_HeroHint(t *testing.T) {
	a := NewArchetypalResonance()
	price := 100.0
	for i := 0; i < 30; i++ {
		price *= 1.002
		a.Update(models.TickContext{Price: price, Features: map[string]float64{"volatility": 0.01}})
	}
	arch, persistence := a.Dominant()
	assert.Equal(t, ArchetypeHero, arch)
	assert.Greater(t, persistence, 0.7)
	d, ok := a.DirectionalHint()
	require.True(t, ok)
	assert.Equal(t, models.DirectionUp, d)
	assert.Greater(t, a.ConfidenceModifier(), 1.0)
}

func TestMorphicField_ActiveAcrossSources(t *testing.T) {
	m := NewMorphicField()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := models.QuadrantProfile{Aggressive: 0.4, Defensive: 0.2, Tactical: 0.2, Strategic: 0.2}
	sigs := map[models.Domain]models.DomainSignature{}
	for _, d := range []models.Domain{"a", "b"} {
		sigs[d] = models.DomainSignature{Domain: d, QuadrantProfile: q}
	}
	m.Update(models.TickContext{Timestamp: now, Signatures: sigs})
	assert.Empty(t, m.ActivePatterns())
	assert.Equal(t, 1, m.PatternCount())
	assert.Equal(t, 1.0, m.ConfidenceModifier())

	sigs["c"] = models.DomainSignature{Domain: "c", QuadrantProfile: q}
	m.Update(models.TickContext{Timestamp: now.Add(time.Minute), Signatures: sigs})
	active := m.ActivePatterns()
	require.Len(t, active, 1)
	assert.Equal(t, 1.0, m.FieldCoherence())
	assert.Greater(t, active[0].PropagationSpeed, 0.0)
	assert.Greater(t, m.ConfidenceModifier(), 1.0)

	// strength halves every hour
	m.Update(models.TickContext{Timestamp: now.Add(10 * time.Hour)})
	assert.Empty(t, m.ActivePatterns())
}

func TestEmotionalContagion_EuphoriaDampens(t *testing.T) {
	e := NewEmotionalContagion()
	sigs := map[models.Domain]models.DomainSignature{}
	for i := 0; i < 10; i++ {
		d := models.Domain(fmt.Sprintf("d%d", i))
		sigs[d] = models.DomainSignature{Domain: d, Momentum: 1, QuadrantProfile: models.QuadrantProfile{Aggressive: 1}}
	}
	e.Update(models.TickContext{Signatures: sigs})
	r, ok := e.Latest()
	require.True(t, ok)
	assert.Equal(t, 1.0, r.Spread)
	assert.Less(t, e.ConfidenceModifier(), 1.0)
}

func TestFractalTime(t *testing.T) {
	h, ok := Hurst(make([]float64, 5))
	assert.False(t, ok)
	assert.Equal(t, 0.5, h)

	f := NewFractalTimeCompression()
	assert.Equal(t, 1.0, f.ConfidenceModifier())
	r := rand.New(rand.NewSource(9))
	price := 100.0
	for i := 0; i < 200; i++ {
		price *= 1 + (r.Float64()-0.5)*0.01
		f.Update(models.TickContext{Price: price})
	}
	assert.GreaterOrEqual(t, f.HurstExponent(), 0.0)
	assert.LessOrEqual(t, f.HurstExponent(), 1.0)
}

func TestAnalyzeNoise(t *testing.T) {
	assert.True(t, AnalyzeNoise(make([]float64, 10)).Insufficient)

	smooth := make([]float64, 60)
	for i := range smooth {
		smooth[i] = 100 + float64(i)*0.5 + 0.001*math.Sin(0.3*float64(i))
	}
	p := AnalyzeNoise(smooth)
	assert.Less(t, p.Level, 0.3)
	assert.Equal(t, StructurePatterned, p.Structure)
	assert.Greater(t, p.SNR, 1.0)
	assert.Greater(t, p.Slope, 0.0)

	choppy := make([]float64, 60)
	for i := range choppy {
		choppy[i] = 100
		if i%2 == 1 {
			choppy[i] = 101
		}
	}
	p = AnalyzeNoise(choppy)
	assert.Greater(t, p.Level, 0.7)
	assert.Equal(t, StructureChaotic, p.Structure)
}

func TestInverseNoise_SameTickAnomaliesAreDistinct(t *testing.T) {
	n := NewInverseNoiseAmplifier()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := NoiseProfile{Level: 0.2, Structure: StructurePatterned}
	cur := NoiseProfile{Level: 0.8, Structure: StructureChaotic}
	n.detectAnomalies(prev, cur, at)

	got := n.AnomaliesSince(0)
	require.Len(t, got, 2)
	assert.Equal(t, AnomalySpike, got[0].Type)
	assert.Equal(t, AnomalyStructureChange, got[1].Type)
	assert.Equal(t, got[0].At, got[1].At)
	assert.Equal(t, []int{1, 2}, []int{got[0].Seq, got[1].Seq})

	after := n.AnomaliesSince(got[0].Seq)
	require.Len(t, after, 1)
	assert.Equal(t, AnomalyStructureChange, after[0].Type)
	assert.Empty(t, n.AnomaliesSince(got[1].Seq))
}

func TestInverseNoise_StructureChange(t *testing.T) {
	n := NewInverseNoiseAmplifier()
	assert.Equal(t, 0.0, n.NoiseLevel())
	now := time.Now()
	seen := map[AnomalyType]bool{}
	i := 0
	push := func(p float64) {
		n.Update(models.TickContext{Timestamp: now.Add(time.Duration(i) * time.Second), Price: p})
		for _, a := range n.Anomalies() {
			seen[a.Type] = true
		}
		i++
	}
	for k := 0; k < 40; k++ {
		if k%2 == 0 {
			push(100)
		} else {
			push(101)
		}
	}
	assert.Greater(t, n.NoiseLevel(), 0.7)
	assert.Equal(t, StructureChaotic, n.Profile().Structure)
	for k := 0; k < 200; k++ {
		push(101 + float64(k)*0.5)
	}
	assert.Less(t, n.NoiseLevel(), 0.3)
	assert.True(t, seen[AnomalyStructureChange])
}

func TestBiorhythmLunar(t *testing.T) {
	b := NewBiorhythmLunarSync()
	assert.Equal(t, 1.0, b.ConfidenceModifier())
	b.Update(models.TickContext{Timestamp: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)})
	r, ok := b.Latest()
	require.True(t, ok)
	assert.GreaterOrEqual(t, r.Alignment, 0.0)
	assert.LessOrEqual(t, r.Alignment, 1.0)
	f := b.ConfidenceModifier()
	assert.GreaterOrEqual(t, f, MinFactor)
	assert.LessOrEqual(t, f, MaxFactor)
}

func TestDynamicEquivalence_BlendBoundaries(t *testing.T) {
	d := NewDynamicEquivalenceTracker()
	d.SetWeights(0, 1)
	assert.InDelta(t, 0.3, d.BlendPredictions(0.8, 0.3), 1e-12)
	d.SetWeights(1e-9, 1)
	assert.InDelta(t, 0.3, d.BlendPredictions(0.8, 0.3), 1e-6)
	d.SetWeights(1, 0)
	assert.InDelta(t, 0.8, d.BlendPredictions(0.8, 0.3), 1e-12)
	d.SetWeights(0.25, 0.25)
	assert.InDelta(t, 0.55, d.BlendPredictions(0.8, 0.3), 1e-12)
	d.SetWeights(0, 0)
	st := d.State()
	assert.Equal(t, 0.5, st.PatternWeight)
}

func TestDynamicEquivalence_InverseContrarian(t *testing.T) {
	d := NewDynamicEquivalenceTracker()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		f := 0.2 + 0.01*float64(i)
		d.LearnOutcome(models.OutcomeContext{
			Envelope:        models.PredictionEnvelope{PatternSignal: -f, FundamentalSignal: f},
			ActualDirection: models.DirectionUp,
			ActualMagnitude: 0.01,
			ResolvedAt:      now.Add(time.Duration(i) * time.Minute),
		})
	}
	st := d.State()
	assert.Equal(t, PhaseInverse, st.Phase)
	assert.Equal(t, StrategyContrarian, st.Strategy)
	assert.Equal(t, 0.0, st.PatternAccuracy)
	assert.Equal(t, 1.0, st.FundamentalAccuracy)
	assert.Less(t, st.PatternWeight, 0.5)
	assert.InDelta(t, 1.0, st.PatternWeight+st.FundamentalWeight, 1e-12)
	assert.InDelta(t, 0.5*st.PatternWeight+0.5*st.FundamentalWeight, d.BlendPredictions(-0.5, 0.5), 1e-12)
	assert.Less(t, d.ConfidenceModifier(), 1.0)
}

func TestQuantumCloud_Moments(t *testing.T) {
	q := NewQuantumCloudGenerator()
	c := q.Generate([]CloudComponent{{Value: 0.05, Confidence: 1, Source: "a"}}, time.Now())
	assert.InDelta(t, 0.05, c.Mean, 1e-12)
	assert.InDelta(t, uncertaintyFloor, c.StdDev, 1e-12)
	assert.InDelta(t, 0.0, c.Skewness, 1e-9)
	assert.InDelta(t, 0.0, c.Kurtosis, 1e-9)
	assert.True(t, c.CI50.Contains(0.05))
	assert.Less(t, c.CI50.Upper-c.CI50.Lower, c.CI95.Upper-c.CI95.Lower)
	assert.Greater(t, c.Outcomes[models.DirectionUp], 0.99)
	sum := c.Outcomes[models.DirectionUp] + c.Outcomes[models.DirectionDown] + c.Outcomes[models.DirectionNeutral]
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Less(t, c.Entropy, 0.1)

	empty := q.Generate(nil, time.Now())
	assert.Equal(t, 0.0, empty.Mean)
	assert.Greater(t, empty.StdDev, 0.0)
}

func TestQuantumCloud_CoverageWithinCI95(t *testing.T) {
	q := NewQuantumCloudGenerator()
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 250; i++ {
		comps := []CloudComponent{
			{Value: r.Float64()*0.1 - 0.05, Confidence: r.Float64(), Source: "a"},
			{Value: r.Float64()*0.1 - 0.05, Confidence: r.Float64(), Source: "b"},
		}
		c := q.Generate(comps, time.Now())
		actual := c.CI95.Lower + r.Float64()*(c.CI95.Upper-c.CI95.Lower)
		q.RecordCollapse(c, actual)
	}
	cv := q.Coverage()
	assert.Equal(t, 250, cv.Collapses)
	assert.InDelta(t, 0.95, cv.CI95, 0.10)
	f := q.ConfidenceModifier()
	assert.GreaterOrEqual(t, f, MinFactor)
	assert.LessOrEqual(t, f, MaxFactor)
}

var (
	_ domsvc.DirectionalModifier = (*ArchetypalResonance)(nil)
	_ domsvc.DirectionalModifier = (*InverseNoiseAmplifier)(nil)
)
