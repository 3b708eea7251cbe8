package correlation

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalFuse/internal/domain/models"
	"SignalFuse/internal/services/signature"
)

func randomSignature(r *rand.Rand, d models.Domain) models.DomainSignature {
	return signature.Normalize(models.DomainSignature{
		Domain: d,
		QuadrantProfile: models.QuadrantProfile{
			Aggressive: r.Float64(), Defensive: r.Float64(), Tactical: r.Float64(), Strategic: r.Float64(),
		},
		TemporalFlow:      models.TemporalFlow{Early: r.Float64(), Mid: r.Float64(), Late: r.Float64()},
		Momentum:          r.Float64()*2 - 1,
		Volatility:        r.Float64(),
		HarmonicResonance: r.Float64(),
	})
}

func TestComputeAlignment_SymmetricAndBounded(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		a := randomSignature(r, "a")
		b := randomSignature(r, "b")
		ab := ComputeAlignment(a, b)
		ba := ComputeAlignment(b, a)
		assert.InDelta(t, ab, ba, 1e-12)
		assert.GreaterOrEqual(t, ab, 0.0)
		assert.LessOrEqual(t, ab, 1.0)
		assert.InDelta(t, LeadLag(a, b), -LeadLag(b, a), 1e-12)
	}
}

func TestComputeAlignment_Identical(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	a := randomSignature(r, "a")
	assert.InDelta(t, 1.0, ComputeAlignment(a, a), 1e-9)
}

func TestCosineSimilarity_ZeroNorm(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}

func TestMatrixBuilder_GetIsSymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	m := NewMatrixBuilder()
	now := time.Now()
	for tick := 0; tick < 5; tick++ {
		sigs := map[models.Domain]models.DomainSignature{}
		for i := 0; i < 6; i++ {
			d := models.Domain(fmt.Sprintf("d%d", i))
			sigs[d] = randomSignature(r, d)
		}
		m.Update(sigs, now.Add(time.Duration(tick)*time.Second))
	}
	assert.Equal(t, 15, m.Len())
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			if i == j {
				continue
			}
			a := models.Domain(fmt.Sprintf("d%d", i))
			b := models.Domain(fmt.Sprintf("d%d", j))
			ab, ok := m.Get(a, b)
			require.True(t, ok)
			ba, _ := m.Get(b, a)
			assert.Equal(t, ab, ba)
			assert.Equal(t, 5, ab.SampleSize)
		}
	}
}

func TestMatrixBuilder_WindowIsBounded(t *testing.T) {
	m := NewMatrixBuilder(WithWindow(10))
	a := signature.Normalize(models.DomainSignature{Domain: "a"})
	b := signature.Normalize(models.DomainSignature{Domain: "b"})
	for i := 0; i < 25; i++ {
		m.Update(map[models.Domain]models.DomainSignature{"a": a, "b": b}, time.Now())
	}
	e, ok := m.Get("a", "b")
	require.True(t, ok)
	assert.Equal(t, 10, e.SampleSize)
	// constant alignment: zero variance, full size factor
	assert.InDelta(t, 1.0, e.Confidence, 1e-9)
	assert.Len(t, m.StrongestPairs(3), 1)
}

func TestConfidence_Guards(t *testing.T) {
	assert.Equal(t, 0.0, Confidence(nil, 100))
	assert.Equal(t, 0.0, Confidence([]float64{0.5}, 0))
	assert.InDelta(t, 0.5, Confidence(make([]float64, 50), 100), 1e-12)
}
