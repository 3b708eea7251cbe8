package signature

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalFuse/internal/domain/models"
)

func TestNormalize_ProfilesSumToOne(t *testing.T) {
	cases := []struct {
		name string
		sig  models.DomainSignature
	}{
		{"empty", models.DomainSignature{Domain: "a"}},
		{"skewed", models.DomainSignature{
			Domain:          "b",
			QuadrantProfile: models.QuadrantProfile{Aggressive: 3, Defensive: 1, Tactical: 0, Strategic: 4},
			TemporalFlow:    models.TemporalFlow{Early: 2, Mid: 2, Late: 6},
		}},
		{"negative", models.DomainSignature{
			Domain:          "c",
			QuadrantProfile: models.QuadrantProfile{Aggressive: -1, Defensive: 2},
			TemporalFlow:    models.TemporalFlow{Early: math.NaN()},
		}},
		{"inf", models.DomainSignature{
			Domain:          "d",
			QuadrantProfile: models.QuadrantProfile{Aggressive: math.Inf(1)},
			Intensity:       math.Inf(-1),
			Momentum:        5,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := Normalize(tc.sig)
			assert.InDelta(t, 1.0, n.QuadrantProfile.Sum(), 1e-6)
			assert.InDelta(t, 1.0, n.TemporalFlow.Sum(), 1e-6)
			assert.False(t, math.IsNaN(n.Intensity))
			assert.LessOrEqual(t, n.Momentum, 1.0)
			assert.GreaterOrEqual(t, n.Momentum, -1.0)
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	n := Normalize(models.DomainSignature{Domain: "x", Intensity: math.NaN()})
	assert.Equal(t, 0.25, n.QuadrantProfile.Aggressive)
	assert.InDelta(t, 1.0/3.0, n.TemporalFlow.Mid, 1e-12)
	assert.Equal(t, 0.5, n.Intensity)
}

func TestRegistry_IngestAndCopy(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Ingest(models.DomainSignature{})
	assert.False(t, ok)

	now := time.Now()
	_, ok = r.Ingest(models.DomainSignature{Domain: "b", Momentum: 0.3, ExtractedAt: now})
	require.True(t, ok)
	_, ok = r.Ingest(models.DomainSignature{Domain: "a", Momentum: 0.1, ExtractedAt: now})
	require.True(t, ok)
	_, _ = r.Ingest(models.DomainSignature{Domain: "b", Momentum: -0.4, ExtractedAt: now})

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []models.Domain{"a", "b"}, r.Domains())

	got, ok := r.Latest("b")
	require.True(t, ok)
	assert.Equal(t, -0.4, got.Momentum)

	all := r.All()
	delete(all, "a")
	assert.Equal(t, 2, r.Len())
}
