package correlation

import (
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"SignalFuse/internal/domain/models"
	"SignalFuse/internal/services/signature"
)

const DefaultWindow = 100

type pairKey struct{ a, b models.Domain }

func keyOf(a, b models.Domain) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

type pairState struct {
	history []float64
	entry   models.CorrelationEntry
}

// MatrixBuilder tracks rolling pairwise alignment for every unordered domain pair.
type MatrixBuilder struct {
	window int
	pairs  map[pairKey]*pairState
}

type Option func(*MatrixBuilder)

// WithWindow overrides the rolling window size.
func WithWindow(n int) Option {
	return func(m *MatrixBuilder) {
		if n > 0 {
			m.window = n
		}
	}
}

func NewMatrixBuilder(opts ...Option) *MatrixBuilder {
	m := &MatrixBuilder{window: DefaultWindow, pairs: make(map[pairKey]*pairState)}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Update appends the current alignment of every pair in sigs to its window.
func (m *MatrixBuilder) Update(sigs map[models.Domain]models.DomainSignature, now time.Time) {
	domains := signature.SortedDomains(sigs)
	for i := 0; i < len(domains); i++ {
		for j := i + 1; j < len(domains); j++ {
			a, b := sigs[domains[i]], sigs[domains[j]]
			k := keyOf(a.Domain, b.Domain)
			ps, ok := m.pairs[k]
			if !ok {
				ps = &pairState{history: make([]float64, 0, m.window)}
				m.pairs[k] = ps
			}
			ps.history = append(ps.history, ComputeAlignment(a, b))
			if len(ps.history) > m.window {
				ps.history = ps.history[len(ps.history)-m.window:]
			}
			mean, err := stats.Mean(ps.history)
			if err != nil {
				mean = 0
			}
			ps.entry = models.CorrelationEntry{
				DomainA:     k.a,
				DomainB:     k.b,
				Correlation: mean,
				LeadLag:     LeadLag(sigs[k.a], sigs[k.b]),
				Confidence:  Confidence(ps.history, m.window),
				SampleSize:  len(ps.history),
				LastUpdated: now,
			}
		}
	}
}

// Get returns the entry for a pair regardless of argument order.
func (m *MatrixBuilder) Get(a, b models.Domain) (models.CorrelationEntry, bool) {
	ps, ok := m.pairs[keyOf(a, b)]
	if !ok {
		return models.CorrelationEntry{}, false
	}
	return ps.entry, true
}

// Entries returns all entries sorted by descending confidence.
func (m *MatrixBuilder) Entries() []models.CorrelationEntry {
	out := make([]models.CorrelationEntry, 0, len(m.pairs))
	for _, ps := range m.pairs {
		out = append(out, ps.entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].DomainA != out[j].DomainA {
			return out[i].DomainA < out[j].DomainA
		}
		return out[i].DomainB < out[j].DomainB
	})
	return out
}

// StrongestPairs returns up to n entries ranked by confidence-weighted correlation.
func (m *MatrixBuilder) StrongestPairs(n int) []models.CorrelationEntry {
	all := m.Entries()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Correlation*all[i].Confidence > all[j].Correlation*all[j].Confidence
	})
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

func (m *MatrixBuilder) Len() int { return len(m.pairs) }

// Confidence is stability times size factor; empty histories give 0.
func Confidence(history []float64, window int) float64 {
	if len(history) == 0 || window <= 0 {
		return 0
	}
	variance, err := stats.PopulationVariance(history)
	if err != nil || math.IsNaN(variance) || variance < 0 {
		return 0
	}
	stability := 1 - math.Min(math.Sqrt(variance), 1)
	sizeFactor := math.Min(float64(len(history))/float64(window), 1)
	return signature.Clamp(stability*sizeFactor, 0, 1)
}
