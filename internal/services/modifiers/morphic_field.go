package modifiers

import (
	"fmt"
	"math"
	"sort"
	"time"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
	"SignalFuse/internal/services/correlation"
)

const (
	morphicMaxPatterns = 500
	morphicMinSources  = 3
	morphicHalfLife    = time.Hour
	morphicMinStrength = 0.5
	morphicQuantum     = 0.1
)

// MorphicPattern is a quadrant fingerprint observed across domains.
type MorphicPattern struct {
	Fingerprint      string
	Vector           []float64
	Sources          map[models.Domain]struct{}
	FirstSeen        time.Time
	LastSeen         time.Time
	Strength         float64
	Occurrences      int
	PropagationSpeed float64
}

// Active reports whether the pattern resonates across enough sources.
func (p *MorphicPattern) Active() bool {
	return len(p.Sources) >= morphicMinSources && p.Strength >= morphicMinStrength
}

// MorphicField clusters repeated signature fingerprints into decaying patterns.
type MorphicField struct {
	base
	patterns map[string]*MorphicPattern
	now      time.Time
}

func NewMorphicField() *MorphicField {
	return &MorphicField{base: base{name: NameMorphicField, reg: 0.85}, patterns: make(map[string]*MorphicPattern)}
}

// Fingerprint quantizes a quadrant profile to a stable key.
func Fingerprint(q models.QuadrantProfile) string {
	v := q.Vector()
	return fmt.Sprintf("%d:%d:%d:%d", quant(v[0]), quant(v[1]), quant(v[2]), quant(v[3]))
}

func quant(x float64) int { return int(math.Round(x / morphicQuantum)) }

func decay(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * elapsed.Hours() / morphicHalfLife.Hours())
}

func (m *MorphicField) Update(tc models.TickContext) {
	if tc.Timestamp.IsZero() {
		return
	}
	m.now = tc.Timestamp
	for _, d := range sortedKeys(tc.Signatures) {
		sig := tc.Signatures[d]
		fp := Fingerprint(sig.QuadrantProfile)
		p, ok := m.patterns[fp]
		if !ok {
			p = &MorphicPattern{
				Fingerprint: fp,
				Vector:      sig.QuadrantProfile.Vector(),
				Sources:     make(map[models.Domain]struct{}),
				FirstSeen:   tc.Timestamp,
				LastSeen:    tc.Timestamp,
			}
			m.patterns[fp] = p
		}
		p.Strength = p.Strength*decay(tc.Timestamp.Sub(p.LastSeen)) + 1
		p.LastSeen = tc.Timestamp
		p.Occurrences++
		p.Sources[d] = struct{}{}
		hours := math.Max(tc.Timestamp.Sub(p.FirstSeen).Hours(), 1.0/60)
		p.PropagationSpeed = float64(len(p.Sources)-1) / hours
	}
	m.evict()
}

func (m *MorphicField) evict() {
	for len(m.patterns) > morphicMaxPatterns {
		var oldest *MorphicPattern
		for _, p := range m.patterns {
			if oldest == nil || p.LastSeen.Before(oldest.LastSeen) ||
				(p.LastSeen.Equal(oldest.LastSeen) && p.Fingerprint < oldest.Fingerprint) {
				oldest = p
			}
		}
		delete(m.patterns, oldest.Fingerprint)
	}
}

// currentStrength applies decay up to the latest tick.
func (m *MorphicField) currentStrength(p *MorphicPattern) float64 {
	return p.Strength * decay(m.now.Sub(p.LastSeen))
}

// ActivePatterns returns patterns seen across at least three sources with live strength.
func (m *MorphicField) ActivePatterns() []MorphicPattern {
	var out []MorphicPattern
	for _, p := range m.patterns {
		cp := *p
		cp.Strength = m.currentStrength(p)
		if cp.Active() {
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}

func (m *MorphicField) PatternCount() int { return len(m.patterns) }

// FieldCoherence is the mean pairwise cosine similarity of active patterns.
func (m *MorphicField) FieldCoherence() float64 {
	active := m.ActivePatterns()
	if len(active) < 2 {
		if len(active) == 1 {
			return 1
		}
		return 0
	}
	sum, n := 0.0, 0
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			sum += correlation.CosineSimilarity(active[i].Vector, active[j].Vector)
			n++
		}
	}
	return sum / float64(n)
}

func (m *MorphicField) ConfidenceModifier() float64 {
	active := len(m.ActivePatterns())
	if active == 0 {
		return 1
	}
	raw := 1 + 0.15*m.FieldCoherence()*math.Min(float64(active)/5, 1)
	return Regularize(raw, m.reg)
}

func sortedKeys(m map[models.Domain]models.DomainSignature) []models.Domain {
	out := make([]models.Domain, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ domsvc.ConfidenceModifier = (*MorphicField)(nil)
