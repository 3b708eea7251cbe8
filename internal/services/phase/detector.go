package phase

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"SignalFuse/internal/domain/models"
)

const (
	ImplicationReversal    = "reversal_imminent"
	ImplicationStrongTrend = "strong_trend"
	ImplicationVolatility  = "volatility_expansion"
	ImplicationConsolidate = "consolidation"
)

var ErrLockNotFound = errors.New("phase lock not found")

// Config holds the tuned synchronization constants.
type Config struct {
	SyncTolerance    float64
	MinLockedCycles  int
	MinCoherence     float64
	HighCoherence    float64
	DurationFraction float64
	MaxLocks         int
}

func DefaultConfig() Config {
	return Config{
		SyncTolerance:    0.1,
		MinLockedCycles:  3,
		MinCoherence:     0.5,
		HighCoherence:    0.8,
		DurationFraction: 0.2,
		MaxLocks:         100,
	}
}

// Detector models periodic processes and detects phase-lock among them.
type Detector struct {
	cfg    Config
	cycles []Cycle
	locks  []models.PhaseLockEvent
}

type Option func(*Detector)

func WithConfig(cfg Config) Option {
	return func(d *Detector) { d.cfg = cfg }
}

// WithCycles replaces the default cycle set.
func WithCycles(cycles ...Cycle) Option {
	return func(d *Detector) { d.cycles = append([]Cycle(nil), cycles...) }
}

func NewDetector(opts ...Option) *Detector {
	d := &Detector{cfg: DefaultConfig(), cycles: DefaultCycles(time.Time{})}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Register adds or replaces a cycle by name.
func (d *Detector) Register(c Cycle) {
	for i := range d.cycles {
		if d.cycles[i].Name == c.Name {
			d.cycles[i] = c
			return
		}
	}
	d.cycles = append(d.cycles, c)
}

func (d *Detector) Cycles() []Cycle { return append([]Cycle(nil), d.cycles...) }

// Phases returns each cycle's current phase.
func (d *Detector) Phases(now time.Time) map[string]float64 {
	out := make(map[string]float64, len(d.cycles))
	for _, c := range d.cycles {
		out[c.Name] = c.CurrentPhase(now)
	}
	return out
}

// Coherence is the Kuramoto order parameter of the given phases and the mean angle in [0,1).
func Coherence(phases []float64) (float64, float64) {
	if len(phases) == 0 {
		return 0, 0
	}
	var sx, sy float64
	for _, p := range phases {
		sx += math.Cos(2 * math.Pi * p)
		sy += math.Sin(2 * math.Pi * p)
	}
	n := float64(len(phases))
	sx, sy = sx/n, sy/n
	r := math.Hypot(sx, sy)
	if r == 0 {
		return 0, 0
	}
	dom := math.Atan2(sy, sx) / (2 * math.Pi)
	if dom < 0 {
		dom++
	}
	if dom >= 1 {
		dom = 0
	}
	return math.Min(r, 1), dom
}

// CircularDistance is the shortest distance between two phases on the unit circle.
func CircularDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	d = math.Mod(d, 1)
	return math.Min(d, 1-d)
}

// Implication maps the dominant phase quartile to a qualitative expectation.
func (d *Detector) Implication(dominant, coherence float64) string {
	switch {
	case dominant < 0.25:
		if coherence >= d.cfg.HighCoherence {
			return ImplicationReversal
		}
		return ImplicationStrongTrend
	case dominant < 0.5:
		return ImplicationStrongTrend
	case dominant < 0.75:
		if coherence >= d.cfg.HighCoherence {
			return ImplicationVolatility
		}
		return ImplicationConsolidate
	default:
		return ImplicationReversal
	}
}

// largestSyncGroup returns the biggest set of cycles whose phases are pairwise within tolerance.
func (d *Detector) largestSyncGroup(now time.Time) []Cycle {
	type cp struct {
		c Cycle
		p float64
	}
	items := make([]cp, 0, len(d.cycles))
	for _, c := range d.cycles {
		items = append(items, cp{c: c, p: c.CurrentPhase(now)})
	}
	var best []Cycle
	for _, anchor := range items {
		var group []Cycle
		for _, it := range items {
			off := it.p - anchor.p
			if off < 0 {
				off++
			}
			if off <= d.cfg.SyncTolerance+1e-12 {
				group = append(group, it.c)
			}
		}
		if len(group) > len(best) {
			best = group
		}
	}
	sort.Slice(best, func(i, j int) bool { return best[i].Name < best[j].Name })
	return best
}

// Detect computes the current phase state and records a new lock when one forms.
// A lock is recorded once per formation: an unexpired lock over the same cycles is reused.
func (d *Detector) Detect(now time.Time) (models.PhaseState, bool) {
	phases := d.Phases(now)
	vals := make([]float64, 0, len(phases))
	for _, c := range d.cycles {
		vals = append(vals, phases[c.Name])
	}
	coh, dom := Coherence(vals)
	st := models.PhaseState{Phases: phases, Coherence: coh, DominantPhase: dom}

	group := d.largestSyncGroup(now)
	if len(group) < d.cfg.MinLockedCycles || coh <= d.cfg.MinCoherence {
		return st, false
	}

	names := make([]string, len(group))
	shortest := group[0].Period
	for i, c := range group {
		names[i] = c.Name
		if c.Period < shortest {
			shortest = c.Period
		}
	}

	if n := len(d.locks); n > 0 {
		last := d.locks[n-1]
		if sameNames(last.Cycles, names) && now.Before(last.Timestamp.Add(last.PredictedDuration)) {
			st.Lock = &last
			return st, false
		}
	}

	lock := models.PhaseLockEvent{
		ID:                uuid.NewString(),
		Timestamp:         now,
		Cycles:            names,
		Coherence:         coh,
		DominantPhase:     dom,
		Implication:       d.Implication(dom, coh),
		PredictedDuration: time.Duration(float64(shortest) * d.cfg.DurationFraction),
	}
	d.locks = append(d.locks, lock)
	if len(d.locks) > d.cfg.MaxLocks {
		d.locks = d.locks[len(d.locks)-d.cfg.MaxLocks:]
	}
	st.Lock = &lock
	return st, true
}

// ActiveLock returns the most recent lock if it has not yet expired.
func (d *Detector) ActiveLock(now time.Time) (models.PhaseLockEvent, bool) {
	if len(d.locks) == 0 {
		return models.PhaseLockEvent{}, false
	}
	last := d.locks[len(d.locks)-1]
	if now.After(last.Timestamp.Add(last.PredictedDuration)) {
		return models.PhaseLockEvent{}, false
	}
	return last, true
}

// Resolve scores a lock against the realized direction. Consolidation expects no move;
// every other implication expects one.
func (d *Detector) Resolve(id string, actual models.Direction) (models.PhaseLockEvent, error) {
	for i := range d.locks {
		if d.locks[i].ID != id {
			continue
		}
		if !d.locks[i].Resolved {
			d.locks[i].Resolved = true
			if d.locks[i].Implication == ImplicationConsolidate {
				d.locks[i].WasCorrect = actual == models.DirectionNeutral
			} else {
				d.locks[i].WasCorrect = actual != models.DirectionNeutral
			}
		}
		return d.locks[i], nil
	}
	return models.PhaseLockEvent{}, ErrLockNotFound
}

func (d *Detector) Locks() []models.PhaseLockEvent {
	return append([]models.PhaseLockEvent(nil), d.locks...)
}

func (d *Detector) ResolvedCount() int {
	n := 0
	for _, l := range d.locks {
		if l.Resolved {
			n++
		}
	}
	return n
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
