package modifiers

import (
	"math"
	"time"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
	"SignalFuse/internal/services/phase"
)

// BiorhythmReading is one alignment score between the lunar and biorhythm cycles.
type BiorhythmReading struct {
	At             time.Time
	LunarPhase     float64
	LunarIntensity float64
	Alignment      float64
}

// BiorhythmLunarSync scores how closely the lunar and biorhythm cycles line up.
type BiorhythmLunarSync struct {
	base
	cycles   []phase.Cycle
	readings *Ring[BiorhythmReading]
}

func NewBiorhythmLunarSync() *BiorhythmLunarSync {
	var cycles []phase.Cycle
	for _, c := range phase.DefaultCycles(time.Time{}) {
		switch c.Name {
		case phase.CycleLunar, phase.CycleBioPhysical, phase.CycleBioEmotional, phase.CycleBioIntellect:
			cycles = append(cycles, c)
		}
	}
	return &BiorhythmLunarSync{
		base:     base{name: NameBiorhythmLunar, reg: 0.90},
		cycles:   cycles,
		readings: NewRing[BiorhythmReading](50),
	}
}

func (b *BiorhythmLunarSync) Update(tc models.TickContext) {
	if tc.Timestamp.IsZero() {
		return
	}
	b.readings.Push(b.Read(tc.Timestamp))
}

// Read computes the alignment at t without recording it.
func (b *BiorhythmLunarSync) Read(t time.Time) BiorhythmReading {
	phases := make([]float64, 0, len(b.cycles))
	r := BiorhythmReading{At: t}
	for _, c := range b.cycles {
		p := c.CurrentPhase(t)
		if c.Name == phase.CycleLunar {
			r.LunarPhase = p
		}
		phases = append(phases, p)
	}
	r.Alignment, _ = phase.Coherence(phases)
	// new and full moon both score 1
	r.LunarIntensity = math.Abs(math.Cos(2 * math.Pi * r.LunarPhase))
	return r
}

func (b *BiorhythmLunarSync) Latest() (BiorhythmReading, bool) { return b.readings.Last() }

func (b *BiorhythmLunarSync) ConfidenceModifier() float64 {
	if b.readings.Len() == 0 {
		return 1
	}
	vals := b.readings.Values()
	align := make([]float64, len(vals))
	for i, r := range vals {
		align[i] = r.Alignment
	}
	last := vals[len(vals)-1]
	raw := 1 + 0.1*(mean(align)-0.5) + 0.05*(last.LunarIntensity-0.5)
	return Regularize(raw, b.reg)
}

var _ domsvc.ConfidenceModifier = (*BiorhythmLunarSync)(nil)
