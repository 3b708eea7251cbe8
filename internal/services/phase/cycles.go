package phase

import (
	"math"
	"time"
)

// Cycle is a named periodic process.
type Cycle struct {
	Name      string
	Period    time.Duration
	Epoch     time.Time
	Amplitude float64
}

// CurrentPhase returns the position of now within the cycle, in [0,1).
func (c Cycle) CurrentPhase(now time.Time) float64 {
	if c.Period <= 0 {
		return 0
	}
	elapsed := now.Sub(c.Epoch).Seconds()
	period := c.Period.Seconds()
	p := math.Mod(elapsed, period) / period
	if p < 0 {
		p++
	}
	if p >= 1 {
		p = 0
	}
	return p
}

const (
	CycleLunar        = "lunar_synodic"
	CycleCircadian    = "circadian"
	CycleWeekly       = "weekly"
	CycleSession      = "trading_session"
	CycleSolar        = "solar_rotation"
	CycleBioPhysical  = "biorhythm_physical"
	CycleBioEmotional = "biorhythm_emotional"
	CycleBioIntellect = "biorhythm_intellectual"
)

// LunarSynodicPeriod is the mean synodic month.
const LunarSynodicPeriod = time.Duration(29.530588853 * 24 * float64(time.Hour))

var (
	// KnownNewMoon is a reference new moon.
	KnownNewMoon = time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)
	// referenceMonday anchors the weekly and session cycles.
	referenceMonday = time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)
)

// DefaultCycles returns the standard cycle set. bioEpoch anchors the biorhythm cycles.
func DefaultCycles(bioEpoch time.Time) []Cycle {
	if bioEpoch.IsZero() {
		bioEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	day := 24 * time.Hour
	return []Cycle{
		{Name: CycleLunar, Period: LunarSynodicPeriod, Epoch: KnownNewMoon, Amplitude: 1},
		{Name: CycleCircadian, Period: day, Epoch: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), Amplitude: 1},
		{Name: CycleWeekly, Period: 7 * day, Epoch: referenceMonday, Amplitude: 1},
		{Name: CycleSession, Period: 390 * time.Minute, Epoch: referenceMonday.Add(14*time.Hour + 30*time.Minute), Amplitude: 1},
		{Name: CycleSolar, Period: 27 * day, Epoch: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), Amplitude: 1},
		{Name: CycleBioPhysical, Period: 23 * day, Epoch: bioEpoch, Amplitude: 1},
		{Name: CycleBioEmotional, Period: 28 * day, Epoch: bioEpoch, Amplitude: 1},
		{Name: CycleBioIntellect, Period: 33 * day, Epoch: bioEpoch, Amplitude: 1},
	}
}
