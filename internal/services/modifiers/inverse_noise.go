package modifiers

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
)

type NoiseTrend string

const (
	NoiseIncreasing NoiseTrend = "increasing"
	NoiseDecreasing NoiseTrend = "decreasing"
	NoiseStable     NoiseTrend = "stable"
)

type NoiseStructure string

const (
	StructureRandom    NoiseStructure = "random"
	StructurePatterned NoiseStructure = "patterned"
	StructureChaotic   NoiseStructure = "chaotic"
)

type AnomalyType string

const (
	AnomalySpike           AnomalyType = "spike"
	AnomalyCollapse        AnomalyType = "collapse"
	AnomalyFrequencyShift  AnomalyType = "frequency_shift"
	AnomalyStructureChange AnomalyType = "structure_change"
)

// NoiseProfile is the classified noise state after one update.
type NoiseProfile struct {
	Level        float64
	Trend        NoiseTrend
	DominantLag  int
	Frequency    float64
	Periodicity  float64
	Structure    NoiseStructure
	SNR          float64
	Slope        float64
	Insufficient bool
}

// NoiseAnomaly is a notable transition in the noise profile.
type NoiseAnomaly struct {
	Type            AnomalyType
	At              time.Time
	Magnitude       float64
	PredictiveValue float64
	Hint            models.Direction
	// Seq increases by one for every raised anomaly.
	Seq             int
	tick            int
}

const (
	noiseMinPrices   = 20
	noiseTrendWindow = 10
	noiseMaxLag      = 50
	noiseJump        = 0.3
	noiseHintTTL     = 10
	maxSNR           = 100
)

var predictiveValue = map[AnomalyType]float64{
	AnomalyCollapse:        0.7,
	AnomalySpike:           0.5,
	AnomalyFrequencyShift:  0.4,
	AnomalyStructureChange: 0.3,
}

// InverseNoiseAmplifier treats the structure of short-horizon noise as signal.
type InverseNoiseAmplifier struct {
	base
	prices    *Ring[float64]
	levels    *Ring[float64]
	anomalies *Ring[NoiseAnomaly]
	profile   NoiseProfile
	seq       int
	raised    int
}

func NewInverseNoiseAmplifier() *InverseNoiseAmplifier {
	return &InverseNoiseAmplifier{
		base:      base{name: NameInverseNoise, reg: 0.80},
		prices:    NewRing[float64](200),
		levels:    NewRing[float64](noiseTrendWindow + 1),
		anomalies: NewRing[NoiseAnomaly](50),
		profile:   NoiseProfile{Trend: NoiseStable, Structure: StructureRandom, Insufficient: true},
	}
}

func (n *InverseNoiseAmplifier) Update(tc models.TickContext) {
	if tc.Price <= 0 || math.IsNaN(tc.Price) || math.IsInf(tc.Price, 0) {
		return
	}
	n.seq++
	n.prices.Push(tc.Price)
	if n.prices.Len() < noiseMinPrices {
		return
	}
	prev := n.profile
	cur := AnalyzeNoise(n.prices.Values())
	n.levels.Push(cur.Level)
	if n.levels.Len() > noiseTrendWindow {
		delta := cur.Level - n.levels.At(0)
		switch {
		case delta > 0.05:
			cur.Trend = NoiseIncreasing
		case delta < -0.05:
			cur.Trend = NoiseDecreasing
		}
	}
	n.profile = cur
	if !prev.Insufficient {
		n.detectAnomalies(prev, cur, tc.Timestamp)
	}
}

func (n *InverseNoiseAmplifier) detectAnomalies(prev, cur NoiseProfile, at time.Time) {
	raise := func(t AnomalyType, mag float64, hint models.Direction) {
		n.raised++
		n.anomalies.Push(NoiseAnomaly{
			Type: t, At: at, Magnitude: mag, PredictiveValue: predictiveValue[t], Hint: hint,
			Seq: n.raised, tick: n.seq,
		})
	}
	switch d := cur.Level - prev.Level; {
	case d > noiseJump:
		raise(AnomalySpike, d, models.DirectionNeutral)
	case d < -noiseJump:
		hint := models.DirectionNeutral
		if cur.SNR > 1 {
			hint = signOf(cur.Slope, 0)
		}
		raise(AnomalyCollapse, -d, hint)
	}
	if prev.DominantLag > 0 && cur.DominantLag > 0 && cur.Periodicity > 0.3 {
		ratio := float64(cur.DominantLag) / float64(prev.DominantLag)
		if ratio > 1.5 || ratio < 1/1.5 {
			raise(AnomalyFrequencyShift, math.Abs(ratio-1), models.DirectionNeutral)
		}
	}
	if cur.Structure != prev.Structure {
		raise(AnomalyStructureChange, math.Abs(cur.Level-prev.Level), models.DirectionNeutral)
	}
}

// AnalyzeNoise classifies a price window. It needs at least 20 prices.
func AnalyzeNoise(prices []float64) NoiseProfile {
	p := NoiseProfile{Trend: NoiseStable, Structure: StructureRandom}
	if len(prices) < noiseMinPrices {
		p.Insufficient = true
		return p
	}
	d1 := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		d1[i-1] = prices[i] - prices[i-1]
	}
	d2 := make([]float64, len(d1)-1)
	for i := 1; i < len(d1); i++ {
		d2[i-1] = d1[i] - d1[i-1]
	}
	v1, err1 := stats.PopulationVariance(d1)
	v2, err2 := stats.PopulationVariance(d2)
	if err1 == nil && err2 == nil && v1 > 0 {
		p.Level = clamp01(v2 / (4 * v1))
	}

	p.DominantLag, p.Periodicity = dominantLag(d1)
	if p.DominantLag > 0 {
		p.Frequency = 1 / float64(p.DominantLag)
	}
	switch {
	case p.Level > 0.7:
		p.Structure = StructureChaotic
	case p.Level < 0.3 || p.Periodicity > 0.3:
		p.Structure = StructurePatterned
	}

	xs := make([]float64, len(prices))
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, prices, nil, false)
	p.Slope = beta
	fitted := make([]float64, len(prices))
	resid := make([]float64, len(prices))
	for i, x := range xs {
		fitted[i] = alpha + beta*x
		resid[i] = prices[i] - fitted[i]
	}
	tp, _ := stats.PopulationVariance(fitted)
	rp, _ := stats.PopulationVariance(resid)
	switch {
	case rp > 0:
		p.SNR = math.Min(tp/rp, maxSNR)
	case tp > 0:
		p.SNR = maxSNR
	}
	return p
}

// dominantLag searches lags 2..50 for the autocorrelation peak.
func dominantLag(xs []float64) (int, float64) {
	m := mean(xs)
	den := 0.0
	for _, x := range xs {
		den += (x - m) * (x - m)
	}
	if den == 0 {
		return 0, 0
	}
	best, bestAC := 0, 0.0
	for lag := 2; lag <= noiseMaxLag && lag < len(xs)/2+1; lag++ {
		num := 0.0
		for i := lag; i < len(xs); i++ {
			num += (xs[i] - m) * (xs[i-lag] - m)
		}
		if ac := num / den; ac > bestAC {
			best, bestAC = lag, ac
		}
	}
	return best, bestAC
}

// Profile returns the latest noise classification.
func (n *InverseNoiseAmplifier) Profile() NoiseProfile { return n.profile }

// NoiseLevel is the latest normalized noise level, 0 until enough prices arrive.
func (n *InverseNoiseAmplifier) NoiseLevel() float64 {
	if n.profile.Insufficient {
		return 0
	}
	return n.profile.Level
}

func (n *InverseNoiseAmplifier) Anomalies() []NoiseAnomaly { return n.anomalies.Values() }

// AnomaliesSince returns retained anomalies with a sequence number above seq, oldest first.
func (n *InverseNoiseAmplifier) AnomaliesSince(seq int) []NoiseAnomaly {
	var out []NoiseAnomaly
	for _, a := range n.anomalies.Values() {
		if a.Seq > seq {
			out = append(out, a)
		}
	}
	return out
}

func (n *InverseNoiseAmplifier) ConfidenceModifier() float64 {
	if n.profile.Insufficient {
		return 1
	}
	raw := 1 + 0.2*(0.5-n.profile.Level) + 0.05*math.Min(math.Log1p(n.profile.SNR), 1)
	return Regularize(raw, n.reg)
}

// DirectionalHint comes from the most recent directional anomaly that is still fresh.
func (n *InverseNoiseAmplifier) DirectionalHint() (models.Direction, bool) {
	for i := n.anomalies.Len() - 1; i >= 0; i-- {
		a := n.anomalies.At(i)
		if n.seq-a.tick > noiseHintTTL {
			break
		}
		if a.Hint != models.DirectionNeutral {
			return a.Hint, true
		}
	}
	return models.DirectionNeutral, false
}

var _ domsvc.DirectionalModifier = (*InverseNoiseAmplifier)(nil)
