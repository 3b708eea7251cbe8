package modifiers

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
)

// CloudComponent is one source's predicted value with its confidence.
type CloudComponent struct {
	Value      float64
	Confidence float64
	Source     string
}

const (
	uncertaintyFloor   = 0.01
	uncertaintyScale   = 0.05
	neutralBand        = 0.02
	cloudMinCollapses  = 20
	quantileIterations = 100
)

// Coverage summarizes how often realized values fell inside stated intervals.
type Coverage struct {
	Collapses      int
	CI50           float64
	CI75           float64
	CI95           float64
	WellCalibrated bool
}

type collapse struct {
	in50, in75, in95 bool
}

// QuantumCloudGenerator turns point predictions into a Gaussian-mixture outcome cloud.
type QuantumCloudGenerator struct {
	base
	collapses *Ring[collapse]
	last      *models.ProbabilityCloud
}

func NewQuantumCloudGenerator() *QuantumCloudGenerator {
	return &QuantumCloudGenerator{base: base{name: NameQuantumCloud, reg: 0.85}, collapses: NewRing[collapse](500)}
}

func (q *QuantumCloudGenerator) Update(models.TickContext) {}

type mixture struct {
	w, mu, sigma []float64
}

func newMixture(comps []CloudComponent) mixture {
	m := mixture{}
	total := 0.0
	for _, c := range comps {
		if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
			continue
		}
		conf := clamp01(c.Confidence)
		m.w = append(m.w, conf)
		m.mu = append(m.mu, c.Value)
		m.sigma = append(m.sigma, math.Max(uncertaintyFloor, (1-conf)*uncertaintyScale))
		total += conf
	}
	for i := range m.w {
		if total > 0 {
			m.w[i] /= total
		} else {
			m.w[i] = 1 / float64(len(m.w))
		}
	}
	return m
}

func (m mixture) cdf(x float64) float64 {
	s := 0.0
	for i := range m.w {
		s += m.w[i] * distuv.Normal{Mu: m.mu[i], Sigma: m.sigma[i]}.CDF(x)
	}
	return s
}

func (m mixture) quantile(p float64) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range m.mu {
		lo = math.Min(lo, m.mu[i]-10*m.sigma[i])
		hi = math.Max(hi, m.mu[i]+10*m.sigma[i])
	}
	for i := 0; i < quantileIterations && hi-lo > 1e-12; i++ {
		mid := (lo + hi) / 2
		if m.cdf(mid) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// Generate builds the cloud. With no usable components it returns a zero-centered cloud
// at the uncertainty floor.
func (q *QuantumCloudGenerator) Generate(comps []CloudComponent, now time.Time) models.ProbabilityCloud {
	m := newMixture(comps)
	if len(m.w) == 0 {
		m = mixture{w: []float64{1}, mu: []float64{0}, sigma: []float64{uncertaintyFloor}}
	}
	var mu float64
	for i := range m.w {
		mu += m.w[i] * m.mu[i]
	}
	var m2, m3, m4 float64
	for i := range m.w {
		d, s2 := m.mu[i]-mu, m.sigma[i]*m.sigma[i]
		m2 += m.w[i] * (d*d + s2)
		m3 += m.w[i] * (d*d*d + 3*d*s2)
		m4 += m.w[i] * (d*d*d*d + 6*d*d*s2 + 3*s2*s2)
	}
	sd := math.Sqrt(m2)
	c := models.ProbabilityCloud{Mean: mu, StdDev: sd, ComponentSize: len(m.w), GeneratedAt: now}
	if sd > 0 {
		c.Skewness = m3 / (sd * sd * sd)
		c.Kurtosis = m4/(m2*m2) - 3
	}
	c.CI50 = models.ConfidenceInterval{Lower: m.quantile(0.25), Upper: m.quantile(0.75)}
	c.CI75 = models.ConfidenceInterval{Lower: m.quantile(0.125), Upper: m.quantile(0.875)}
	c.CI95 = models.ConfidenceInterval{Lower: m.quantile(0.025), Upper: m.quantile(0.975)}

	down := m.cdf(-neutralBand)
	up := 1 - m.cdf(neutralBand)
	neutral := math.Max(1-up-down, 0)
	c.Outcomes = map[models.Direction]float64{
		models.DirectionUp:      up,
		models.DirectionDown:    down,
		models.DirectionNeutral: neutral,
	}
	c.Entropy = bucketEntropy(up, down, neutral)
	q.last = &c
	return c
}

func bucketEntropy(ps ...float64) float64 {
	h := 0.0
	for _, p := range ps {
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return clamp01(h / math.Log2(3))
}

// Last returns the most recently generated cloud.
func (q *QuantumCloudGenerator) Last() (models.ProbabilityCloud, bool) {
	if q.last == nil {
		return models.ProbabilityCloud{}, false
	}
	return *q.last, true
}

// RecordCollapse checks which stated intervals contained the realized value.
func (q *QuantumCloudGenerator) RecordCollapse(c models.ProbabilityCloud, actual float64) {
	if math.IsNaN(actual) || math.IsInf(actual, 0) {
		return
	}
	q.collapses.Push(collapse{in50: c.CI50.Contains(actual), in75: c.CI75.Contains(actual), in95: c.CI95.Contains(actual)})
}

// Coverage reports empirical interval coverage over recorded collapses.
func (q *QuantumCloudGenerator) Coverage() Coverage {
	cv := Coverage{Collapses: q.collapses.Len()}
	if cv.Collapses == 0 {
		return cv
	}
	var a, b, c int
	for _, x := range q.collapses.Values() {
		if x.in50 {
			a++
		}
		if x.in75 {
			b++
		}
		if x.in95 {
			c++
		}
	}
	n := float64(cv.Collapses)
	cv.CI50, cv.CI75, cv.CI95 = float64(a)/n, float64(b)/n, float64(c)/n
	cv.WellCalibrated = cv.Collapses >= cloudMinCollapses &&
		math.Abs(cv.CI50-0.50) <= 0.15 &&
		math.Abs(cv.CI75-0.75) <= 0.10 &&
		math.Abs(cv.CI95-0.95) <= 0.05
	return cv
}

// LearnOutcome collapses the prediction's cloud against the signed realized move.
func (q *QuantumCloudGenerator) LearnOutcome(oc models.OutcomeContext) {
	if oc.Envelope.ProbabilityCloud == nil {
		return
	}
	q.RecordCollapse(*oc.Envelope.ProbabilityCloud, float64(oc.ActualDirection.Sign())*math.Abs(oc.ActualMagnitude))
}

func (q *QuantumCloudGenerator) ConfidenceModifier() float64 {
	cv := q.Coverage()
	if cv.Collapses < cloudMinCollapses {
		return 1
	}
	raw := 1 - 2*math.Abs(cv.CI95-0.95)
	if cv.WellCalibrated {
		raw += 0.1
	}
	if q.last != nil {
		raw += 0.1 * (1 - q.last.Entropy)
	}
	return Regularize(raw, q.reg)
}

var (
	_ domsvc.ConfidenceModifier = (*QuantumCloudGenerator)(nil)
	_ domsvc.OutcomeLearner     = (*QuantumCloudGenerator)(nil)
)
