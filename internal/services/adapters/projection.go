package adapters

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
	"SignalFuse/internal/services/features"
	"SignalFuse/internal/services/signature"
)

var ErrNoSignals = errors.New("no signals")

// Projection maps one market feature onto a domain's directional value
// v = tanh(Scale * (x - Offset)). When SignKey is set v takes the sign of that
// feature, which turns a magnitude-only feature into a directional one.
type Projection struct {
	Domain  models.Domain
	Key     string
	SignKey string
	Scale   float64
	Offset  float64
	// Span is the number of recent signals summarized into a signature.
	Span int
	// Period is the domain's natural cycle length.
	Period time.Duration
}

// ProjectionAdapter is an in-process adapter that derives a domain from a feature key.
type ProjectionAdapter struct {
	p Projection
}

func NewProjectionAdapter(p Projection) *ProjectionAdapter {
	if p.Span <= 0 {
		p.Span = 10
	}
	if p.Period <= 0 {
		p.Period = time.Hour
	}
	if p.Scale == 0 {
		p.Scale = 1
	}
	return &ProjectionAdapter{p: p}
}

var _ domsvc.DomainSignalAdapter = (*ProjectionAdapter)(nil)

func (a *ProjectionAdapter) Domain() models.Domain { return a.p.Domain }

func (a *ProjectionAdapter) Initialize(context.Context) error {
	if a.p.Domain == "" || a.p.Key == "" {
		return fmt.Errorf("projection adapter: domain and key are required")
	}
	return nil
}

// ProcessRawData projects the configured feature. A missing feature yields a neutral signal.
func (a *ProjectionAdapter) ProcessRawData(_ context.Context, f models.MarketFeatures) (models.DomainSignal, error) {
	raw := f.Value(a.p.Key, a.p.Offset)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return models.DomainSignal{}, fmt.Errorf("feature %q is not finite", a.p.Key)
	}
	v := math.Tanh(a.p.Scale * (raw - a.p.Offset))
	if a.p.SignKey != "" {
		s := f.Value(a.p.SignKey, 0)
		switch {
		case s < 0:
			v = -math.Abs(v)
		case s > 0:
			v = math.Abs(v)
		default:
			v = 0
		}
	}
	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	period := a.p.Period
	return models.DomainSignal{
		Domain:    a.p.Domain,
		Timestamp: ts,
		Intensity: 0.2 + 0.8*math.Abs(v),
		Frequency: float64(time.Hour) / float64(period),
		Phase:     float64(ts.UnixNano()%int64(period)) / float64(period),
		RawData:   []float64{v, raw},
	}, nil
}

// ExtractSignature summarizes the last Span signals.
func (a *ProjectionAdapter) ExtractSignature(_ context.Context, signals []models.DomainSignal) (models.DomainSignature, error) {
	if len(signals) == 0 {
		return models.DomainSignature{}, ErrNoSignals
	}
	if len(signals) > a.p.Span {
		signals = signals[len(signals)-a.p.Span:]
	}
	return summarize(a.p.Domain, signals), nil
}

// summarize builds a normalized signature from projected values carried in RawData[0].
func summarize(domain models.Domain, signals []models.DomainSignal) models.DomainSignature {
	n := len(signals)
	vs := make([]float64, n)
	intens := make([]float64, n)
	var sinSum, cosSum float64
	var q models.QuadrantProfile
	var absSum float64
	for i, s := range signals {
		if len(s.RawData) > 0 {
			vs[i] = s.RawData[0]
		}
		intens[i] = s.Intensity
		sinSum += math.Sin(2 * math.Pi * s.Phase)
		cosSum += math.Cos(2 * math.Pi * s.Phase)

		v := vs[i]
		q.Aggressive += math.Max(v, 0)
		q.Defensive += math.Max(-v, 0)
		if i > 0 {
			q.Tactical += math.Abs(v - vs[i-1])
		}
		absSum += math.Abs(v)
	}

	mean, _ := stats.Mean(vs)
	sd, _ := stats.StandardDeviationPopulation(vs)
	intensity, _ := stats.Mean(intens)
	q.Strategic = math.Abs(mean * float64(n))

	var t models.TemporalFlow
	for i, v := range vs {
		switch third := i * 3 / n; third {
		case 0:
			t.Early += math.Abs(v)
		case 1:
			t.Mid += math.Abs(v)
		default:
			t.Late += math.Abs(v)
		}
	}

	resonance := 0.0
	if absSum > 0 {
		resonance = math.Abs(mean) / (absSum / float64(n))
	}

	return signature.Normalize(models.DomainSignature{
		Domain:            domain,
		QuadrantProfile:   q,
		TemporalFlow:      t,
		Intensity:         intensity,
		Momentum:          mean,
		Volatility:        sd,
		DominantFrequency: signals[n-1].Frequency,
		HarmonicResonance: resonance,
		PhaseAlignment:    math.Hypot(sinSum, cosSum) / float64(n),
		ExtractedAt:       signals[n-1].Timestamp,
	})
}

// DefaultProjections returns the built-in market-proxy domains.
func DefaultProjections() []Projection {
	return []Projection{
		{Domain: "price_action", Key: features.KeyReturn, Scale: 400, Span: 5, Period: 15 * time.Minute},
		{Domain: "returns_smooth", Key: features.KeyReturn, Scale: 200, Span: 30, Period: time.Hour},
		{Domain: "momentum_fast", Key: features.KeyMomentum, Scale: 100, Span: 5, Period: 15 * time.Minute},
		{Domain: "momentum_slow", Key: features.KeyMomentum, Scale: 40, Span: 30, Period: 4 * time.Hour},
		{Domain: "trend_fast", Key: features.KeyTrend, Scale: 40, Span: 5, Period: 30 * time.Minute},
		{Domain: "trend_slow", Key: features.KeyTrend, Scale: 20, Span: 30, Period: 4 * time.Hour},
		{Domain: "mean_reversion", Key: features.KeyZScore, Scale: -0.8, Span: 10, Period: time.Hour},
		{Domain: "stretch", Key: features.KeyRangePosition, Scale: -1.5, Span: 10, Period: time.Hour},
		{Domain: "range_breakout", Key: features.KeyRangePosition, Scale: 1.5, Span: 5, Period: 30 * time.Minute},
		{Domain: "range_fade", Key: features.KeyZScore, Scale: -0.4, Span: 30, Period: 4 * time.Hour},
		{Domain: "acceleration", Key: features.KeyAcceleration, Scale: 100, Span: 5, Period: 15 * time.Minute},
		{Domain: "volume_flow", Key: features.KeySignedVolume, Scale: 2, Span: 10, Period: time.Hour},
		{Domain: "volume_trend", Key: features.KeyVolumeRatio, SignKey: features.KeyReturn, Offset: 1, Scale: 1, Span: 30, Period: 4 * time.Hour},
		{Domain: "volatility_regime", Key: features.KeyVolatility, Offset: 0.001, Scale: -500, Span: 30, Period: 24 * time.Hour},
		{Domain: "calm_drift", Key: features.KeyEfficiency, SignKey: features.KeyTrend, Offset: 0.2, Scale: 3, Span: 10, Period: 2 * time.Hour},
		{Domain: "efficiency_slow", Key: features.KeyEfficiency, SignKey: features.KeyMomentum, Offset: 0.1, Scale: 2, Span: 30, Period: 8 * time.Hour},
		{Domain: "fundamental", Key: "fundamental", Scale: 1, Span: 30, Period: 24 * time.Hour},
		{Domain: "sentiment", Key: "sentiment", Scale: 1.5, Span: 10, Period: 2 * time.Hour},
		{Domain: "order_imbalance", Key: "imbalance", Scale: 2, Span: 5, Period: 15 * time.Minute},
		{Domain: "macro", Key: "macro", Scale: 1, Span: 30, Period: 24 * time.Hour},
		{Domain: "cross_asset", Key: "cross_asset", Scale: 1.5, Span: 10, Period: 4 * time.Hour},
	}
}

// DefaultAdapters builds a ProjectionAdapter for every default projection.
func DefaultAdapters() []domsvc.DomainSignalAdapter {
	ps := DefaultProjections()
	out := make([]domsvc.DomainSignalAdapter, 0, len(ps))
	for _, p := range ps {
		out = append(out, NewProjectionAdapter(p))
	}
	return out
}
