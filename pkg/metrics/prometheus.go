package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signalfuse"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent      *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	lastPrice         *prometheus.GaugeVec
	latency           *prometheus.HistogramVec
	predictions       *prometheus.CounterVec
	confidence        *prometheus.HistogramVec
	convergenceEvents *prometheus.CounterVec
	phaseLocks        *prometheus.CounterVec
	outcomes          *prometheus.CounterVec
	domainAccuracy    *prometheus.GaugeVec
	adapterFailures   *prometheus.CounterVec
	noiseAnomalies    *prometheus.CounterVec
	calibrationECE    prometheus.Gauge
	calibrationFactor prometheus.Gauge
	activeDomains     prometheus.Gauge
}

// New creates a recorder registered with the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "Total number of messages sent to a backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_price",
				Help:      "Last observed price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Unified predictions generated",
			},
			[]string{"symbol", "direction"},
		),
		confidence: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prediction_confidence",
				Help:      "Final confidence of generated predictions",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"symbol"},
		),
		convergenceEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "convergence_events_total",
				Help:      "Cross-domain convergence events detected",
			},
			[]string{"direction"},
		),
		phaseLocks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_locks_total",
				Help:      "Phase locks formed",
			},
			[]string{"implication"},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outcomes_total",
				Help:      "Prediction outcomes recorded",
			},
			[]string{"result"},
		),
		domainAccuracy: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "domain_accuracy",
				Help:      "Learned accuracy weight per domain",
			},
			[]string{"domain"},
		),
		adapterFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "adapter_failures_total",
				Help:      "Adapter errors contained by the engine",
			},
			[]string{"domain"},
		),
		noiseAnomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "noise_anomalies_total",
				Help:      "Noise anomalies flagged by the inverse noise modifier",
			},
			[]string{"type"},
		),
		calibrationECE: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibration_ece",
			Help:      "Expected calibration error of resolved predictions",
		}),
		calibrationFactor: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibration_adjustment_factor",
			Help:      "Global confidence adjustment factor",
		}),
		activeDomains: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_domains",
			Help:      "Domains holding a current signature",
		}),
	}
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordPrediction(symbol, direction string, confidence float64) {
	r.predictions.WithLabelValues(symbol, direction).Inc()
	r.confidence.WithLabelValues(symbol).Observe(confidence)
}

func (r *Recorder) RecordConvergence(direction string) {
	r.convergenceEvents.WithLabelValues(direction).Inc()
}

func (r *Recorder) RecordPhaseLock(implication string) {
	r.phaseLocks.WithLabelValues(implication).Inc()
}

func (r *Recorder) RecordOutcome(correct bool) {
	result := "miss"
	if correct {
		result = "hit"
	}
	r.outcomes.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordDomainAccuracy(domain string, accuracy float64) {
	r.domainAccuracy.WithLabelValues(domain).Set(accuracy)
}

func (r *Recorder) RecordAdapterFailure(domain string) {
	r.adapterFailures.WithLabelValues(domain).Inc()
}

func (r *Recorder) RecordNoiseAnomaly(kind string) {
	r.noiseAnomalies.WithLabelValues(kind).Inc()
}

// RecordCalibration publishes the current calibration error and factor.
func (r *Recorder) RecordCalibration(ece, factor float64) {
	r.calibrationECE.Set(ece)
	r.calibrationFactor.Set(factor)
}

func (r *Recorder) RecordActiveDomains(n int) {
	r.activeDomains.Set(float64(n))
}
