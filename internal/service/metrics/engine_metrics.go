package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// CommandLatency measures time spent inside the engine per runner command.
	CommandLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signalfuse",
			Subsystem: "runner",
			Name:      "command_seconds",
			Help:      "Latency of engine commands executed by the runner",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"command"},
	)

	CommandErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalfuse",
			Subsystem: "runner",
			Name:      "command_errors_total",
			Help:      "Engine commands that returned an error or panicked",
		},
		[]string{"command", "reason"},
	)

	MailboxDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "signalfuse",
			Subsystem: "runner",
			Name:      "mailbox_depth",
			Help:      "Commands waiting in the runner mailbox",
		},
	)

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signalfuse",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of fusion API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalfuse",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by fusion API endpoint",
		},
		[]string{"endpoint"},
	)
)

// Register adds the collectors to the default registry once.
func Register() {
	once.Do(func() {
		for _, c := range []prometheus.Collector{CommandLatency, CommandErrors, MailboxDepth, APILatency, APIErrors} {
			if err := prometheus.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}
