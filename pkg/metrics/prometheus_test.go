package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounters(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordPrediction("BTCUSD", "up", 0.7)
	r.RecordPrediction("BTCUSD", "up", 0.6)
	r.RecordOutcome(true)
	r.RecordOutcome(false)
	r.RecordOutcome(false)
	r.RecordAdapterFailure("weather")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.predictions.WithLabelValues("BTCUSD", "up")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.outcomes.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.adapterFailures.WithLabelValues("weather")))
}

func TestRecorderGauges(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordCalibration(0.04, 1.1)
	r.RecordDomainAccuracy("lunar", 0.62)
	r.RecordActiveDomains(21)

	assert.InDelta(t, 0.04, testutil.ToFloat64(r.calibrationECE), 1e-12)
	assert.InDelta(t, 1.1, testutil.ToFloat64(r.calibrationFactor), 1e-12)
	assert.InDelta(t, 0.62, testutil.ToFloat64(r.domainAccuracy.WithLabelValues("lunar")), 1e-12)
	assert.Equal(t, 21.0, testutil.ToFloat64(r.activeDomains))
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegistry(prometheus.NewRegistry())
		NewWithRegistry(prometheus.NewRegistry())
	})
}
