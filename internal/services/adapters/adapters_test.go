package adapters

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalFuse/internal/domain/models"
	"SignalFuse/pkg/config"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func feed(t *testing.T, a *ProjectionAdapter, values []float64) models.DomainSignature {
	t.Helper()
	ctx := context.Background()
	var buf []models.DomainSignal
	for i, v := range values {
		s, err := a.ProcessRawData(ctx, models.MarketFeatures{
			Symbol:    "AAPL",
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Values:    map[string]float64{a.p.Key: v},
		})
		require.NoError(t, err)
		buf = append(buf, s)
	}
	sig, err := a.ExtractSignature(ctx, buf)
	require.NoError(t, err)
	return sig
}

func TestDefaultProjections_TwentyOneDistinctDomains(t *testing.T) {
	ps := DefaultProjections()
	require.Len(t, ps, 21)
	seen := map[models.Domain]bool{}
	for _, p := range ps {
		assert.False(t, seen[p.Domain], p.Domain)
		seen[p.Domain] = true
		assert.NoError(t, NewProjectionAdapter(p).Initialize(context.Background()))
	}
	assert.Len(t, DefaultAdapters(), 21)
}

func TestProjection_DirectionalSignature(t *testing.T) {
	a := NewProjectionAdapter(Projection{Domain: "momentum_fast", Key: "momentum", Scale: 10, Span: 6, Period: 15 * time.Minute})
	up := feed(t, a, []float64{0.1, 0.1, 0.12, 0.1, 0.11, 0.1})
	assert.Greater(t, up.Momentum, 0.5)
	assert.Greater(t, up.QuadrantProfile.Aggressive, up.QuadrantProfile.Defensive)
	assert.InDelta(t, 1.0, up.QuadrantProfile.Sum(), 1e-9)
	assert.InDelta(t, 1.0, up.TemporalFlow.Sum(), 1e-9)
	assert.InDelta(t, 1.0, up.HarmonicResonance, 1e-9)
	assert.InDelta(t, 4.0, up.DominantFrequency, 1e-9)

	down := feed(t, a, []float64{-0.1, -0.1, -0.1})
	assert.Less(t, down.Momentum, -0.5)
	assert.Greater(t, down.QuadrantProfile.Defensive, down.QuadrantProfile.Aggressive)
}

func TestProjection_MissingFeatureIsNeutral(t *testing.T) {
	a := NewProjectionAdapter(Projection{Domain: "sentiment", Key: "sentiment"})
	s, err := a.ProcessRawData(context.Background(), models.MarketFeatures{Timestamp: t0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.RawData[0])
	assert.InDelta(t, 0.2, s.Intensity, 1e-12)

	sig, err := a.ExtractSignature(context.Background(), []models.DomainSignal{s})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sig.Momentum)
	assert.InDelta(t, 0.25, sig.QuadrantProfile.Aggressive, 1e-12)
}

func TestProjection_SignKeyAndErrors(t *testing.T) {
	a := NewProjectionAdapter(Projection{Domain: "calm_drift", Key: "efficiency", SignKey: "trend", Offset: 0.2, Scale: 3})
	s, err := a.ProcessRawData(context.Background(), models.MarketFeatures{Values: map[string]float64{"efficiency": 0.9, "trend": -0.01}})
	require.NoError(t, err)
	assert.Less(t, s.RawData[0], 0.0)

	_, err = a.ProcessRawData(context.Background(), models.MarketFeatures{Values: map[string]float64{"efficiency": math.NaN()}})
	assert.Error(t, err)

	_, err = a.ExtractSignature(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSignals)

	assert.Error(t, NewProjectionAdapter(Projection{}).Initialize(context.Background()))
}

func newRemote(t *testing.T, failFirst int32) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/signals", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req signalsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(models.DomainSignal{Intensity: 0.7, Frequency: 2, RawData: []float64{req.Features.Price}})
	})
	mux.HandleFunc("/signature", func(w http.ResponseWriter, r *http.Request) {
		var req signatureRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(models.DomainSignature{
			Momentum:        2,
			QuadrantProfile: models.QuadrantProfile{Aggressive: 3, Defensive: 1},
			Intensity:       float64(len(req.Signals)),
		})
	})
	mux.HandleFunc("/bad/signals", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	})
	return httptest.NewServer(mux), &calls
}

func TestHTTPAdapter_RetriesTransientErrors(t *testing.T) {
	srv, calls := newRemote(t, 2)
	defer srv.Close()

	base := NewHTTPServiceBase(srv.URL, time.Second, WithBackoff(time.Millisecond), WithRateLimit(1000, 10))
	a := NewHTTPAdapter("remote_flow", base, 3, nil)
	require.NoError(t, a.Initialize(context.Background()))

	s, err := a.ProcessRawData(context.Background(), models.MarketFeatures{Price: 101, Timestamp: t0})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.Equal(t, models.Domain("remote_flow"), s.Domain)
	assert.Equal(t, t0, s.Timestamp)

	sig, err := a.ExtractSignature(context.Background(), []models.DomainSignal{s})
	require.NoError(t, err)
	assert.Equal(t, models.Domain("remote_flow"), sig.Domain)
	assert.Equal(t, 1.0, sig.Momentum)
	assert.InDelta(t, 0.75, sig.QuadrantProfile.Aggressive, 1e-12)
}

func TestHTTPAdapter_DoesNotRetryClientErrors(t *testing.T) {
	srv, calls := newRemote(t, 0)
	defer srv.Close()

	a := NewHTTPAdapter("bad", NewHTTPServiceBase(srv.URL+"/bad", time.Second, WithBackoff(time.Millisecond)), 5, nil)
	_, err := a.ProcessRawData(context.Background(), models.MarketFeatures{})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestHTTPAdapter_InitializeFailsWhenUnreachable(t *testing.T) {
	srv, _ := newRemote(t, 0)
	url := srv.URL
	srv.Close()
	a := NewHTTPAdapter("gone", NewHTTPServiceBase(url, 100*time.Millisecond), 1, nil)
	assert.Error(t, a.Initialize(context.Background()))
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Adapters.Remote = []config.RemoteAdapter{
		{Domain: "a", URL: "http://localhost:1", Retries: 1},
		{Domain: "b", URL: "http://localhost:2", Disabled: true},
	}
	got := FromConfig(cfg, nil)
	require.Len(t, got, 22)
	assert.Equal(t, models.Domain("a"), got[21].Domain())

	cfg.Adapters.Projection = false
	assert.Len(t, FromConfig(cfg, nil), 1)
}
