package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"SignalFuse/internal/domain/models"
	drepo "SignalFuse/internal/domain/repository"
)

type fakeMetrics struct {
	mu          sync.Mutex
	errors      map[string]int
	predictions int
	outcomes    map[bool]int
	adapterFail map[string]int
	convergence int
	calibration int
	sent        int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: map[string]int{}, outcomes: map[bool]int{}, adapterFail: map[string]int{}}
}

func (m *fakeMetrics) RecordMessageSent(string, string) { m.mu.Lock(); m.sent++; m.mu.Unlock() }
func (m *fakeMetrics) RecordError(kind string)          { m.mu.Lock(); m.errors[kind]++; m.mu.Unlock() }
func (m *fakeMetrics) RecordLastPrice(string, float64)  {}
func (m *fakeMetrics) RecordLatency(string, float64)    {}
func (m *fakeMetrics) RecordPrediction(string, string, float64) {
	m.mu.Lock()
	m.predictions++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordConvergence(string)             { m.mu.Lock(); m.convergence++; m.mu.Unlock() }
func (m *fakeMetrics) RecordPhaseLock(string)               {}
func (m *fakeMetrics) RecordOutcome(correct bool)           { m.mu.Lock(); m.outcomes[correct]++; m.mu.Unlock() }
func (m *fakeMetrics) RecordDomainAccuracy(string, float64) {}
func (m *fakeMetrics) RecordAdapterFailure(domain string)   { m.mu.Lock(); m.adapterFail[domain]++; m.mu.Unlock() }
func (m *fakeMetrics) RecordNoiseAnomaly(string)            {}
func (m *fakeMetrics) RecordCalibration(float64, float64)   { m.mu.Lock(); m.calibration++; m.mu.Unlock() }
func (m *fakeMetrics) RecordActiveDomains(int)              {}
func (m *fakeMetrics) errorCount(kind string) int           { m.mu.Lock(); defer m.mu.Unlock(); return m.errors[kind] }
func (m *fakeMetrics) predictionCount() int                 { m.mu.Lock(); defer m.mu.Unlock(); return m.predictions }

var _ drepo.Metrics = (*fakeMetrics)(nil)

type fakeStore struct {
	mu          sync.Mutex
	predictions []models.PredictionEnvelope
	outcomes    []models.Outcome
	failSave    bool
}

func (s *fakeStore) Init(context.Context) error { return nil }
func (s *fakeStore) SavePrediction(_ context.Context, env models.PredictionEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("clickhouse down")
	}
	s.predictions = append(s.predictions, env)
	return nil
}
func (s *fakeStore) SaveOutcome(_ context.Context, out models.Outcome, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, out)
	return nil
}
func (s *fakeStore) RecentPredictions(_ context.Context, symbol string, _ time.Time, limit int) ([]models.UnifiedPrediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UnifiedPrediction
	for _, e := range s.predictions {
		if e.Prediction.Symbol == symbol {
			out = append(out, e.Prediction)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

type fakePublisher struct {
	mu   sync.Mutex
	sent []models.PredictionEnvelope
}

func (p *fakePublisher) PublishPrediction(_ context.Context, env models.PredictionEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, env)
	return nil
}
func (p *fakePublisher) Close() error { return nil }
func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type fakeCache struct {
	mu        sync.Mutex
	envelopes map[string]models.PredictionEnvelope
	snapshots int
}

func newFakeCache() *fakeCache {
	return &fakeCache{envelopes: map[string]models.PredictionEnvelope{}}
}

func (c *fakeCache) SaveSnapshot(context.Context, models.EngineSnapshot) error {
	c.mu.Lock()
	c.snapshots++
	c.mu.Unlock()
	return nil
}
func (c *fakeCache) LoadSnapshot(context.Context) (models.EngineSnapshot, error) {
	return models.EngineSnapshot{}, errors.New("not implemented")
}
func (c *fakeCache) SaveEnvelope(_ context.Context, env models.PredictionEnvelope) error {
	c.mu.Lock()
	c.envelopes[env.ID] = env
	c.mu.Unlock()
	return nil
}
func (c *fakeCache) LoadEnvelope(_ context.Context, id string) (models.PredictionEnvelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	env, ok := c.envelopes[id]
	if !ok {
		return models.PredictionEnvelope{}, errors.New("cache miss")
	}
	return env, nil
}
