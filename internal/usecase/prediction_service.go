package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalFuse/internal/domain/models"
	drepo "SignalFuse/internal/domain/repository"
	"SignalFuse/internal/services/fusion"
	"SignalFuse/pkg/logger"
)

// PredictionService generates predictions through the runner and fans them out
// to the configured store, publisher and cache. Sink failures are logged, not returned.
type PredictionService struct {
	runner  *EngineRunner
	store   drepo.PredictionStore
	pub     drepo.PredictionPublisher
	cache   drepo.SnapshotCache
	metrics drepo.Metrics
	log     *logger.Logger
}

type PredictionOption func(*PredictionService)

func WithPredictionStore(s drepo.PredictionStore) PredictionOption {
	return func(p *PredictionService) { p.store = s }
}

func WithPredictionPublisher(pub drepo.PredictionPublisher) PredictionOption {
	return func(p *PredictionService) { p.pub = pub }
}

func WithSnapshotCache(c drepo.SnapshotCache) PredictionOption {
	return func(p *PredictionService) { p.cache = c }
}

func WithServiceMetrics(m drepo.Metrics) PredictionOption {
	return func(p *PredictionService) { p.metrics = m }
}

func WithServiceLogger(l *logger.Logger) PredictionOption {
	return func(p *PredictionService) {
		if l != nil {
			p.log = l
		}
	}
}

func NewPredictionService(runner *EngineRunner, opts ...PredictionOption) *PredictionService {
	s := &PredictionService{runner: runner, log: logger.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Runner exposes the underlying engine runner.
func (s *PredictionService) Runner() *EngineRunner { return s.runner }

// Predict generates a prediction for symbol. An empty horizon lets the engine derive one.
func (s *PredictionService) Predict(ctx context.Context, symbol, horizon string) (models.PredictionEnvelope, error) {
	start := time.Now()
	env, err := s.runner.Predict(ctx, symbol, horizon)
	if err != nil {
		s.recordError("predict")
		return models.PredictionEnvelope{}, fmt.Errorf("predict %s: %w", symbol, err)
	}
	s.fanOut(ctx, env)
	if s.metrics != nil {
		s.metrics.RecordLatency("predict", time.Since(start).Seconds())
	}
	return env, nil
}

func (s *PredictionService) fanOut(ctx context.Context, env models.PredictionEnvelope) {
	if s.store != nil {
		if err := s.store.SavePrediction(ctx, env); err != nil {
			s.recordError("store_prediction")
			s.log.Warn("save prediction failed", logger.String("id", env.ID), logger.Error(err))
		}
	}
	if s.pub != nil {
		if err := s.pub.PublishPrediction(ctx, env); err != nil {
			s.recordError("publish_prediction")
			s.log.Warn("publish prediction failed", logger.String("id", env.ID), logger.Error(err))
		} else if s.metrics != nil {
			s.metrics.RecordMessageSent("kafka", env.Prediction.Symbol)
		}
	}
	if s.cache != nil {
		if err := s.cache.SaveEnvelope(ctx, env); err != nil {
			s.recordError("cache_envelope")
			s.log.Warn("cache prediction failed", logger.String("id", env.ID), logger.Error(err))
		}
		s.saveSnapshot(ctx)
	}
}

func (s *PredictionService) saveSnapshot(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveSnapshot(ctx, *s.runner.Snapshot()); err != nil {
		s.recordError("cache_snapshot")
		s.log.Warn("cache snapshot failed", logger.Error(err))
	}
}

// RecordOutcome resolves a prediction. Predictions that aged out of engine history
// are looked up in the snapshot cache.
func (s *PredictionService) RecordOutcome(ctx context.Context, out models.Outcome) (fusion.OutcomeResult, error) {
	actual, ok := models.ParseDirection(string(out.ActualDirection))
	if !ok {
		return fusion.OutcomeResult{}, fmt.Errorf("record outcome %q: %w", out.ActualDirection, fusion.ErrInvalidDirection)
	}
	res, err := s.runner.RecordOutcome(ctx, out.PredictionID, actual, out.ActualMagnitude)
	if errors.Is(err, fusion.ErrPredictionNotFound) && s.cache != nil {
		env, cerr := s.cache.LoadEnvelope(ctx, out.PredictionID)
		if cerr == nil {
			res, err = s.runner.RecordEnvelopeOutcome(ctx, env, actual, out.ActualMagnitude)
		}
	}
	if err != nil {
		if !errors.Is(err, fusion.ErrAlreadyResolved) {
			s.recordError("record_outcome")
		}
		return fusion.OutcomeResult{}, err
	}

	if out.ResolvedAt.IsZero() {
		out.ResolvedAt = time.Now().UTC()
	}
	if s.store != nil {
		if err := s.store.SaveOutcome(ctx, out, res.Correct); err != nil {
			s.recordError("store_outcome")
			s.log.Warn("save outcome failed", logger.String("id", out.PredictionID), logger.Error(err))
		}
	}
	if s.metrics != nil {
		adv := s.runner.Snapshot().Calibration
		s.metrics.RecordCalibration(adv.ECE, adv.AdjustmentFactor)
	}
	s.saveSnapshot(ctx)
	return res, nil
}

// History returns recent predictions, newest last, optionally filtered by symbol.
// When the engine holds none for symbol the persistent store is consulted.
func (s *PredictionService) History(ctx context.Context, symbol string, limit int) ([]models.UnifiedPrediction, error) {
	envs, err := s.runner.History(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]models.UnifiedPrediction, 0, len(envs))
	for _, e := range envs {
		if symbol == "" || e.Prediction.Symbol == symbol {
			out = append(out, e.Prediction)
		}
	}
	if len(out) == 0 && symbol != "" && s.store != nil {
		since := time.Now().Add(-24 * time.Hour)
		stored, err := s.store.RecentPredictions(ctx, symbol, since, limit)
		if err != nil {
			s.recordError("store_history")
			return nil, fmt.Errorf("history %s: %w", symbol, err)
		}
		return stored, nil
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *PredictionService) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}
