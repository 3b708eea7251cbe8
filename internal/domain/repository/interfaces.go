package repository

import (
	"context"
	"time"

	"SignalFuse/internal/domain/models"
)

// MarketStream is a live trade feed.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// PredictionPublisher fans generated predictions out to downstream consumers.
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, env models.PredictionEnvelope) error
	Close() error
}

// PredictionStore persists predictions and their outcomes for offline analysis.
type PredictionStore interface {
	Init(ctx context.Context) error
	SavePrediction(ctx context.Context, env models.PredictionEnvelope) error
	SaveOutcome(ctx context.Context, out models.Outcome, correct bool) error
	RecentPredictions(ctx context.Context, symbol string, since time.Time, limit int) ([]models.UnifiedPrediction, error)
	Health(ctx context.Context) error
	Close() error
}

// SnapshotCache shares the latest engine snapshot across replicas.
type SnapshotCache interface {
	SaveSnapshot(ctx context.Context, snap models.EngineSnapshot) error
	LoadSnapshot(ctx context.Context) (models.EngineSnapshot, error)
	SaveEnvelope(ctx context.Context, env models.PredictionEnvelope) error
	LoadEnvelope(ctx context.Context, id string) (models.PredictionEnvelope, error)
}

type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordPrediction(symbol, direction string, confidence float64)
	RecordConvergence(direction string)
	RecordPhaseLock(implication string)
	RecordOutcome(correct bool)
	RecordDomainAccuracy(domain string, accuracy float64)
	RecordAdapterFailure(domain string)
	RecordNoiseAnomaly(kind string)
	RecordCalibration(ece, factor float64)
	RecordActiveDomains(n int)
}
