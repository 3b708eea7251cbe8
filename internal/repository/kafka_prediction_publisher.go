package repository

import (
	"context"
	"fmt"

	"SignalFuse/internal/domain/models"
	domrepo "SignalFuse/internal/domain/repository"
)

type keyedPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPredictionPublisher publishes envelopes keyed by symbol so each
// symbol's predictions stay ordered within a partition.
type KafkaPredictionPublisher struct {
	producer keyedPublisher
	topic    string
}

func NewKafkaPredictionPublisher(producer keyedPublisher, topic string) *KafkaPredictionPublisher {
	return &KafkaPredictionPublisher{producer: producer, topic: topic}
}

var _ domrepo.PredictionPublisher = (*KafkaPredictionPublisher)(nil)

func (p *KafkaPredictionPublisher) PublishPrediction(ctx context.Context, env models.PredictionEnvelope) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(env.Prediction.Symbol), env); err != nil {
		return fmt.Errorf("publish prediction %s: %w", env.ID, err)
	}
	return nil
}

func (p *KafkaPredictionPublisher) Close() error { return p.producer.Close() }
