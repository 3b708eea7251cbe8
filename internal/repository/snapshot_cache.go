package repository

import (
	"context"
	"fmt"
	"time"

	"SignalFuse/internal/domain/models"
	domrepo "SignalFuse/internal/domain/repository"
	"SignalFuse/pkg/cache"
)

const (
	snapshotKey    = "snapshot:latest"
	envelopePrefix = "prediction"
)

// SnapshotCache stores engine snapshots and recent envelopes in a cache.Service.
type SnapshotCache struct {
	svc         cache.Service
	snapshotTTL time.Duration
	envelopeTTL time.Duration
}

func NewSnapshotCache(svc cache.Service, snapshotTTL, envelopeTTL time.Duration) *SnapshotCache {
	if snapshotTTL <= 0 {
		snapshotTTL = 30 * time.Second
	}
	if envelopeTTL <= 0 {
		envelopeTTL = 24 * time.Hour
	}
	return &SnapshotCache{svc: svc, snapshotTTL: snapshotTTL, envelopeTTL: envelopeTTL}
}

var _ domrepo.SnapshotCache = (*SnapshotCache)(nil)

func (c *SnapshotCache) SaveSnapshot(ctx context.Context, snap models.EngineSnapshot) error {
	if err := c.svc.Set(ctx, snapshotKey, snap, c.snapshotTTL); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

func (c *SnapshotCache) LoadSnapshot(ctx context.Context) (models.EngineSnapshot, error) {
	snap, err := cache.GetTyped[models.EngineSnapshot](ctx, c.svc, snapshotKey)
	if err != nil {
		return models.EngineSnapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

func (c *SnapshotCache) SaveEnvelope(ctx context.Context, env models.PredictionEnvelope) error {
	if err := c.svc.Set(ctx, cache.GenerateKey(envelopePrefix, env.ID), env, c.envelopeTTL); err != nil {
		return fmt.Errorf("cache envelope %s: %w", env.ID, err)
	}
	return nil
}

func (c *SnapshotCache) LoadEnvelope(ctx context.Context, id string) (models.PredictionEnvelope, error) {
	env, err := cache.GetTyped[models.PredictionEnvelope](ctx, c.svc, cache.GenerateKey(envelopePrefix, id))
	if err != nil {
		return models.PredictionEnvelope{}, fmt.Errorf("load envelope %s: %w", id, err)
	}
	return env, nil
}
