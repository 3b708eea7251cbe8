package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"SignalFuse/internal/domain/models"
	domrepo "SignalFuse/internal/domain/repository"
	pkgch "SignalFuse/pkg/clickhouse"
	applogger "SignalFuse/pkg/logger"
)

const (
	predictionColumns = "id, generated_at, symbol, direction, confidence, raw_confidence, magnitude, horizon, " +
		"consensus_strength, harmonic_alignment, contributing_domains, convergence_event_id, phase_lock_id, " +
		"calibration_id, noise_level, truth_combined, envelope"
	predictionPlaceholders = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	batchChunkSize         = 2000
)

// CHPredictionStore implements PredictionStore backed by ClickHouse.
type CHPredictionStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHPredictionStore(ch *pkgch.Client) *CHPredictionStore {
	return &CHPredictionStore{ch: ch, db: ch.DB()}
}

var _ domrepo.PredictionStore = (*CHPredictionStore)(nil)

// SetLogger injects a structured logger.
func (s *CHPredictionStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPredictionStore) table(name string) string {
	return s.ch.Database() + "." + name
}

// SchemaStatements returns the idempotent DDL for database db.
func SchemaStatements(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.predictions (
    id                   String,
    generated_at         DateTime64(3, 'UTC'),
    symbol               LowCardinality(String),
    direction            LowCardinality(String),
    confidence           Float64,
    raw_confidence       Float64,
    magnitude            Float64,
    horizon              LowCardinality(String),
    consensus_strength   Float64,
    harmonic_alignment   Float64,
    contributing_domains Array(String),
    convergence_event_id String,
    phase_lock_id        String,
    calibration_id       String,
    noise_level          Float64,
    truth_combined       Float64,
    envelope             String CODEC(ZSTD)
) ENGINE = ReplacingMergeTree
ORDER BY (symbol, generated_at, id)
TTL toDateTime(generated_at) + INTERVAL 90 DAY`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.outcomes (
    prediction_id    String,
    resolved_at      DateTime64(3, 'UTC'),
    actual_direction LowCardinality(String),
    actual_magnitude Float64,
    correct          UInt8
) ENGINE = MergeTree
ORDER BY (resolved_at, prediction_id)`, db),
	}
}

func (s *CHPredictionStore) Init(ctx context.Context) error {
	if err := s.ch.InitSchema(ctx, SchemaStatements(s.ch.Database())); err != nil {
		return fmt.Errorf("init prediction schema: %w", err)
	}
	return nil
}

// predictionArgs flattens an envelope into insert arguments in predictionColumns order.
func predictionArgs(env models.PredictionEnvelope) ([]interface{}, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	p := env.Prediction
	domains := make([]string, 0, len(p.ContributingDomains))
	for _, d := range p.ContributingDomains {
		domains = append(domains, string(d))
	}
	return []interface{}{
		env.ID,
		p.GeneratedAt.UTC(),
		p.Symbol,
		string(p.Direction),
		p.Confidence,
		env.RawConfidence,
		p.Magnitude,
		p.TimeHorizon,
		p.ConsensusStrength,
		p.HarmonicAlignment,
		domains,
		env.ConvergenceEventID,
		env.PhaseLockID,
		env.CalibrationID,
		env.Truth.NoiseLevel,
		env.Truth.Combined,
		string(raw),
	}, nil
}

func (s *CHPredictionStore) SavePrediction(ctx context.Context, env models.PredictionEnvelope) error {
	return s.SavePredictions(ctx, []models.PredictionEnvelope{env})
}

// SavePredictions inserts envelopes using multi-row VALUES in chunks.
func (s *CHPredictionStore) SavePredictions(ctx context.Context, envs []models.PredictionEnvelope) error {
	start := time.Now()
	for lo := 0; lo < len(envs); lo += batchChunkSize {
		hi := lo + batchChunkSize
		if hi > len(envs) {
			hi = len(envs)
		}
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*17)
		for _, env := range envs[lo:hi] {
			if env.ID == "" {
				continue
			}
			a, err := predictionArgs(env)
			if err != nil {
				return err
			}
			values = append(values, predictionPlaceholders)
			args = append(args, a...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table("predictions"), predictionColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse save_predictions error", applogger.Int("rows", len(values)), applogger.Error(err))
			}
			return fmt.Errorf("save predictions: %w", err)
		}
	}
	if s.l != nil {
		s.l.Debug("clickhouse save_predictions ok",
			applogger.Int("rows", len(envs)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHPredictionStore) SaveOutcome(ctx context.Context, out models.Outcome, correct bool) error {
	var c uint8
	if correct {
		c = 1
	}
	resolved := out.ResolvedAt
	if resolved.IsZero() {
		resolved = time.Now()
	}
	q := fmt.Sprintf("INSERT INTO %s (prediction_id, resolved_at, actual_direction, actual_magnitude, correct) VALUES (?, ?, ?, ?, ?)", s.table("outcomes"))
	if _, err := s.db.ExecContext(ctx, q, out.PredictionID, resolved.UTC(), string(out.ActualDirection), out.ActualMagnitude, c); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse save_outcome error", applogger.String("prediction_id", out.PredictionID), applogger.Error(err))
		}
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

// RecentPredictions returns up to limit predictions for symbol since the given time, oldest first.
func (s *CHPredictionStore) RecentPredictions(ctx context.Context, symbol string, since time.Time, limit int) ([]models.UnifiedPrediction, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 100
	}
	const qtpl = `
        SELECT symbol, direction, confidence, magnitude, horizon, contributing_domains,
               consensus_strength, harmonic_alignment, generated_at
        FROM %s FINAL
        WHERE symbol = ? AND generated_at >= ?
        ORDER BY generated_at DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, s.table("predictions"))
	rows, err := s.db.QueryContext(ctx, q, symbol, since.UTC(), limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse recent_predictions query error", applogger.String("symbol", symbol), applogger.Error(err))
		}
		return nil, fmt.Errorf("recent predictions: %w", err)
	}
	defer rows.Close()

	out := make([]models.UnifiedPrediction, 0, limit)
	for rows.Next() {
		var (
			p       models.UnifiedPrediction
			dir     string
			domains []string
		)
		if err := rows.Scan(&p.Symbol, &dir, &p.Confidence, &p.Magnitude, &p.TimeHorizon, &domains,
			&p.ConsensusStrength, &p.HarmonicAlignment, &p.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		p.Direction, _ = models.ParseDirection(dir)
		for _, d := range domains {
			p.ContributingDomains = append(p.ContributingDomains, models.Domain(d))
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if s.l != nil {
		s.l.Debug("clickhouse recent_predictions ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHPredictionStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

func (s *CHPredictionStore) Close() error { return s.ch.Close() }
