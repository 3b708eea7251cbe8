package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalFuse/internal/domain/models"
	drepo "SignalFuse/internal/domain/repository"
	"SignalFuse/internal/services/features"
	"SignalFuse/pkg/logger"
)

// TradeProcessor turns raw trades into market features, feeds them to the engine
// and triggers a prediction per symbol at most once per interval of trade time.
type TradeProcessor struct {
	window       *features.Window
	runner       *EngineRunner
	predictions  *PredictionService
	metrics      drepo.Metrics
	log          *logger.Logger
	predictEvery time.Duration

	mu          sync.Mutex
	lastPredict map[string]time.Time
}

func NewTradeProcessor(
	window *features.Window,
	predictions *PredictionService,
	metrics drepo.Metrics,
	predictEvery time.Duration,
	log *logger.Logger,
) *TradeProcessor {
	if log == nil {
		log = logger.NewNop()
	}
	return &TradeProcessor{
		window:       window,
		runner:       predictions.Runner(),
		predictions:  predictions,
		metrics:      metrics,
		log:          log,
		predictEvery: predictEvery,
		lastPredict:  make(map[string]time.Time),
	}
}

// Process handles a single trade.
func (p *TradeProcessor) Process(ctx context.Context, t *models.Trade) error {
	if t == nil {
		return fmt.Errorf("trade is nil")
	}
	start := time.Now()
	f, ok := p.window.Add(*t)
	if !ok {
		p.metrics.RecordError("trade_rejected")
		return nil
	}
	p.metrics.RecordLastPrice(t.Symbol, t.Price)
	return p.ProcessFeatures(ctx, f, start)
}

// ProcessFeatures feeds precomputed features to the engine.
func (p *TradeProcessor) ProcessFeatures(ctx context.Context, f models.MarketFeatures, start time.Time) error {
	if start.IsZero() {
		start = time.Now()
	}
	if _, err := p.runner.ProcessMarketSignal(ctx, f); err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process features %s: %w", f.Symbol, err)
	}
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	if !p.due(f.Symbol, f.Timestamp) {
		return nil
	}
	if _, err := p.predictions.Predict(ctx, f.Symbol, ""); err != nil {
		return err
	}
	return nil
}

// due reports whether a prediction should be generated for symbol at ts.
func (p *TradeProcessor) due(symbol string, ts time.Time) bool {
	if p.predictEvery <= 0 {
		return false
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastPredict[symbol]
	if ok && ts.Sub(last) < p.predictEvery {
		return false
	}
	p.lastPredict[symbol] = ts
	return true
}
