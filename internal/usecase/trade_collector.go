package usecase

import (
	"context"
	"sync"
	"sync/atomic"

	"SignalFuse/internal/domain/models"
	drepo "SignalFuse/internal/domain/repository"
	mid "SignalFuse/internal/middleware"
	"SignalFuse/pkg/logger"
)

// TradeCollector collects trades from a market stream and pushes them through
// the realtime pipeline into the engine.
type TradeCollector struct {
	stream  drepo.MarketStream
	proc    *TradeProcessor
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
	log     *logger.Logger
	wg      sync.WaitGroup
	closing atomic.Bool
}

func NewTradeCollector(stream drepo.MarketStream, proc *TradeProcessor, metrics drepo.Metrics, pipe *mid.RealtimePipeline, log *logger.Logger) *TradeCollector {
	if log == nil {
		log = logger.NewNop()
	}
	return &TradeCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe, log: log}
}

// IsConnected returns true if the market stream is connected.
func (c *TradeCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TradeCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	trCh, errCh := c.stream.Read(ctx)
	c.wg.Add(1)
	go c.consume(ctx, trCh, errCh)
	return nil
}

func (c *TradeCollector) consume(ctx context.Context, trCh <-chan *models.Trade, errCh <-chan error) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				if trCh == nil {
					return
				}
				continue
			}
			if c.closing.Load() {
				return
			}
			c.metrics.RecordError("stream")
			c.log.Warn("market stream error, reconnecting", logger.Error(err))
			if rerr := c.stream.Reconnect(ctx); rerr != nil {
				c.log.Error("market stream reconnect failed", logger.Error(rerr))
				return
			}
			trCh, errCh = c.stream.Read(ctx)
		case t, ok := <-trCh:
			if !ok {
				trCh = nil
				if errCh == nil {
					return
				}
				continue
			}
			if t == nil {
				continue
			}
			var err error
			if c.pipe != nil {
				err = c.pipe.Process(ctx, t)
			} else {
				err = c.proc.Process(ctx, t)
			}
			if err != nil {
				c.log.Debug("trade not processed", logger.String("symbol", t.Symbol), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the pipeline, closes the stream and waits for the consumer loop.
func (c *TradeCollector) Shutdown(ctx context.Context) error {
	c.closing.Store(true)
	if c.pipe != nil {
		c.pipe.Stop()
	}
	err := c.stream.Close()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}
