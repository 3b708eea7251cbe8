package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"SignalFuse/internal/domain/models"
	svcmetrics "SignalFuse/internal/service/metrics"
	"SignalFuse/internal/services/fusion"
	"SignalFuse/pkg/logger"
)

var ErrRunnerStopped = errors.New("engine runner stopped")

type commandResult struct {
	val interface{}
	err error
}

type command struct {
	name  string
	ctx   context.Context
	fn    func(ctx context.Context, e *fusion.Engine) (interface{}, error)
	reply chan commandResult
}

// EngineRunner owns a fusion.Engine on a single goroutine. Commands are
// serialized through a mailbox and a fresh snapshot is published after each one.
type EngineRunner struct {
	engine  *fusion.Engine
	mailbox chan command
	timeout time.Duration
	log     *logger.Logger

	snapshot atomic.Pointer[models.EngineSnapshot]

	quit     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

type RunnerOption func(*EngineRunner)

func WithMailboxSize(n int) RunnerOption {
	return func(r *EngineRunner) {
		if n > 0 {
			r.mailbox = make(chan command, n)
		}
	}
}

// WithCommandTimeout bounds how long a caller waits for one command.
func WithCommandTimeout(d time.Duration) RunnerOption {
	return func(r *EngineRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithRunnerLogger(l *logger.Logger) RunnerOption {
	return func(r *EngineRunner) {
		if l != nil {
			r.log = l
		}
	}
}

func NewEngineRunner(engine *fusion.Engine, opts ...RunnerOption) *EngineRunner {
	r := &EngineRunner{
		engine:  engine,
		mailbox: make(chan command, 256),
		timeout: 5 * time.Second,
		log:     logger.NewNop(),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	svcmetrics.Register()
	snap := engine.Snapshot()
	r.snapshot.Store(&snap)
	return r
}

// Start launches the owner goroutine and initializes the adapters.
func (r *EngineRunner) Start(ctx context.Context) error {
	select {
	case <-r.quit:
		return ErrRunnerStopped
	default:
	}
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}
	go r.loop()
	n, err := call(ctx, r, "initialize", func(ctx context.Context, e *fusion.Engine) (int, error) {
		return e.Initialize(ctx), nil
	})
	if err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	r.log.Info("engine runner started", logger.Int("adapters", n), logger.Int("mailbox", cap(r.mailbox)))
	return nil
}

// Stop terminates the owner goroutine. Queued commands fail with ErrRunnerStopped.
func (r *EngineRunner) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
		if r.started.Load() {
			<-r.done
		} else {
			close(r.done)
		}
		r.log.Info("engine runner stopped")
	})
}

func (r *EngineRunner) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			return
		case cmd := <-r.mailbox:
			svcmetrics.MailboxDepth.Set(float64(len(r.mailbox)))
			res := r.exec(cmd)
			snap := r.engine.Snapshot()
			r.snapshot.Store(&snap)
			cmd.reply <- res
		}
	}
}

func (r *EngineRunner) exec(cmd command) (res commandResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = commandResult{err: fmt.Errorf("engine command %s panicked: %v", cmd.name, p)}
			svcmetrics.CommandErrors.WithLabelValues(cmd.name, "panic").Inc()
			r.log.Error("engine command panicked", logger.String("command", cmd.name), logger.Any("panic", p))
		}
		svcmetrics.CommandLatency.WithLabelValues(cmd.name).Observe(time.Since(start).Seconds())
	}()
	if err := cmd.ctx.Err(); err != nil {
		svcmetrics.CommandErrors.WithLabelValues(cmd.name, "canceled").Inc()
		return commandResult{err: err}
	}
	v, err := cmd.fn(cmd.ctx, r.engine)
	if err != nil {
		svcmetrics.CommandErrors.WithLabelValues(cmd.name, "error").Inc()
	}
	return commandResult{val: v, err: err}
}

// call submits fn to the runner and waits for its typed reply.
func call[T any](ctx context.Context, r *EngineRunner, name string, fn func(ctx context.Context, e *fusion.Engine) (T, error)) (T, error) {
	var zero T
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	cmd := command{
		name: name,
		ctx:  ctx,
		fn: func(ctx context.Context, e *fusion.Engine) (interface{}, error) {
			return fn(ctx, e)
		},
		reply: make(chan commandResult, 1),
	}

	select {
	case <-r.quit:
		return zero, ErrRunnerStopped
	default:
	}
	select {
	case r.mailbox <- cmd:
	case <-r.quit:
		return zero, ErrRunnerStopped
	case <-ctx.Done():
		return zero, fmt.Errorf("%s: %w", name, ctx.Err())
	}

	select {
	case res := <-cmd.reply:
		if res.err != nil {
			return zero, res.err
		}
		v, _ := res.val.(T)
		return v, nil
	case <-r.done:
		return zero, ErrRunnerStopped
	case <-ctx.Done():
		return zero, fmt.Errorf("%s: %w", name, ctx.Err())
	}
}

// Snapshot returns the state published after the last command. Never nil.
func (r *EngineRunner) Snapshot() *models.EngineSnapshot { return r.snapshot.Load() }

func (r *EngineRunner) ProcessMarketSignal(ctx context.Context, f models.MarketFeatures) (fusion.ProcessResult, error) {
	return call(ctx, r, "process_market_signal", func(ctx context.Context, e *fusion.Engine) (fusion.ProcessResult, error) {
		return e.ProcessMarketSignal(ctx, f), nil
	})
}

func (r *EngineRunner) IngestSignatures(ctx context.Context, sigs []models.DomainSignature, now time.Time) (fusion.ProcessResult, error) {
	return call(ctx, r, "ingest_signatures", func(_ context.Context, e *fusion.Engine) (fusion.ProcessResult, error) {
		return e.IngestSignatures(sigs, now), nil
	})
}

func (r *EngineRunner) Predict(ctx context.Context, symbol, horizon string) (models.PredictionEnvelope, error) {
	return call(ctx, r, "predict", func(_ context.Context, e *fusion.Engine) (models.PredictionEnvelope, error) {
		return e.GenerateUnifiedPrediction(symbol, horizon), nil
	})
}

// RecordOutcome resolves a prediction still held in the engine history.
func (r *EngineRunner) RecordOutcome(ctx context.Context, id string, actual models.Direction, magnitude float64) (fusion.OutcomeResult, error) {
	return call(ctx, r, "record_outcome", func(_ context.Context, e *fusion.Engine) (fusion.OutcomeResult, error) {
		return e.RecordOutcomeByID(id, actual, magnitude)
	})
}

// RecordEnvelopeOutcome resolves a prediction supplied by the caller, e.g. one
// recovered from the snapshot cache after it aged out of history.
func (r *EngineRunner) RecordEnvelopeOutcome(ctx context.Context, env models.PredictionEnvelope, actual models.Direction, magnitude float64) (fusion.OutcomeResult, error) {
	return call(ctx, r, "record_outcome", func(_ context.Context, e *fusion.Engine) (fusion.OutcomeResult, error) {
		return e.RecordPredictionOutcome(env, actual, magnitude)
	})
}

func (r *EngineRunner) History(ctx context.Context, limit int) ([]models.PredictionEnvelope, error) {
	return call(ctx, r, "history", func(_ context.Context, e *fusion.Engine) ([]models.PredictionEnvelope, error) {
		return e.History(limit), nil
	})
}

func (r *EngineRunner) FindPrediction(ctx context.Context, id string) (models.PredictionEnvelope, error) {
	return call(ctx, r, "find_prediction", func(_ context.Context, e *fusion.Engine) (models.PredictionEnvelope, error) {
		env, ok := e.FindPrediction(id)
		if !ok {
			return models.PredictionEnvelope{}, fmt.Errorf("find prediction %s: %w", id, fusion.ErrPredictionNotFound)
		}
		return env, nil
	})
}

func (r *EngineRunner) ConvergenceEvents(ctx context.Context) ([]models.ConvergenceEvent, error) {
	return call(ctx, r, "convergence_events", func(_ context.Context, e *fusion.Engine) ([]models.ConvergenceEvent, error) {
		return e.ConvergenceEvents(), nil
	})
}
