package fusion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
	"SignalFuse/internal/services/calibration"
	"SignalFuse/internal/services/convergence"
	"SignalFuse/internal/services/correlation"
	"SignalFuse/internal/services/modifiers"
	"SignalFuse/internal/services/phase"
	"SignalFuse/internal/services/signature"
)

var (
	ErrPredictionNotFound = errors.New("prediction not found")
	ErrInvalidDirection   = errors.New("invalid direction")
	ErrAlreadyResolved    = errors.New("prediction already resolved")
)

// Engine is the single-owner fusion core. It is not safe for concurrent use;
// wrap it in a runner to share it across goroutines.
type Engine struct {
	cfg      Config
	adapters []domsvc.DomainSignalAdapter
	buffers  map[models.Domain][]models.DomainSignal
	sink     domsvc.EventSink
	clock    func() time.Time

	registry    *signature.Registry
	matrix      *correlation.MatrixBuilder
	convergence *convergence.Tracker
	phase       *phase.Detector
	calibration *calibration.Tracker
	modifiers   *modifiers.Set

	accuracy         map[models.Domain]float64
	history          []models.PredictionEnvelope
	outcomes         []bool
	learningVelocity float64
	generation       int
	isCalibrated     bool
	resolved         map[string]struct{}
	resolvedOrder    []string

	lastTick        models.TickContext
	lastConvergence *models.ConvergenceEvent
	lastPhase       models.PhaseState
	lastAnomalySeq  int
}

type Option func(*Engine)

func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg.withDefaults() }
}

// WithAdapters registers domain adapters fanned out on every tick.
func WithAdapters(adapters ...domsvc.DomainSignalAdapter) Option {
	return func(e *Engine) { e.adapters = append(e.adapters, adapters...) }
}

func WithEventSink(sink domsvc.EventSink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithPhaseDetector replaces the default cycle set.
func WithPhaseDetector(d *phase.Detector) Option {
	return func(e *Engine) {
		if d != nil {
			e.phase = d
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		cfg:      DefaultConfig(),
		buffers:  make(map[models.Domain][]models.DomainSignal),
		sink:     domsvc.EventSinkFunc(func(models.EngineEvent) {}),
		clock:    time.Now,
		accuracy: make(map[models.Domain]float64),
		resolved: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	e.registry = signature.NewRegistry()
	e.matrix = correlation.NewMatrixBuilder(correlation.WithWindow(e.cfg.CorrelationWindow))
	e.convergence = convergence.NewTracker(e.cfg.Convergence)
	e.calibration = calibration.NewTracker(e.cfg.Calibration)
	if e.phase == nil {
		e.phase = phase.NewDetector(phase.WithConfig(e.cfg.Phase))
	}
	e.modifiers = modifiers.NewSet()
	return e
}

func (e *Engine) emit(ev models.EngineEvent) {
	if ev.At.IsZero() {
		ev.At = e.clock()
	}
	e.sink.Emit(ev)
}

// Initialize prepares every adapter. Adapters that fail are dropped and reported.
func (e *Engine) Initialize(ctx context.Context) int {
	kept := e.adapters[:0]
	for _, a := range e.adapters {
		if err := safeCall(func() error { return a.Initialize(ctx) }); err != nil {
			e.emit(models.EngineEvent{Kind: models.EventAdapterFailed, Domain: a.Domain(), Label: err.Error()})
			continue
		}
		kept = append(kept, a)
	}
	e.adapters = kept
	return len(kept)
}

// ProcessResult reports what one tick changed.
type ProcessResult struct {
	Ingested    int
	Failed      int
	Convergence *models.ConvergenceEvent
	PhaseLock   *models.PhaseLockEvent
}

// ProcessMarketSignal fans features out to every adapter and folds the resulting
// signatures into the engine. Adapter failures are reported as events.
func (e *Engine) ProcessMarketSignal(ctx context.Context, f models.MarketFeatures) ProcessResult {
	now := f.Timestamp
	if now.IsZero() {
		now = e.clock()
	}
	var sigs []models.DomainSignature
	failed := 0
	for _, a := range e.adapters {
		if ctx.Err() != nil {
			break
		}
		sig, err := e.runAdapter(ctx, a, f)
		if err != nil {
			failed++
			e.emit(models.EngineEvent{Kind: models.EventAdapterFailed, At: now, Symbol: f.Symbol, Domain: a.Domain(), Label: err.Error()})
			continue
		}
		sigs = append(sigs, sig)
	}
	res := e.ingest(sigs, f, now)
	res.Failed = failed
	return res
}

func (e *Engine) runAdapter(ctx context.Context, a domsvc.DomainSignalAdapter, f models.MarketFeatures) (models.DomainSignature, error) {
	var sig models.DomainSignature
	err := safeCall(func() error {
		s, err := a.ProcessRawData(ctx, f)
		if err != nil {
			return fmt.Errorf("process raw data: %w", err)
		}
		d := a.Domain()
		buf := append(e.buffers[d], s)
		if len(buf) > e.cfg.SignalBuffer {
			buf = buf[len(buf)-e.cfg.SignalBuffer:]
		}
		e.buffers[d] = buf
		sig, err = a.ExtractSignature(ctx, append([]models.DomainSignal(nil), buf...))
		if err != nil {
			return fmt.Errorf("extract signature: %w", err)
		}
		if sig.Domain == "" {
			sig.Domain = d
		}
		if sig.ExtractedAt.IsZero() {
			sig.ExtractedAt = f.Timestamp
		}
		return nil
	})
	return sig, err
}

// safeCall converts a panic in adapter code into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return fn()
}

// IngestSignatures folds externally produced signatures into the engine.
// The last seen market features are reused for the tick context.
func (e *Engine) IngestSignatures(sigs []models.DomainSignature, now time.Time) ProcessResult {
	if now.IsZero() {
		now = e.clock()
	}
	f := models.MarketFeatures{Symbol: e.lastTick.Symbol, Timestamp: now}
	return e.ingest(sigs, f, now)
}

func (e *Engine) ingest(sigs []models.DomainSignature, f models.MarketFeatures, now time.Time) ProcessResult {
	res := ProcessResult{}
	for _, s := range sigs {
		if n, ok := e.registry.Ingest(s); ok {
			res.Ingested++
			e.emit(models.EngineEvent{Kind: models.EventSignatureIngested, At: now, Symbol: f.Symbol, Domain: n.Domain, Value: n.Momentum})
		}
	}
	all := e.registry.All()
	e.matrix.Update(all, now)

	e.lastConvergence = nil
	if ev, ok := e.convergence.Detect(all, now); ok {
		e.lastConvergence = &ev
		res.Convergence = &ev
		e.emit(models.EngineEvent{
			Kind: models.EventConvergenceDetected, At: now, Symbol: f.Symbol, Direction: ev.Direction,
			Value: ev.StatisticalImprobability, Count: ev.AlignmentCount, RefID: ev.ID,
		})
	}

	st, created := e.phase.Detect(now)
	e.lastPhase = st
	if created && st.Lock != nil {
		res.PhaseLock = st.Lock
		e.emit(models.EngineEvent{
			Kind: models.EventPhaseLockDetected, At: now, Value: st.Coherence,
			Count: len(st.Lock.Cycles), RefID: st.Lock.ID, Label: st.Lock.Implication,
		})
	}

	pattern, fundamental := e.signals(all, f)
	e.lastTick = models.TickContext{
		Symbol:            f.Symbol,
		Timestamp:         now,
		Price:             f.Price,
		Volume:            f.Volume,
		Features:          copyFeatures(f.Values),
		Signatures:        all,
		PatternSignal:     pattern,
		FundamentalSignal: fundamental,
	}
	e.modifiers.Update(e.lastTick)

	for _, a := range e.modifiers.Noise.AnomaliesSince(e.lastAnomalySeq) {
		e.lastAnomalySeq = a.Seq
		e.emit(models.EngineEvent{Kind: models.EventNoiseAnomaly, At: now, Symbol: f.Symbol, Value: a.Magnitude, Label: string(a.Type)})
	}
	return res
}

// signals derives the pattern signal from quadrant balance and the fundamental
// signal from the "fundamental" feature, falling back to intensity-weighted momentum.
func (e *Engine) signals(sigs map[models.Domain]models.DomainSignature, f models.MarketFeatures) (float64, float64) {
	if len(sigs) == 0 {
		return 0, signature.Clamp(f.Value("fundamental", 0), -1, 1)
	}
	var p, m, w float64
	for _, s := range sigs {
		p += s.QuadrantProfile.Aggressive - s.QuadrantProfile.Defensive
		m += s.Momentum * s.Intensity
		w += s.Intensity
	}
	pattern := signature.Clamp(p/float64(len(sigs)), -1, 1)
	if v, ok := f.Values["fundamental"]; ok && !math.IsNaN(v) {
		return pattern, signature.Clamp(v, -1, 1)
	}
	if w <= 0 {
		return pattern, 0
	}
	return pattern, signature.Clamp(m/w, -1, 1)
}

func copyFeatures(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (e *Engine) accuracyOf(d models.Domain) float64 {
	if v, ok := e.accuracy[d]; ok {
		return v
	}
	return e.cfg.DefaultAccuracy
}

// Matrix exposes the correlation builder for read-only queries.
func (e *Engine) Matrix() *correlation.MatrixBuilder { return e.matrix }

// Modifiers exposes the modifier set for read-only queries.
func (e *Engine) Modifiers() *modifiers.Set { return e.modifiers }

func (e *Engine) ConvergenceEvents() []models.ConvergenceEvent { return e.convergence.Events() }

func (e *Engine) CalibrationAdvice() models.CalibrationAdvice { return e.calibration.Advice() }

func (e *Engine) IsCalibrated() bool { return e.isCalibrated }
