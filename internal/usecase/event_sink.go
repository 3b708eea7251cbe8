package usecase

import (
	"SignalFuse/internal/domain/models"
	drepo "SignalFuse/internal/domain/repository"
	domsvc "SignalFuse/internal/domain/service"
	"SignalFuse/pkg/logger"
)

// EventRecorder translates engine events into metrics and log lines.
// It runs on the engine goroutine and must not block.
type EventRecorder struct {
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewEventRecorder(metrics drepo.Metrics, log *logger.Logger) *EventRecorder {
	if log == nil {
		log = logger.NewNop()
	}
	return &EventRecorder{metrics: metrics, log: log}
}

var _ domsvc.EventSink = (*EventRecorder)(nil)

func (r *EventRecorder) Emit(ev models.EngineEvent) {
	switch ev.Kind {
	case models.EventSignatureIngested:
		r.log.Debug("signature ingested", logger.String("domain", string(ev.Domain)), logger.Float64("momentum", ev.Value))
	case models.EventAdapterFailed:
		r.record(func(m drepo.Metrics) { m.RecordAdapterFailure(string(ev.Domain)) })
		r.log.Warn("adapter failed", logger.String("domain", string(ev.Domain)), logger.String("symbol", ev.Symbol), logger.String("reason", ev.Label))
	case models.EventConvergenceDetected:
		r.record(func(m drepo.Metrics) { m.RecordConvergence(string(ev.Direction)) })
		r.log.Info("convergence detected",
			logger.String("id", ev.RefID),
			logger.String("direction", string(ev.Direction)),
			logger.Int("aligned", ev.Count),
			logger.Float64("improbability", ev.Value))
	case models.EventPhaseLockDetected:
		r.record(func(m drepo.Metrics) { m.RecordPhaseLock(ev.Label) })
		r.log.Info("phase lock detected", logger.String("id", ev.RefID), logger.String("implication", ev.Label), logger.Float64("coherence", ev.Value))
	case models.EventPredictionGenerated:
		r.record(func(m drepo.Metrics) {
			m.RecordPrediction(ev.Symbol, string(ev.Direction), ev.Value)
			m.RecordActiveDomains(ev.Count)
		})
		r.log.Debug("prediction generated",
			logger.String("id", ev.RefID),
			logger.String("symbol", ev.Symbol),
			logger.String("direction", string(ev.Direction)),
			logger.Float64("confidence", ev.Value))
	case models.EventOutcomeRecorded:
		r.record(func(m drepo.Metrics) { m.RecordOutcome(ev.Label == "hit") })
		r.log.Info("outcome recorded", logger.String("id", ev.RefID), logger.String("actual", string(ev.Direction)), logger.String("result", ev.Label))
	case models.EventDomainAccuracy:
		r.record(func(m drepo.Metrics) { m.RecordDomainAccuracy(string(ev.Domain), ev.Value) })
	case models.EventCalibrationReached:
		r.log.Info("engine calibrated", logger.Int("resolved_events", ev.Count))
	case models.EventNoiseAnomaly:
		r.record(func(m drepo.Metrics) { m.RecordNoiseAnomaly(ev.Label) })
		r.log.Warn("noise anomaly", logger.String("type", ev.Label), logger.Float64("magnitude", ev.Value))
	default:
		r.log.Debug("engine event", logger.String("kind", string(ev.Kind)))
	}
}

func (r *EventRecorder) record(fn func(drepo.Metrics)) {
	if r.metrics != nil {
		fn(r.metrics)
	}
}
