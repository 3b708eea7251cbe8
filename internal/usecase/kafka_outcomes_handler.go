package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"SignalFuse/internal/domain/models"
	domrepo "SignalFuse/internal/domain/repository"
	"SignalFuse/internal/services/fusion"
	xhttp "SignalFuse/pkg/http"
	pkgkafka "SignalFuse/pkg/kafka"
	"SignalFuse/pkg/logger"
)

// KafkaOutcomesHandler resolves predictions from ground-truth messages.
type KafkaOutcomesHandler struct {
	topic       string
	predictions *PredictionService
	metrics     domrepo.Metrics
	log         *logger.Logger
}

func NewKafkaOutcomesHandler(topic string, predictions *PredictionService, metrics domrepo.Metrics, log *logger.Logger) *KafkaOutcomesHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &KafkaOutcomesHandler{topic: topic, predictions: predictions, metrics: metrics, log: log}
}

func (h *KafkaOutcomesHandler) Topic() string { return h.topic }

// Handle returns an error only for transient failures. Malformed outcomes, unknown
// predictions and redelivered outcomes are dropped so they are not retried forever.
func (h *KafkaOutcomesHandler) Handle(ctx context.Context, b []byte) error {
	var out models.Outcome
	if err := json.Unmarshal(b, &out); err != nil {
		h.metrics.RecordError("outcome_unmarshal")
		return fmt.Errorf("decode outcome: %w", err)
	}
	if err := xhttp.ValidateStruct(ctx, &out); err != nil {
		h.metrics.RecordError("outcome_invalid")
		h.log.Warn("invalid outcome dropped", logger.String("prediction_id", out.PredictionID), logger.Error(err))
		return nil
	}
	_, err := h.predictions.RecordOutcome(ctx, out)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fusion.ErrAlreadyResolved):
		h.log.Debug("duplicate outcome dropped", logger.String("prediction_id", out.PredictionID))
		return nil
	case errors.Is(err, fusion.ErrPredictionNotFound), errors.Is(err, fusion.ErrInvalidDirection):
		h.log.Warn("outcome dropped", logger.String("prediction_id", out.PredictionID), logger.Error(err))
		return nil
	default:
		return fmt.Errorf("record outcome %s: %w", out.PredictionID, err)
	}
}

var _ pkgkafka.MessageHandler = (*KafkaOutcomesHandler)(nil)
