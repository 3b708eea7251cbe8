package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"SignalFuse/internal/domain/models"
	domrepo "SignalFuse/internal/domain/repository"
	pkgkafka "SignalFuse/pkg/kafka"
	xutil "SignalFuse/pkg/util"
)

// tickMessage accepts both feature ticks and raw trades. Raw trades carry no
// values and are routed through the feature window.
type tickMessage struct {
	models.MarketFeatures
	T json.RawMessage `json:"t"`
	C float64         `json:"c"`
	V float64         `json:"v"`
}

// KafkaTicksHandler feeds market ticks from Kafka into the engine.
type KafkaTicksHandler struct {
	topic   string
	proc    *TradeProcessor
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, proc *TradeProcessor, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m tickMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode tick: %w", err)
	}
	if m.Symbol == "" {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("decode tick: symbol empty")
	}
	f := m.MarketFeatures
	if f.Timestamp.IsZero() && len(m.T) > 0 {
		// unix seconds, unix millis or an RFC3339 string
		if ts, ok := xutil.ParseTime(strings.Trim(string(m.T), `"`)); ok {
			f.Timestamp = ts
		}
	}
	if f.Price == 0 {
		f.Price = m.C
	}
	if f.Volume == 0 {
		f.Volume = m.V
	}
	if !f.Timestamp.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(f.Timestamp).Seconds())
	}

	if len(f.Values) == 0 {
		if f.Timestamp.IsZero() {
			f.Timestamp = time.Now().UTC()
		}
		return h.proc.Process(ctx, &models.Trade{Symbol: f.Symbol, Price: f.Price, Volume: f.Volume, Timestamp: f.Timestamp})
	}
	return h.proc.ProcessFeatures(ctx, f, time.Now())
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
