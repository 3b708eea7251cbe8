package adapters

import (
	"context"
	"fmt"
	"strings"

	"SignalFuse/internal/domain/models"
	domsvc "SignalFuse/internal/domain/service"
	"SignalFuse/internal/services/signature"
	"SignalFuse/pkg/config"
	xhttp "SignalFuse/pkg/http"
	"SignalFuse/pkg/logger"
)

// HTTPAdapter delegates a domain to a remote producer exposing
// GET /health, POST /signals and POST /signature.
type HTTPAdapter struct {
	domain   models.Domain
	base     *HTTPServiceBase
	attempts int
	log      *logger.Logger
}

type signalsRequest struct {
	Domain   models.Domain         `json:"domain"`
	Features models.MarketFeatures `json:"features"`
}

type signatureRequest struct {
	Domain  models.Domain         `json:"domain"`
	Signals []models.DomainSignal `json:"signals"`
}

func NewHTTPAdapter(domain models.Domain, base *HTTPServiceBase, attempts int, log *logger.Logger) *HTTPAdapter {
	if attempts <= 0 {
		attempts = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &HTTPAdapter{domain: domain, base: base, attempts: attempts, log: log}
}

// NewHTTPAdapterFromConfig builds an adapter for one configured remote producer.
func NewHTTPAdapterFromConfig(rc config.RemoteAdapter, log *logger.Logger) *HTTPAdapter {
	base := NewHTTPServiceBase(strings.TrimRight(rc.URL, "/"), rc.Timeout, WithRateLimit(rc.RPS, rc.Burst))
	return NewHTTPAdapter(models.Domain(rc.Domain), base, rc.Retries, log)
}

var _ domsvc.DomainSignalAdapter = (*HTTPAdapter)(nil)

func (a *HTTPAdapter) Domain() models.Domain { return a.domain }

// Initialize checks the producer's health endpoint.
func (a *HTTPAdapter) Initialize(ctx context.Context) error {
	if err := a.base.Do(ctx, xhttp.MethodGet, "/health", nil, nil); err != nil {
		return fmt.Errorf("remote adapter %s health: %w", a.domain, err)
	}
	a.log.Info("remote adapter ready", logger.String("domain", string(a.domain)), logger.String("url", a.base.baseURL))
	return nil
}

func (a *HTTPAdapter) ProcessRawData(ctx context.Context, f models.MarketFeatures) (models.DomainSignal, error) {
	var sig models.DomainSignal
	if err := a.base.PostJSONWithRetry(ctx, "/signals", signalsRequest{Domain: a.domain, Features: f}, &sig, a.attempts); err != nil {
		a.log.Warn("remote signal failed", logger.String("domain", string(a.domain)), logger.Error(err))
		return models.DomainSignal{}, err
	}
	sig.Domain = a.domain
	if sig.Timestamp.IsZero() {
		sig.Timestamp = f.Timestamp
	}
	return sig, nil
}

func (a *HTTPAdapter) ExtractSignature(ctx context.Context, signals []models.DomainSignal) (models.DomainSignature, error) {
	if len(signals) == 0 {
		return models.DomainSignature{}, ErrNoSignals
	}
	var sig models.DomainSignature
	if err := a.base.PostJSONWithRetry(ctx, "/signature", signatureRequest{Domain: a.domain, Signals: signals}, &sig, a.attempts); err != nil {
		return models.DomainSignature{}, err
	}
	sig.Domain = a.domain
	if sig.ExtractedAt.IsZero() {
		sig.ExtractedAt = signals[len(signals)-1].Timestamp
	}
	return signature.Normalize(sig), nil
}

// FromConfig returns the projection adapters (when enabled) followed by every enabled remote adapter.
func FromConfig(cfg *config.Config, log *logger.Logger) []domsvc.DomainSignalAdapter {
	var out []domsvc.DomainSignalAdapter
	if cfg.Adapters.Projection {
		out = append(out, DefaultAdapters()...)
	}
	for _, rc := range cfg.Adapters.Remote {
		if rc.Disabled {
			continue
		}
		out = append(out, NewHTTPAdapterFromConfig(rc, log))
	}
	return out
}
