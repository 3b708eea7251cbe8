package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	models "SignalFuse/internal/domain/models"
	svcmetrics "SignalFuse/internal/service/metrics"
	"SignalFuse/internal/service/ratelimit"
	"SignalFuse/internal/services/fusion"
	"SignalFuse/internal/usecase"
	xhttp "SignalFuse/pkg/http"
	xlogger "SignalFuse/pkg/logger"
)

// HealthCheck reports the health of one dependency.
type HealthCheck func(ctx context.Context) error

// RateLimit is a per-client token bucket.
type RateLimit struct {
	Capacity     float64
	RefillPerSec float64
}

// FusionEchoHandler exposes the fusion engine over HTTP.
type FusionEchoHandler struct {
	logger  *xlogger.Logger
	svc     *usecase.PredictionService
	proc    *usecase.TradeProcessor
	limiter *ratelimit.Limiter
	rl      RateLimit
	checks  map[string]HealthCheck
}

type HandlerOption func(*FusionEchoHandler)

// WithRateLimit enables per-client throttling of /api routes.
func WithRateLimit(l *ratelimit.Limiter, rl RateLimit) HandlerOption {
	return func(h *FusionEchoHandler) {
		h.limiter = l
		h.rl = rl
	}
}

func WithHealthCheck(name string, fn HealthCheck) HandlerOption {
	return func(h *FusionEchoHandler) {
		if fn != nil {
			h.checks[name] = fn
		}
	}
}

func NewFusionEchoHandler(logger *xlogger.Logger, svc *usecase.PredictionService, proc *usecase.TradeProcessor, opts ...HandlerOption) *FusionEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	h := &FusionEchoHandler{logger: logger, svc: svc, proc: proc, checks: map[string]HealthCheck{}}
	for _, o := range opts {
		o(h)
	}
	svcmetrics.Register()
	return h
}

var _ xhttp.Handler = (*FusionEchoHandler)(nil)

func (h *FusionEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api", h.throttle)
	g.GET("/predictions", h.observe("predictions", h.Predict))
	g.GET("/predictions/history", h.observe("history", h.History))
	g.POST("/outcomes", h.observe("outcomes", h.Outcome))
	g.POST("/ticks", h.observe("ticks", h.Tick))
	g.POST("/signatures", h.observe("signatures", h.Signatures))
	g.GET("/state", h.observe("state", h.State))
	g.GET("/calibration", h.observe("calibration", h.Calibration))
	g.GET("/convergence", h.observe("convergence", h.Convergence))
}

func (h *FusionEchoHandler) throttle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter != nil && h.rl.Capacity > 0 && !h.limiter.Allow("api:"+c.RealIP(), h.rl.Capacity, h.rl.RefillPerSec) {
			svcmetrics.APIErrors.WithLabelValues("rate_limited").Inc()
			return xhttp.TooManyRequestsResponse(c)
		}
		return next(c)
	}
}

func (h *FusionEchoHandler) observe(name string, fn echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := fn(c)
		svcmetrics.APILatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil || c.Response().Status >= http.StatusBadRequest {
			svcmetrics.APIErrors.WithLabelValues(name).Inc()
		}
		return err
	}
}

// fail maps usecase errors onto API responses.
func (h *FusionEchoHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, fusion.ErrPredictionNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("prediction not found").WithError(err))
	case errors.Is(err, fusion.ErrAlreadyResolved):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("outcome already recorded").WithError(err))
	case errors.Is(err, fusion.ErrInvalidDirection):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid direction").WithError(err))
	case errors.Is(err, usecase.ErrRunnerStopped), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn(op+" unavailable", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("engine unavailable").WithError(err))
	default:
		h.logger.Error(op+" usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}

func (h *FusionEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	env, err := h.svc.Predict(c.Request().Context(), req.Symbol, req.Horizon)
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, env)
}

func (h *FusionEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.svc.History(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *FusionEchoHandler) Outcome(c echo.Context) error {
	req := &models.OutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.RecordOutcome(c.Request().Context(), req.Outcome())
	if err != nil {
		return h.fail(c, "outcome", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FusionEchoHandler) Tick(c echo.Context) error {
	req := &models.TickRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	f := req.Features()
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now().UTC()
	}
	ctx := c.Request().Context()
	var err error
	if len(f.Values) == 0 {
		err = h.proc.Process(ctx, &models.Trade{Symbol: f.Symbol, Price: f.Price, Volume: f.Volume, Timestamp: f.Timestamp})
	} else {
		err = h.proc.ProcessFeatures(ctx, f, time.Now())
	}
	if err != nil {
		return h.fail(c, "tick", err)
	}
	return xhttp.AcceptedResponse(c, h.svc.Runner().Snapshot().Domains)
}

func (h *FusionEchoHandler) Signatures(c echo.Context) error {
	req := &models.SignaturesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	for _, s := range req.Signatures {
		if s.Domain == "" {
			return xhttp.AppErrorResponse(c, xhttp.RequiredError("domain"))
		}
	}
	res, err := h.svc.Runner().IngestSignatures(c.Request().Context(), req.Signatures, req.Timestamp)
	if err != nil {
		return h.fail(c, "signatures", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FusionEchoHandler) State(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, h.svc.Runner().Snapshot())
}

func (h *FusionEchoHandler) Calibration(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.svc.Runner().Snapshot().Calibration)
}

func (h *FusionEchoHandler) Convergence(c echo.Context) error {
	events, err := h.svc.Runner().ConvergenceEvents(c.Request().Context())
	if err != nil {
		return h.fail(c, "convergence", err)
	}
	return xhttp.SuccessResponse(c, models.ConvergenceView{
		Stats:  h.svc.Runner().Snapshot().Convergence,
		Events: events,
	})
}

func (h *FusionEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	snap := h.svc.Runner().Snapshot()
	body := map[string]interface{}{
		"status":     "ok",
		"domains":    snap.Domains,
		"calibrated": snap.IsCalibrated,
		"checks":     status,
	}
	if !healthy {
		body["status"] = "degraded"
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, body)
	}
	return xhttp.SuccessResponse(c, body)
}
