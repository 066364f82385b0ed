package api

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/usecase"
	xhttp "SignalRelay/pkg/http"
	xlogger "SignalRelay/pkg/logger"
)

const headerInternalToken = "X-Internal-Token"

type ingestRequest struct {
	Source  string             `json:"source" default:"scraper" validate:"max=64"`
	Signals []models.RawSignal `json:"signals" validate:"required,min=1"`
}

type snapshotRequest struct {
	Source  string             `json:"source" default:"scraper" validate:"max=64"`
	Signals []models.RawSignal `json:"signals"`
}

// SignalsHandler acknowledges signal batches immediately and leaves
// storage and fan-out to the queue workers.
type SignalsHandler struct {
	logger *xlogger.Logger
	queue  usecase.Enqueuer
	token  string
}

func NewSignalsHandler(logger *xlogger.Logger, queue usecase.Enqueuer, token string) *SignalsHandler {
	return &SignalsHandler{logger: logger, queue: queue, token: token}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/signals", h.requireToken)
	g.POST("", h.Ingest)
	g.POST("/snapshot", h.Snapshot)
}

// requireToken rejects everything when no token is configured.
func (h *SignalsHandler) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		got := c.Request().Header.Get(headerInternalToken)
		if h.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			return xhttp.AppErrorResponse(c, xhttp.UnauthorizedError("invalid internal token"))
		}
		return next(c)
	}
}

func (h *SignalsHandler) Ingest(c echo.Context) error {
	req := &ingestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.enqueue(c, usecase.JobSignalIngest, req.Source, req.Signals)
}

func (h *SignalsHandler) Snapshot(c echo.Context) error {
	req := &snapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.enqueue(c, usecase.JobSignalSnapshot, req.Source, req.Signals)
}

func (h *SignalsHandler) enqueue(c echo.Context, job, source string, signals []models.RawSignal) error {
	batch := usecase.SignalBatch{Source: source, Signals: signals}
	if err := h.queue.Enqueue(c.Request().Context(), job, batch); err != nil {
		h.logger.Error("enqueue signals", xlogger.Error(err), xlogger.String("job", job))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.AcceptedResponse(c, map[string]interface{}{
		"status":   "queued",
		"job":      job,
		"received": len(signals),
	})
}
