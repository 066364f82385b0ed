package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/service/ipaymu"
	xhttp "SignalRelay/pkg/http"
	xlogger "SignalRelay/pkg/logger"
)

const (
	headerCallbackToken = "X-Callback-Token"
	headerSignature     = "X-Signature"
	maxCallbackBody     = 64 << 10
	confirmTimeout      = 30 * time.Second
)

type PaymentConfirmer interface {
	ConfirmPaid(ctx context.Context, referenceID, externalTxID string) (models.ConfirmResult, error)
}

type CallbackVerifier interface {
	Verify(token, signature string, body []byte) error
}

// PaymentsHandler receives gateway callbacks. Only authentication failures
// are reported back; everything else is acknowledged and logged so the
// gateway does not keep retrying.
type PaymentsHandler struct {
	logger   *xlogger.Logger
	verifier CallbackVerifier
	billing  PaymentConfirmer
}

func NewPaymentsHandler(logger *xlogger.Logger, verifier CallbackVerifier, billing PaymentConfirmer) *PaymentsHandler {
	return &PaymentsHandler{logger: logger.With(xlogger.String("handler", "payments")), verifier: verifier, billing: billing}
}

func (h *PaymentsHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/ipaymu", h.IPaymuCallback)
}

func (h *PaymentsHandler) IPaymuCallback(c echo.Context) error {
	req := c.Request()
	body, err := io.ReadAll(io.LimitReader(req.Body, maxCallbackBody))
	if err != nil {
		h.logger.Warn("read callback body", xlogger.Error(err))
		return ack(c)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	token := req.Header.Get(headerCallbackToken)
	if token == "" {
		token = c.QueryParam("token")
	}
	if err := h.verifier.Verify(token, req.Header.Get(headerSignature), body); err != nil {
		h.logger.Warn("payment callback rejected", xlogger.String("remote_ip", c.RealIP()))
		return xhttp.AppErrorResponse(c, AppErrorFromDomain(err))
	}

	var n models.PaymentNotification
	if err := c.Bind(&n); err != nil {
		h.logger.Warn("malformed payment callback", xlogger.Error(err))
		return ack(c)
	}
	if err := xhttp.ValidateStruct(req.Context(), &n); err != nil {
		h.logger.Warn("incomplete payment callback", xlogger.Error(err))
		return ack(c)
	}
	if !ipaymu.IsPaid(n.Status) {
		h.logger.Info("payment callback ignored", xlogger.String("status", n.Status), xlogger.String("reference_id", n.ReferenceID))
		return ack(c)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), confirmTimeout)
	defer cancel()
	res, err := h.billing.ConfirmPaid(ctx, n.ReferenceID, n.ExternalTxID)
	switch {
	case errors.Is(err, models.ErrStaleTransition):
		h.logger.Warn("late payment for closed invoice", xlogger.String("reference_id", n.ReferenceID), xlogger.Error(err))
	case err != nil:
		h.logger.Error("payment confirmation failed", xlogger.String("reference_id", n.ReferenceID), xlogger.Error(err))
	case res.AlreadyProcessed:
		h.logger.Info("duplicate payment callback", xlogger.String("reference_id", n.ReferenceID))
	}
	return ack(c)
}

func ack(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "callback received"})
}
