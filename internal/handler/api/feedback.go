package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"SignalRelay/internal/domain/models"
	xhttp "SignalRelay/pkg/http"
	xlogger "SignalRelay/pkg/logger"
)

type FeedbackReporter interface {
	Report(ctx context.Context, fb models.TradeFeedback) error
}

// FeedbackHandler accepts execution reports from trading clients. The
// caller authenticates with the same token it uses for the relay socket.
type FeedbackHandler struct {
	logger   *xlogger.Logger
	tokens   TokenVerifier
	feedback FeedbackReporter
}

func NewFeedbackHandler(logger *xlogger.Logger, tokens TokenVerifier, feedback FeedbackReporter) *FeedbackHandler {
	return &FeedbackHandler{logger: logger, tokens: tokens, feedback: feedback}
}

func (h *FeedbackHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/trade-feedback", h.Report)
}

func (h *FeedbackHandler) Report(c echo.Context) error {
	subject, err := h.tokens.Verify(bearerToken(c))
	if err != nil {
		return xhttp.AppErrorResponse(c, AppErrorFromDomain(err))
	}
	req := &models.TradeFeedback{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.SubscriberID != subject {
		return xhttp.AppErrorResponse(c, xhttp.ForbiddenError("token does not match subscriber"))
	}
	if err := h.feedback.Report(c.Request().Context(), *req); err != nil {
		h.logger.Warn("trade feedback not delivered", xlogger.Int64("subscriber_id", req.SubscriberID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, AppErrorFromDomain(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "feedback received"})
}
