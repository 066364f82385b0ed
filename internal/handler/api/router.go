package api

import (
	"github.com/labstack/echo/v4"

	xhttp "SignalRelay/pkg/http"
)

// Router mounts every route group on one echo instance.
type Router struct {
	handlers []xhttp.Handler
}

func NewRouter(
	signals *SignalsHandler,
	payments *PaymentsHandler,
	relay *RelayHandler,
	feedback *FeedbackHandler,
	health *HealthHandler,
) *Router {
	return &Router{handlers: []xhttp.Handler{signals, payments, relay, feedback, health}}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	for _, h := range r.handlers {
		h.RegisterRoutes(e)
	}
}
