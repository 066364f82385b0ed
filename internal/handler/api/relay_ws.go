package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"SignalRelay/internal/service/relay"
	xhttp "SignalRelay/pkg/http"
	xlogger "SignalRelay/pkg/logger"
)

const maxInbound = 4 << 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// SocketTimings bounds socket writes and keepalive. The read deadline is
// twice the ping interval.
type SocketTimings struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
}

func (t SocketTimings) withDefaults() SocketTimings {
	if t.WriteTimeout <= 0 {
		t.WriteTimeout = 10 * time.Second
	}
	if t.PingInterval <= 0 {
		t.PingInterval = 54 * time.Second
	}
	return t
}

type ChannelRegistry interface {
	Connect(subscriberID int64, ch relay.Channel)
	Release(subscriberID int64, ch relay.Channel) bool
}

// RelayHandler upgrades authenticated trading clients to websockets and
// parks them in the registry until they disconnect.
type RelayHandler struct {
	logger   *xlogger.Logger
	tokens   TokenVerifier
	registry ChannelRegistry
	timings  SocketTimings
}

func NewRelayHandler(logger *xlogger.Logger, tokens TokenVerifier, registry ChannelRegistry, timings SocketTimings) *RelayHandler {
	return &RelayHandler{
		logger:   logger.With(xlogger.String("handler", "relay")),
		tokens:   tokens,
		registry: registry,
		timings:  timings.withDefaults(),
	}
}

func (h *RelayHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/:subscriber_id", h.Connect)
}

func (h *RelayHandler) Connect(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("subscriber_id"), 10, 64)
	if err != nil || id <= 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid subscriber id"))
	}
	subject, err := h.tokens.Verify(bearerToken(c))
	if err != nil {
		return xhttp.AppErrorResponse(c, AppErrorFromDomain(err))
	}
	if subject != id {
		return xhttp.AppErrorResponse(c, xhttp.ForbiddenError("token does not match subscriber"))
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err), xlogger.Int64("subscriber_id", id))
		return nil
	}
	ch := newWSChannel(conn, h.timings)
	h.registry.Connect(id, ch)
	h.logger.Info("trading client connected", xlogger.Int64("subscriber_id", id))

	done := make(chan struct{})
	go ch.pinger(done)
	ch.drain()
	close(done)

	if h.registry.Release(id, ch) {
		h.logger.Info("trading client disconnected", xlogger.Int64("subscriber_id", id))
	}
	_ = ch.Close()
	return nil
}

// bearerToken reads the relay token from the Authorization header, falling
// back to the token query parameter for clients that cannot set headers.
func bearerToken(c echo.Context) string {
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return c.QueryParam("token")
}

// wsChannel serialises writes to a gorilla connection, which allows only
// one concurrent writer.
type wsChannel struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timings SocketTimings
}

func newWSChannel(conn *websocket.Conn, timings SocketTimings) *wsChannel {
	return &wsChannel{conn: conn, timings: timings}
}

func (w *wsChannel) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.timings.WriteTimeout))
	return w.conn.WriteJSON(v)
}

func (w *wsChannel) Close() error {
	return w.conn.Close()
}

func (w *wsChannel) pinger(done <-chan struct{}) {
	ticker := time.NewTicker(w.timings.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			w.mu.Lock()
			err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.timings.WriteTimeout))
			w.mu.Unlock()
			if err != nil {
				_ = w.conn.Close()
				return
			}
		}
	}
}

// drain reads until the client goes away. Inbound frames carry nothing
// the server acts on; reading keeps pong handling alive.
func (w *wsChannel) drain() {
	wait := 2 * w.timings.PingInterval
	w.conn.SetReadLimit(maxInbound)
	_ = w.conn.SetReadDeadline(time.Now().Add(wait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			return
		}
	}
}
