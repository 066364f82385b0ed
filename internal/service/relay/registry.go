package relay

import (
	"sync"

	"SignalRelay/internal/domain/models"
	"SignalRelay/pkg/logger"
)

// Channel is a live connection to a remote trading client. Implementations
// bound each write with their own deadline.
type Channel interface {
	WriteJSON(v any) error
	Close() error
}

type ConnGauge interface {
	SetRelayConnections(n int)
}

type entry struct {
	mu     sync.Mutex
	ch     Channel
	closed bool
}

func (e *entry) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		_ = e.ch.Close()
	}
}

// Registry holds at most one live channel per subscriber and relays
// commands to it. Delivery is at most once: there is no queueing and no
// retry.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]*entry
	log   *logger.Logger
	gauge ConnGauge
}

func NewRegistry(log *logger.Logger, gauge ConnGauge) *Registry {
	return &Registry{
		conns: make(map[int64]*entry),
		log:   log.With(logger.String("component", "relay")),
		gauge: gauge,
	}
}

// Connect binds ch to the subscriber. A previous channel is closed.
func (r *Registry) Connect(subscriberID int64, ch Channel) {
	e := &entry{ch: ch}
	r.mu.Lock()
	old := r.conns[subscriberID]
	r.conns[subscriberID] = e
	n := len(r.conns)
	r.mu.Unlock()

	r.report(n)
	if old != nil {
		old.close()
		r.log.Info("relay channel replaced", logger.Int64("subscriber_id", subscriberID))
		return
	}
	r.log.Info("relay channel connected", logger.Int64("subscriber_id", subscriberID))
}

// Disconnect closes and removes the subscriber's channel, if any.
func (r *Registry) Disconnect(subscriberID int64) {
	r.mu.Lock()
	e := r.conns[subscriberID]
	delete(r.conns, subscriberID)
	n := len(r.conns)
	r.mu.Unlock()

	if e == nil {
		return
	}
	r.report(n)
	e.close()
	r.log.Info("relay channel disconnected", logger.Int64("subscriber_id", subscriberID))
}

// Release removes the subscriber's entry only while it still holds ch, so
// a replaced connection shutting down cannot evict its successor.
func (r *Registry) Release(subscriberID int64, ch Channel) bool {
	r.mu.Lock()
	e, ok := r.conns[subscriberID]
	if !ok || e.ch != ch {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, subscriberID)
	n := len(r.conns)
	r.mu.Unlock()

	r.report(n)
	e.close()
	r.log.Info("relay channel released", logger.Int64("subscriber_id", subscriberID))
	return true
}

func (r *Registry) IsConnected(subscriberID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[subscriberID]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Send writes cmd to the subscriber's channel. A failed write closes and
// evicts the channel.
func (r *Registry) Send(subscriberID int64, cmd *models.TradeCommand) models.DeliveryOutcome {
	r.mu.RLock()
	e := r.conns[subscriberID]
	r.mu.RUnlock()

	if e == nil {
		r.log.Warn("no relay channel, command dropped", logger.Int64("subscriber_id", subscriberID))
		return models.Dropped
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return models.Dropped
	}
	err := e.ch.WriteJSON(cmd)
	if err != nil {
		e.closed = true
		_ = e.ch.Close()
	}
	e.mu.Unlock()

	if err != nil {
		r.evict(subscriberID, e)
		r.log.Error("relay write failed, channel evicted",
			logger.Int64("subscriber_id", subscriberID), logger.Error(err))
		return models.Dropped
	}
	r.log.Info("trade command relayed",
		logger.Int64("subscriber_id", subscriberID),
		logger.String("order_type", string(cmd.OrderType)),
		logger.String("pair", cmd.Signal.Pair))
	return models.Delivered
}

func (r *Registry) evict(subscriberID int64, e *entry) {
	r.mu.Lock()
	if cur, ok := r.conns[subscriberID]; ok && cur == e {
		delete(r.conns, subscriberID)
	}
	n := len(r.conns)
	r.mu.Unlock()
	r.report(n)
}

// CloseAll closes every channel; used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.conns))
	for id, e := range r.conns {
		entries = append(entries, e)
		delete(r.conns, id)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.close()
	}
	r.report(0)
}

func (r *Registry) report(n int) {
	if r.gauge != nil {
		r.gauge.SetRelayConnections(n)
	}
}
