package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalRelay/internal/domain/models"
	drepo "SignalRelay/internal/domain/repository"
	"SignalRelay/internal/domain/service"
	"SignalRelay/internal/service/ratelimit"
	"SignalRelay/internal/service/relay"
	"SignalRelay/pkg/logger"
)

var ErrTooManyTrades = fmt.Errorf("%w: too many trade requests", models.ErrPrecondition)

// TradeDesk relays manually requested trades for add-on holders.
type TradeDesk struct {
	signals drepo.SignalStore
	relay   drepo.CommandRelay
	limiter *ratelimit.Limiter
	events  drepo.EventPublisher
	metrics drepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewTradeDesk(
	signals drepo.SignalStore,
	commands drepo.CommandRelay,
	limiter *ratelimit.Limiter,
	events drepo.EventPublisher,
	metrics drepo.Metrics,
	log *logger.Logger,
) *TradeDesk {
	return &TradeDesk{
		signals: signals,
		relay:   commands,
		limiter: limiter,
		events:  events,
		metrics: metrics,
		log:     log.With(logger.String("component", "trade_desk")),
		now:     time.Now,
	}
}

// Execute relays one order for signalID to the subscriber's client.
func (t *TradeDesk) Execute(ctx context.Context, sub *models.Subscriber, signalID int64, order models.OrderType) (models.DeliveryOutcome, error) {
	if !order.Valid() {
		return models.Dropped, fmt.Errorf("%w: order type %q", models.ErrValidation, order)
	}
	if !service.HasAddon(sub, t.now()) {
		return models.Dropped, service.ErrAddonNotOwned
	}
	if !t.limiter.Allow(sub.ID) {
		return models.Dropped, ErrTooManyTrades
	}

	sig, err := t.signals.GetByID(ctx, signalID)
	if err != nil {
		return models.Dropped, err
	}

	cmd := relay.BuildTradeCommand(service.ToDispatch(sig), sub, order)
	outcome := t.relay.Send(sub.ID, cmd)
	t.metrics.RecordDispatch(channelRelay, string(outcome))
	t.log.Info("manual trade",
		logger.Int64("subscriber_id", sub.ID),
		logger.Int64("signal_id", signalID),
		logger.String("order_type", string(order)),
		logger.String("outcome", string(outcome)),
	)
	if outcome == models.Delivered {
		publishEvent(ctx, t.events, t.log, models.Event{
			Type: models.EventTradeRelayed, Key: fmt.Sprint(sub.ID), OccurredAt: t.now(), Data: cmd,
		})
	}
	return outcome, nil
}
