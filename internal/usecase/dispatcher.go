package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"SignalRelay/internal/domain/models"
	drepo "SignalRelay/internal/domain/repository"
	"SignalRelay/internal/domain/service"
	"SignalRelay/internal/service/relay"
	"SignalRelay/pkg/logger"
)

const (
	channelMessage = "message"
	channelRelay   = "relay"

	outcomeSent   = "sent"
	outcomeFailed = "failed"
)

// DispatchConfig paces fan-out. Rate is deliveries per second; zero
// disables pacing.
type DispatchConfig struct {
	Rate  float64
	Burst int
}

// DispatchReport summarises one fan-out.
type DispatchReport struct {
	Eligible int
	Notified int
	Relayed  int
	Failed   int
}

// Dispatcher sends a signal to every subscriber entitled to its pair,
// one subscriber at a time. A failure for one recipient never stops the
// batch.
type Dispatcher struct {
	subs      drepo.SubscriberStore
	ent       *service.Entitlements
	notifier  *Notifier
	relay     drepo.CommandRelay
	events    drepo.EventPublisher
	sightings drepo.SightingLog
	metrics   drepo.Metrics
	pace      *rate.Limiter
	log       *logger.Logger
	now       func() time.Time
}

func NewDispatcher(
	cfg DispatchConfig,
	subs drepo.SubscriberStore,
	ent *service.Entitlements,
	notifier *Notifier,
	commands drepo.CommandRelay,
	events drepo.EventPublisher,
	sightings drepo.SightingLog,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Dispatcher {
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Dispatcher{
		subs:      subs,
		ent:       ent,
		notifier:  notifier,
		relay:     commands,
		events:    events,
		sightings: sightings,
		metrics:   metrics,
		pace:      rate.NewLimiter(limit, burst),
		log:       log.With(logger.String("component", "dispatcher")),
		now:       time.Now,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, sig models.DispatchSignal) (DispatchReport, error) {
	var report DispatchReport
	start := time.Now()

	subs, err := d.subs.ListNotifiable(ctx)
	if err != nil {
		d.metrics.RecordError("list_notifiable")
		return report, fmt.Errorf("list subscribers: %w", err)
	}

	now := d.now()
	text := service.FormatSignal(sig, service.TitleNewSignal)
	var deliveries []models.Delivery

	for _, sub := range subs {
		if !sub.NotificationsOn || !d.ent.Allows(sub, sig.Pair, now) {
			continue
		}
		report.Eligible++
		if err := d.pace.Wait(ctx); err != nil {
			d.recordDeliveries(deliveries)
			return report, err
		}

		if service.AutoTradeOn(sub, now) {
			deliveries = append(deliveries, d.relayTo(ctx, sig, sub, &report))
		}

		msg := models.Message{Text: text}
		if service.HasAddon(sub, now) {
			msg.Buttons = [][]models.Button{service.ManualTradeButton(sig.ID)}
		}
		del := models.Delivery{SignalID: sig.ID, SubscriberID: sub.ID, Channel: channelMessage, Outcome: outcomeSent, At: d.now()}
		if err := d.notifier.Notify(ctx, sub.ID, msg); err != nil {
			report.Failed++
			del.Outcome, del.Error = outcomeFailed, err.Error()
			d.log.Warn("notification failed", logger.Int64("subscriber_id", sub.ID), logger.Error(err))
		} else {
			report.Notified++
		}
		d.metrics.RecordDispatch(channelMessage, del.Outcome)
		deliveries = append(deliveries, del)
	}

	d.recordDeliveries(deliveries)
	d.metrics.RecordLatency("dispatch", time.Since(start).Seconds())
	d.log.Info("signal dispatched",
		logger.Int64("signal_id", sig.ID),
		logger.String("pair", sig.Pair),
		logger.Int("eligible", report.Eligible),
		logger.Int("notified", report.Notified),
		logger.Int("relayed", report.Relayed),
		logger.Int("failed", report.Failed),
	)
	return report, nil
}

func (d *Dispatcher) relayTo(ctx context.Context, sig models.DispatchSignal, sub *models.Subscriber, report *DispatchReport) models.Delivery {
	cmd := relay.BuildTradeCommand(sig, sub, models.OrderMarket)
	outcome := d.relay.Send(sub.ID, cmd)
	d.metrics.RecordDispatch(channelRelay, string(outcome))
	if outcome == models.Delivered {
		report.Relayed++
		publishEvent(ctx, d.events, d.log, models.Event{
			Type: models.EventTradeRelayed, Key: fmt.Sprint(sub.ID), OccurredAt: d.now(), Data: cmd,
		})
	}
	return models.Delivery{SignalID: sig.ID, SubscriberID: sub.ID, Channel: channelRelay, Outcome: string(outcome), At: d.now()}
}

// recordDeliveries uses its own context so a cancelled fan-out still
// logs what it reached.
func (d *Dispatcher) recordDeliveries(deliveries []models.Delivery) {
	if len(deliveries) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.sightings.RecordDeliveries(ctx, deliveries); err != nil {
		d.metrics.RecordError("delivery_log")
		d.log.Warn("record deliveries", logger.Error(err))
	}
}

func publishEvent(ctx context.Context, events drepo.EventPublisher, log *logger.Logger, ev models.Event) {
	if err := events.Publish(ctx, ev); err != nil {
		log.Warn("publish event", logger.String("type", ev.Type), logger.Error(err))
	}
}
