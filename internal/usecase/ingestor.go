package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalRelay/internal/domain/models"
	drepo "SignalRelay/internal/domain/repository"
	"SignalRelay/internal/domain/service"
	phttp "SignalRelay/pkg/http"
	"SignalRelay/pkg/logger"
)

// SignalDispatcher fans a newly stored signal out to subscribers.
type SignalDispatcher interface {
	Dispatch(ctx context.Context, sig models.DispatchSignal) (DispatchReport, error)
}

// Ingestor normalises raw signals, stores them and dispatches first
// sightings.
type Ingestor struct {
	signals    drepo.SignalStore
	dispatcher SignalDispatcher
	events     drepo.EventPublisher
	sightings  drepo.SightingLog
	metrics    drepo.Metrics
	log        *logger.Logger
	now        func() time.Time
}

func NewIngestor(
	signals drepo.SignalStore,
	dispatcher SignalDispatcher,
	events drepo.EventPublisher,
	sightings drepo.SightingLog,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Ingestor {
	return &Ingestor{
		signals:    signals,
		dispatcher: dispatcher,
		events:     events,
		sightings:  sightings,
		metrics:    metrics,
		log:        log.With(logger.String("component", "ingestor")),
		now:        time.Now,
	}
}

// Ingest stores one raw signal. A first sighting is dispatched before
// Ingest returns.
func (i *Ingestor) Ingest(ctx context.Context, raw models.RawSignal, source string) (*models.Signal, bool, error) {
	stored, sighting, err := i.store(ctx, raw, source)
	if err != nil {
		return nil, false, err
	}
	i.recordSightings(ctx, []models.SignalSighting{sighting})
	if sighting.IsNew {
		i.dispatch(ctx, stored)
	}
	return stored, sighting.IsNew, nil
}

// SyncSnapshot ingests one complete cycle from the source. Stored signals
// missing from the cycle are deleted unless a record failed to store.
// Records that fail validation are dropped and do not block the deletion.
func (i *Ingestor) SyncSnapshot(ctx context.Context, raws []models.RawSignal, source string) (models.SnapshotResult, error) {
	start := time.Now()
	res := models.SnapshotResult{Received: len(raws)}
	active := make([]string, 0, len(raws))
	sightings := make([]models.SignalSighting, 0, len(raws))

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		stored, sighting, err := i.store(ctx, raw, source)
		if errors.Is(err, models.ErrValidation) {
			res.Invalid++
			i.log.Warn("dropping invalid signal", logger.String("source", source), logger.String("pair", raw.Pair), logger.Error(err))
			continue
		}
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.Stored++
		active = append(active, stored.Fingerprint)
		sightings = append(sightings, sighting)
		if sighting.IsNew {
			res.New++
			i.dispatch(ctx, stored)
		}
	}
	i.recordSightings(ctx, sightings)

	if res.Failed == 0 && len(active) > 0 {
		deleted, err := i.signals.Reconcile(ctx, active)
		if err != nil {
			i.metrics.RecordError("reconcile")
			return res, fmt.Errorf("reconcile signals: %w", err)
		}
		res.Deleted = deleted
		res.Reconciled = true
		i.metrics.RecordReconciled(deleted)
		if deleted > 0 {
			i.publish(ctx, models.EventSignalReconciled, source, res)
		}
	} else if res.Failed > 0 {
		i.log.Warn("snapshot incomplete, reconciliation skipped",
			logger.Int("received", res.Received), logger.Int("failed", res.Failed))
	}

	i.metrics.RecordLatency("snapshot", time.Since(start).Seconds())
	i.log.Info("snapshot synced",
		logger.String("source", source),
		logger.Int("received", res.Received),
		logger.Int("stored", res.Stored),
		logger.Int("new", res.New),
		logger.Int("invalid", res.Invalid),
		logger.Int64("deleted", res.Deleted),
	)
	return res, nil
}

func (i *Ingestor) store(ctx context.Context, raw models.RawSignal, source string) (*models.Signal, models.SignalSighting, error) {
	if err := phttp.ValidateStruct(ctx, &raw); err != nil {
		i.metrics.RecordSignal("invalid")
		return nil, models.SignalSighting{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	now := i.now()
	sig := service.BuildSignal(raw, now)
	stored, isNew, err := i.signals.Upsert(ctx, sig)
	if err != nil {
		i.metrics.RecordError("signal_upsert")
		return nil, models.SignalSighting{}, fmt.Errorf("store signal %s: %w", sig.Pair, err)
	}

	outcome := "updated"
	if isNew {
		outcome = "new"
		i.publish(ctx, models.EventSignalCreated, stored.Fingerprint, stored)
	}
	i.metrics.RecordSignal(outcome)

	return stored, models.SignalSighting{
		Fingerprint:  stored.Fingerprint,
		Pair:         stored.Pair,
		Timeframe:    stored.Timeframe,
		TradingStyle: stored.TradingStyle,
		PatternName:  stored.PatternName,
		IsNew:        isNew,
		Source:       source,
		SeenAt:       now,
	}, nil
}

func (i *Ingestor) dispatch(ctx context.Context, sig *models.Signal) {
	report, err := i.dispatcher.Dispatch(ctx, service.ToDispatch(sig))
	if err != nil {
		i.log.Error("dispatch failed", logger.Error(err), logger.Int64("signal_id", sig.ID))
		return
	}
	i.log.Debug("signal dispatched", logger.Int64("signal_id", sig.ID), logger.Int("eligible", report.Eligible))
}

func (i *Ingestor) recordSightings(ctx context.Context, sightings []models.SignalSighting) {
	if len(sightings) == 0 {
		return
	}
	if err := i.sightings.RecordSightings(ctx, sightings); err != nil {
		i.metrics.RecordError("sighting_log")
		i.log.Warn("record sightings", logger.Error(err))
	}
}

func (i *Ingestor) publish(ctx context.Context, typ, key string, data any) {
	err := i.events.Publish(ctx, models.Event{Type: typ, Key: key, OccurredAt: i.now(), Data: data})
	if err != nil {
		i.metrics.RecordError("event_publish")
		i.log.Warn("publish event", logger.String("type", typ), logger.Error(err))
	}
}
