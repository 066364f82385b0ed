package repository

import (
	"context"

	"SignalRelay/internal/domain/models"
)

// NoopSightingLog is used when ClickHouse is disabled.
type NoopSightingLog struct{}

func (NoopSightingLog) RecordSightings(context.Context, []models.SignalSighting) error { return nil }
func (NoopSightingLog) RecordDeliveries(context.Context, []models.Delivery) error      { return nil }
func (NoopSightingLog) Close() error                                                   { return nil }

// NoopEventPublisher is used when Kafka is disabled.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, models.Event) error { return nil }
func (NoopEventPublisher) Close() error                                { return nil }
