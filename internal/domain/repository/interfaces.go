package repository

import (
	"context"
	"time"

	"SignalRelay/internal/domain/models"
)

type SignalStore interface {
	// Upsert stores s keyed by its fingerprint. When the fingerprint exists
	// only the mutable fields are updated and isNew is false.
	Upsert(ctx context.Context, s *models.Signal) (stored *models.Signal, isNew bool, err error)
	// Reconcile deletes signals whose fingerprint is not in active. An empty
	// set deletes nothing.
	Reconcile(ctx context.Context, active []string) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Signal, error)
	ListRecent(ctx context.Context, pair string, style models.TradingStyle, limit int) ([]*models.Signal, error)
}

type SubscriberStore interface {
	Get(ctx context.Context, id int64) (*models.Subscriber, error)
	GetOrCreate(ctx context.Context, who models.Requester) (*models.Subscriber, error)
	// GetForUpdate is Get with the row locked for the rest of the
	// transaction in ctx.
	GetForUpdate(ctx context.Context, id int64) (*models.Subscriber, error)
	// SavePreferences and SaveEntitlements each write a disjoint column set,
	// so a stale copy saved through one cannot undo a write made through the
	// other.
	SavePreferences(ctx context.Context, s *models.Subscriber) error
	SaveEntitlements(ctx context.Context, s *models.Subscriber) error
	// ListNotifiable returns subscribers with an ACTIVE main subscription and
	// notifications on. End dates are checked by the caller.
	ListNotifiable(ctx context.Context) ([]*models.Subscriber, error)
	ExpireLapsed(ctx context.Context, now time.Time) (main, addon int64, err error)
}

type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
	GetByReference(ctx context.Context, referenceID string) (*models.Invoice, error)
	// MarkPaid moves a PENDING invoice to PAID in one conditional update and
	// reports whether this call performed the transition.
	MarkPaid(ctx context.Context, referenceID, externalTxID string, paidAt time.Time) (bool, error)
	ListPending(ctx context.Context, createdAfter, createdBefore time.Time) ([]*models.Invoice, error)
	ExpireStale(ctx context.Context, createdBefore time.Time) (int64, error)
}

// Transactor runs fn in a transaction carried by the context.
type Transactor interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}

type Messenger interface {
	Send(ctx context.Context, chatID int64, msg models.Message) error
}

type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, referenceID string, pkg models.Package) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
	Close() error
}

// SightingLog is an append-only analytics sink.
type SightingLog interface {
	RecordSightings(ctx context.Context, sightings []models.SignalSighting) error
	RecordDeliveries(ctx context.Context, deliveries []models.Delivery) error
	Close() error
}

type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(context.Context) error, err error)
}

type CommandRelay interface {
	Send(subscriberID int64, cmd *models.TradeCommand) models.DeliveryOutcome
	IsConnected(subscriberID int64) bool
}

type Metrics interface {
	RecordSignal(outcome string)
	RecordReconciled(deleted int64)
	RecordDispatch(channel, outcome string)
	RecordInvoice(transition string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
