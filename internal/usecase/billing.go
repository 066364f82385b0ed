package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"SignalRelay/internal/domain/models"
	drepo "SignalRelay/internal/domain/repository"
	"SignalRelay/internal/domain/service"
	"SignalRelay/pkg/logger"
)

type BillingConfig struct {
	// InvoiceTTL is how long an invoice stays payable.
	InvoiceTTL time.Duration
	// ReminderAfter is the age at which pending invoices get reminders.
	ReminderAfter time.Duration
}

// Billing runs the invoice state machine: PENDING to PAID or EXPIRED,
// with entitlement applied exactly once per paid invoice.
type Billing struct {
	cfg      BillingConfig
	tx       drepo.Transactor
	invoices drepo.InvoiceStore
	subs     drepo.SubscriberStore
	gateway  drepo.PaymentGateway
	locker   drepo.Locker
	catalog  *service.Catalog
	notifier *Notifier
	events   drepo.EventPublisher
	metrics  drepo.Metrics
	log      *logger.Logger
	now      func() time.Time
	nonce    func() string
}

func NewBilling(
	cfg BillingConfig,
	tx drepo.Transactor,
	invoices drepo.InvoiceStore,
	subs drepo.SubscriberStore,
	gateway drepo.PaymentGateway,
	locker drepo.Locker,
	catalog *service.Catalog,
	notifier *Notifier,
	events drepo.EventPublisher,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Billing {
	if cfg.InvoiceTTL <= 0 {
		cfg.InvoiceTTL = 24 * time.Hour
	}
	if cfg.ReminderAfter <= 0 {
		cfg.ReminderAfter = time.Hour
	}
	return &Billing{
		cfg:      cfg,
		tx:       tx,
		invoices: invoices,
		subs:     subs,
		gateway:  gateway,
		locker:   locker,
		catalog:  catalog,
		notifier: notifier,
		events:   events,
		metrics:  metrics,
		log:      log.With(logger.String("component", "billing")),
		now:      time.Now,
		nonce:    func() string { return uuid.NewString()[:8] },
	}
}

// CreateInvoice requests a payment link and stores a PENDING invoice.
// Purchase preconditions are checked by the caller.
func (b *Billing) CreateInvoice(ctx context.Context, sub *models.Subscriber, pkg models.Package) (*models.Invoice, error) {
	ref := models.Reference{SubscriberID: sub.ID, PackageKey: pkg.Key, Nonce: b.nonce()}.String()

	link, err := b.gateway.CreatePaymentLink(ctx, ref, pkg)
	if err != nil {
		b.metrics.RecordError("payment_link")
		return nil, fmt.Errorf("payment link: %w", err)
	}

	inv := &models.Invoice{
		ReferenceID:  ref,
		SubscriberID: sub.ID,
		PackageKey:   pkg.Key,
		Amount:       pkg.Price,
		PaymentURL:   link,
		Status:       models.InvoicePending,
		CreatedAt:    b.now(),
	}
	if err := b.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("store invoice: %w", err)
	}

	b.metrics.RecordInvoice("created")
	publishEvent(ctx, b.events, b.log, models.Event{Type: models.EventInvoiceCreated, Key: ref, OccurredAt: inv.CreatedAt, Data: inv})
	b.log.Info("invoice created", logger.String("reference_id", ref), logger.Int64("subscriber_id", sub.ID))
	return inv, nil
}

// ConfirmPaid settles the invoice behind referenceID. It is safe to call
// repeatedly: a reference that is already PAID reports AlreadyProcessed
// and leaves the subscriber untouched.
func (b *Billing) ConfirmPaid(ctx context.Context, referenceID, externalTxID string) (models.ConfirmResult, error) {
	ref, err := models.ParseReference(referenceID)
	if err != nil {
		b.metrics.RecordInvoice("rejected")
		return models.ConfirmResult{}, err
	}
	pkg, ok := b.catalog.Get(ref.PackageKey)
	if !ok {
		b.metrics.RecordInvoice("rejected")
		return models.ConfirmResult{}, fmt.Errorf("%w: reference %q", service.ErrUnknownPackage, referenceID)
	}

	unlock, err := b.locker.Lock(ctx, "invoice:"+referenceID)
	if err != nil {
		return models.ConfirmResult{}, fmt.Errorf("lock invoice: %w", err)
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			b.log.Warn("unlock invoice", logger.String("reference_id", referenceID), logger.Error(err))
		}
	}()

	var (
		result models.ConfirmResult
		sub    *models.Subscriber
	)
	now := b.now()
	err = b.tx.Exec(ctx, func(ctx context.Context) error {
		inv, err := b.invoices.GetByReference(ctx, referenceID)
		if err != nil {
			return err
		}
		switch inv.Status {
		case models.InvoicePaid:
			result = models.ConfirmResult{Invoice: inv, AlreadyProcessed: true}
			return nil
		case models.InvoiceExpired:
			return fmt.Errorf("%w: invoice %s is %s", models.ErrStaleTransition, referenceID, inv.Status)
		}

		moved, err := b.invoices.MarkPaid(ctx, referenceID, externalTxID, now)
		if err != nil {
			return err
		}
		if !moved {
			cur, err := b.invoices.GetByReference(ctx, referenceID)
			if err != nil {
				return err
			}
			if cur.Status != models.InvoicePaid {
				return fmt.Errorf("%w: invoice %s is %s", models.ErrStaleTransition, referenceID, cur.Status)
			}
			result = models.ConfirmResult{Invoice: cur, AlreadyProcessed: true}
			return nil
		}

		sub, err = b.subs.GetForUpdate(ctx, ref.SubscriberID)
		if errors.Is(err, models.ErrNotFound) {
			if _, err = b.subs.GetOrCreate(ctx, models.Requester{ID: ref.SubscriberID}); err == nil {
				sub, err = b.subs.GetForUpdate(ctx, ref.SubscriberID)
			}
		}
		if err != nil {
			return err
		}
		if err := service.ApplyPurchase(sub, pkg, now); err != nil {
			return err
		}
		if err := b.subs.SaveEntitlements(ctx, sub); err != nil {
			return err
		}

		inv.Status = models.InvoicePaid
		inv.ExternalTxID = externalTxID
		inv.PaidAt = &now
		result = models.ConfirmResult{Invoice: inv}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrStaleTransition):
			b.metrics.RecordInvoice("stale")
		case errors.Is(err, models.ErrNotFound):
			b.metrics.RecordInvoice("unknown")
		default:
			b.metrics.RecordError("invoice_confirm")
		}
		return models.ConfirmResult{}, err
	}

	if result.AlreadyProcessed {
		b.metrics.RecordInvoice("duplicate")
		b.log.Info("payment already processed", logger.String("reference_id", referenceID))
		return result, nil
	}

	b.metrics.RecordInvoice("paid")
	publishEvent(ctx, b.events, b.log, models.Event{Type: models.EventInvoicePaid, Key: referenceID, OccurredAt: now, Data: result.Invoice})
	b.log.Info("payment confirmed",
		logger.String("reference_id", referenceID),
		logger.Int64("subscriber_id", sub.ID),
		logger.String("package", pkg.Key),
	)
	if err := b.notifier.Notify(ctx, sub.ID, models.TextMessage(service.FormatPaymentConfirmed(pkg, sub))); err != nil {
		b.log.Warn("payment confirmation not delivered", logger.Int64("subscriber_id", sub.ID), logger.Error(err))
	}
	return result, nil
}

// ExpireStale moves PENDING invoices older than the invoice TTL to EXPIRED.
func (b *Billing) ExpireStale(ctx context.Context) (int64, error) {
	n, err := b.invoices.ExpireStale(ctx, b.now().Add(-b.cfg.InvoiceTTL))
	if err != nil {
		return 0, fmt.Errorf("expire invoices: %w", err)
	}
	for i := int64(0); i < n; i++ {
		b.metrics.RecordInvoice("expired")
	}
	if n > 0 {
		b.log.Info("invoices expired", logger.Int64("count", n))
	}
	return n, nil
}

// RemindPending nudges subscribers whose invoice has been pending longer
// than ReminderAfter and is still payable. It returns how many reminders
// were delivered.
func (b *Billing) RemindPending(ctx context.Context) (int, error) {
	now := b.now()
	pending, err := b.invoices.ListPending(ctx, now.Add(-b.cfg.InvoiceTTL), now.Add(-b.cfg.ReminderAfter))
	if err != nil {
		return 0, fmt.Errorf("list pending invoices: %w", err)
	}

	sent := 0
	for _, inv := range pending {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		pkg, ok := b.catalog.Get(inv.PackageKey)
		if !ok {
			continue
		}
		msg := models.Message{
			Text:    service.FormatReminder(inv, pkg, now),
			Buttons: [][]models.Button{{{Text: "💳 Pay now", URL: inv.PaymentURL}}},
		}
		if err := b.notifier.Notify(ctx, inv.SubscriberID, msg); err != nil {
			b.log.Warn("payment reminder not delivered", logger.String("reference_id", inv.ReferenceID), logger.Error(err))
			continue
		}
		sent++
	}
	if len(pending) > 0 {
		b.log.Info("payment reminders sent", logger.Int("pending", len(pending)), logger.Int("sent", sent))
	}
	return sent, nil
}
