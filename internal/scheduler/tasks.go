package scheduler

import (
	"context"
	"time"

	"SignalRelay/pkg/logger"
)

type InvoiceSweeper interface {
	ExpireStale(ctx context.Context) (int64, error)
	RemindPending(ctx context.Context) (int, error)
}

type SubscriptionSweeper interface {
	ExpireSubscriptions(ctx context.Context) error
}

type Specs struct {
	ExpireInvoices string
	RemindPending  string
	ExpireSubs     string
}

// MaintenanceTasks builds the billing and subscription housekeeping jobs.
func MaintenanceTasks(specs Specs, invoices InvoiceSweeper, subs SubscriptionSweeper, log *logger.Logger) []Task {
	return []Task{
		{
			Name:    "expire-invoices",
			Spec:    specs.ExpireInvoices,
			Timeout: 2 * time.Minute,
			Run: func(ctx context.Context) error {
				n, err := invoices.ExpireStale(ctx)
				if n > 0 {
					log.Info("pending invoices expired", logger.Int64("count", n))
				}
				return err
			},
		},
		{
			Name:    "remind-pending",
			Spec:    specs.RemindPending,
			Timeout: 10 * time.Minute,
			Run: func(ctx context.Context) error {
				n, err := invoices.RemindPending(ctx)
				if n > 0 {
					log.Info("payment reminders sent", logger.Int("count", n))
				}
				return err
			},
		},
		{
			Name:    "expire-subscriptions",
			Spec:    specs.ExpireSubs,
			Timeout: 5 * time.Minute,
			Run:     subs.ExpireSubscriptions,
		},
	}
}
