package usecase

import (
	"context"
	"fmt"
	"time"

	drepo "SignalRelay/internal/domain/repository"
	"SignalRelay/internal/service/ratelimit"
	"SignalRelay/pkg/logger"
)

// Maintenance holds the periodic housekeeping that is not billing.
type Maintenance struct {
	subs    drepo.SubscriberStore
	limiter *ratelimit.Limiter
	log     *logger.Logger
	now     func() time.Time
}

func NewMaintenance(subs drepo.SubscriberStore, limiter *ratelimit.Limiter, log *logger.Logger) *Maintenance {
	return &Maintenance{
		subs:    subs,
		limiter: limiter,
		log:     log.With(logger.String("component", "maintenance")),
		now:     time.Now,
	}
}

// ExpireSubscriptions marks lapsed subscriptions EXPIRED and drops idle
// trade throttles.
func (m *Maintenance) ExpireSubscriptions(ctx context.Context) error {
	main, addon, err := m.subs.ExpireLapsed(ctx, m.now())
	if err != nil {
		return fmt.Errorf("expire subscriptions: %w", err)
	}
	swept := m.limiter.Sweep()
	m.log.Info("subscriptions swept",
		logger.Int64("main_expired", main),
		logger.Int64("addon_expired", addon),
		logger.Int("throttles_dropped", swept),
	)
	return nil
}
