package usecase

import (
	"context"
	"fmt"

	"SignalRelay/internal/domain/models"
	"SignalRelay/internal/domain/service"
	phttp "SignalRelay/pkg/http"
	"SignalRelay/pkg/logger"
)

// Feedback forwards execution reports from trading clients to the
// subscriber's chat.
type Feedback struct {
	notifier *Notifier
	log      *logger.Logger
}

func NewFeedback(notifier *Notifier, log *logger.Logger) *Feedback {
	return &Feedback{notifier: notifier, log: log.With(logger.String("component", "feedback"))}
}

func (f *Feedback) Report(ctx context.Context, fb models.TradeFeedback) error {
	if err := phttp.ValidateStruct(ctx, &fb); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	f.log.Info("trade feedback",
		logger.Int64("subscriber_id", fb.SubscriberID),
		logger.String("status", fb.Status),
		logger.String("symbol", fb.Symbol),
	)
	return f.notifier.Notify(ctx, fb.SubscriberID, models.TextMessage(service.FormatFeedback(fb)))
}
