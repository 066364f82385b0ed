package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalRelay/internal/domain/models"
	drepo "SignalRelay/internal/domain/repository"
)

// Notifier sends a message with a per-attempt timeout and one retry.
type Notifier struct {
	messenger drepo.Messenger
	timeout   time.Duration
}

func NewNotifier(messenger drepo.Messenger, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{messenger: messenger, timeout: timeout}
}

func (n *Notifier) Notify(ctx context.Context, chatID int64, msg models.Message) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		sctx, cancel := context.WithTimeout(ctx, n.timeout)
		err = n.messenger.Send(sctx, chatID, msg)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: chat %d: %v", models.ErrDelivery, chatID, err)
}
