package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers    int           // number of workers
	RetryLimit int           // number of maximum retries
	RetryDelay time.Duration // base delay, doubled on every further attempt
	JobTimeout time.Duration // upper bound for a single Handle call
}

// Message is the stored envelope. Payload stays raw JSON until a job
// decodes it with ParsePayload.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// retryDelay returns the backoff before the given attempt (1-based).
func (c *QueueConfig) retryDelay(attempt int) time.Duration {
	d := c.RetryDelay
	for i := 1; i < attempt && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}

// ParsePayload decodes a job payload. Decode failures wrap ErrPermanent.
func ParsePayload[T any](payload json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrPermanent, err)
	}
	return &out, nil
}
