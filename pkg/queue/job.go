package queue

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrPermanent marks a failure that retrying cannot fix, such as a
// payload that does not decode. Such messages go straight to the
// dead-letter list.
var ErrPermanent = errors.New("permanent job failure")

// Job handles one message type.
type Job interface {
	// Name is used in logs.
	Name() string
	// Type is the message type routed to this job.
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}
