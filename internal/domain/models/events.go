package models

import "time"

// Event types published on the event stream.
const (
	EventSignalCreated    = "signal.created"
	EventSignalReconciled = "signal.reconciled"
	EventInvoiceCreated   = "invoice.created"
	EventInvoicePaid      = "invoice.paid"
	EventTradeRelayed     = "trade.relayed"
)

type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Delivery records one attempt to reach a subscriber during fan-out.
type Delivery struct {
	SignalID     int64
	SubscriberID int64
	Channel      string // "message" or "relay"
	Outcome      string
	Error        string
	At           time.Time
}
