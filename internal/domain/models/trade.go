package models

type OrderType string

const (
	OrderMarket  OrderType = "MARKET"
	OrderPending OrderType = "PENDING"
)

func (o OrderType) Valid() bool { return o == OrderMarket || o == OrderPending }

type DeliveryOutcome string

const (
	Delivered DeliveryOutcome = "delivered"
	Dropped   DeliveryOutcome = "dropped"
)

// TradeFeedback is reported by a remote trading client after it handled a
// relayed command.
type TradeFeedback struct {
	SubscriberID int64  `json:"telegram_id" validate:"required,gt=0"`
	Status       string `json:"status" validate:"required,oneof=SUCCESS FAILURE"`
	TicketID     *int64 `json:"ticket_id"`
	Symbol       string `json:"symbol" validate:"required"`
	Comment      string `json:"comment"`
	OrderType    string `json:"order_type" validate:"required"`
}

const ActionExecuteTrade = "EXECUTE_TRADE"

// TradeCommand is the envelope written to a remote trading client.
type TradeCommand struct {
	Action    string      `json:"action"`
	OrderType OrderType   `json:"order_type"`
	Signal    TradeSignal `json:"signal"`
}

// TradeSignal carries the broker-facing symbol and timestamps as RFC 3339
// text. Imagery and long descriptions are never sent to clients.
type TradeSignal struct {
	ID             int64        `json:"id"`
	Pair           string       `json:"pair"`
	Direction      Direction    `json:"direction"`
	Timeframe      string       `json:"timeframe"`
	TradingStyle   TradingStyle `json:"trading_style"`
	PatternName    string       `json:"pattern_name"`
	PatternType    string       `json:"pattern_type"`
	PatternAge     string       `json:"pattern_age"`
	EntryPrice     *float64     `json:"entry_price"`
	TakeProfit     *float64     `json:"take_profit"`
	StopLoss       *float64     `json:"stop_loss"`
	TargetPeriod   string       `json:"target_period"`
	ExpiryDatetime string       `json:"expiry_datetime"`
	CreatedAt      string       `json:"created_at"`
	LastSeenAt     string       `json:"last_seen_at"`
}
