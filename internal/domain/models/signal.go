package models

import "time"

type TradingStyle string

const (
	StyleScalper  TradingStyle = "Scalper"
	StyleIntraday TradingStyle = "Intraday"
	StyleSwing    TradingStyle = "Swing"
	StyleUnknown  TradingStyle = "Unknown"
)

type Direction string

const (
	DirectionBuy     Direction = "BUY"
	DirectionSell    Direction = "SELL"
	DirectionUnknown Direction = "UNKNOWN"
)

// RawSignal is a record as it arrives from the signal source, before
// normalisation. Price levels are optional: the source omits them for
// patterns that have not formed a target yet.
type RawSignal struct {
	Pair             string   `json:"pair" validate:"required,max=64"`
	Timeframe        string   `json:"timeframe" validate:"max=16"`
	PatternName      string   `json:"pattern_name" validate:"max=128"`
	PatternType      string   `json:"pattern_type" validate:"max=64"`
	PatternAge       string   `json:"pattern_age" validate:"max=64"`
	EntryPrice       *float64 `json:"entry_price"`
	TakeProfit       *float64 `json:"take_profit"`
	StopLoss         *float64 `json:"stop_loss"`
	TargetPeriod     string   `json:"target_period" validate:"max=64"`
	ExpiryDatetime   string   `json:"expiry_datetime" validate:"max=64"`
	ImageURL         string   `json:"image_url" validate:"omitempty,url"`
	ShortDescription string   `json:"short_description"`
}

// Signal is the stored, deduplicated form of a RawSignal.
type Signal struct {
	ID               int64        `json:"id" gorm:"primaryKey;autoIncrement"`
	Fingerprint      string       `json:"fingerprint" gorm:"size:64;uniqueIndex;not null"`
	Pair             string       `json:"pair" gorm:"size:64;index"`
	Timeframe        string       `json:"timeframe" gorm:"size:16"`
	TradingStyle     TradingStyle `json:"trading_style" gorm:"size:16;index"`
	PatternName      string       `json:"pattern_name" gorm:"size:128"`
	PatternType      string       `json:"pattern_type" gorm:"size:64"`
	PatternAge       string       `json:"pattern_age" gorm:"size:64"`
	EntryPrice       *float64     `json:"entry_price"`
	TakeProfit       *float64     `json:"take_profit"`
	StopLoss         *float64     `json:"stop_loss"`
	TargetPeriod     string       `json:"target_period" gorm:"size:64"`
	ExpiryDatetime   string       `json:"expiry_datetime" gorm:"size:64"`
	ImageURL         string       `json:"image_url"`
	ShortDescription string       `json:"short_description"`
	CreatedAt        time.Time    `json:"created_at" gorm:"autoCreateTime"`
	LastSeenAt       time.Time    `json:"last_seen_at"`
}

func (Signal) TableName() string { return "signals" }

// DispatchSignal is a stored signal enriched for fan-out.
type DispatchSignal struct {
	Signal
	Direction Direction `json:"direction"`
}

// SignalSighting is one observation of a signal by an ingestion cycle.
type SignalSighting struct {
	Fingerprint  string
	Pair         string
	Timeframe    string
	TradingStyle TradingStyle
	PatternName  string
	IsNew        bool
	Source       string
	SeenAt       time.Time
}

// SnapshotResult summarises one full ingestion cycle.
type SnapshotResult struct {
	Received   int      `json:"received"`
	Stored     int      `json:"stored"`
	New        int      `json:"new"`
	Invalid    int      `json:"invalid"`
	Failed     int      `json:"failed"`
	Deleted    int64    `json:"deleted"`
	Reconciled bool     `json:"reconciled"`
	Errors     []string `json:"errors,omitempty"`
}
