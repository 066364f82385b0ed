package models

// Requester identifies the subscriber behind a front-desk request.
type Requester struct {
	ID        int64
	Username  string
	FirstName string
}

func (r Requester) requester() Requester { return r }

// Request is one of the front-desk operations below. The set is closed:
// only types in this package implement it.
type Request interface {
	requester() Requester
}

// Who returns the requester of any front-desk request.
func Who(r Request) Requester { return r.requester() }

type StartRequest struct{ Requester }

type ShowPackagesRequest struct{ Requester }

// PurchaseRequest asks for a payment link. ConfirmReplace acknowledges that
// an active main package will be replaced.
type PurchaseRequest struct {
	Requester
	PackageKey     string
	ConfirmReplace bool
}

type StatusRequest struct{ Requester }

type ToggleNotificationsRequest struct{ Requester }

type ToggleAutoTradeRequest struct{ Requester }

type AffixKind string

const (
	AffixPrefix AffixKind = "prefix"
	AffixSuffix AffixKind = "suffix"
)

type SetAffixRequest struct {
	Requester
	Kind  AffixKind
	Value string
}

// HistoryRequest narrows down step by step: no pair lists pairs, a pair
// without style lists styles, both return recent signals.
type HistoryRequest struct {
	Requester
	Pair  string
	Style TradingStyle
}

// ManualTradeRequest without an order type asks which type to use.
type ManualTradeRequest struct {
	Requester
	SignalID  int64
	OrderType OrderType
}

type RelayTokenRequest struct{ Requester }
