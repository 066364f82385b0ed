package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "PENDING"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceExpired InvoiceStatus = "EXPIRED"
)

type Invoice struct {
	ID           int64         `json:"id" gorm:"primaryKey;autoIncrement"`
	ReferenceID  string        `json:"reference_id" gorm:"size:160;uniqueIndex;not null"`
	SubscriberID int64         `json:"subscriber_id" gorm:"index;not null"`
	PackageKey   string        `json:"package_key" gorm:"size:64;not null"`
	Amount       int64         `json:"amount"`
	PaymentURL   string        `json:"payment_url" gorm:"not null"`
	Status       InvoiceStatus `json:"status" gorm:"size:16;index;default:'PENDING'"`
	ExternalTxID string        `json:"external_tx_id" gorm:"size:64"`
	CreatedAt    time.Time     `json:"created_at"`
	PaidAt       *time.Time    `json:"paid_at,omitempty"`
}

func (Invoice) TableName() string { return "payment_invoices" }

// ConfirmResult is the outcome of a payment confirmation. AlreadyProcessed
// is set when the reference had been paid before this call.
type ConfirmResult struct {
	Invoice          *Invoice
	AlreadyProcessed bool
}

// Reference is the decoded form of an invoice reference id:
// user-<subscriber>-package-<key>-<nonce>.
type Reference struct {
	SubscriberID int64
	PackageKey   string
	Nonce        string
}

var referencePattern = regexp.MustCompile(`^user-(\d+)-package-([a-zA-Z0-9_]+)-(.+)$`)

func (r Reference) String() string {
	return fmt.Sprintf("user-%d-package-%s-%s", r.SubscriberID, r.PackageKey, r.Nonce)
}

func ParseReference(s string) (Reference, error) {
	m := referencePattern.FindStringSubmatch(s)
	if m == nil {
		return Reference{}, fmt.Errorf("%w: malformed reference id %q", ErrValidation, s)
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return Reference{}, fmt.Errorf("%w: bad subscriber in reference id %q", ErrValidation, s)
	}
	return Reference{SubscriberID: id, PackageKey: m[2], Nonce: m[3]}, nil
}

// PaymentNotification is the normalised body of a gateway callback.
type PaymentNotification struct {
	Status       string `form:"status" json:"status" validate:"required"`
	ReferenceID  string `form:"reference_id" json:"reference_id" validate:"required"`
	ExternalTxID string `form:"trx_id" json:"trx_id"`
}
