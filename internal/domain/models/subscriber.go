package models

import "time"

type SubscriptionStatus string

const (
	StatusNone    SubscriptionStatus = "NONE"
	StatusActive  SubscriptionStatus = "ACTIVE"
	StatusExpired SubscriptionStatus = "EXPIRED"
)

// Subscription is a status with an end date. Unbounded subscriptions never
// lapse; a zero EndsAt without Unbounded is treated as already lapsed.
type Subscription struct {
	Status    SubscriptionStatus `json:"status" gorm:"size:16;default:'NONE'"`
	EndsAt    time.Time          `json:"ends_at"`
	Unbounded bool               `json:"unbounded"`
}

// ActiveAt reports whether the subscription grants access at now.
func (s Subscription) ActiveAt(now time.Time) bool {
	if s.Status != StatusActive {
		return false
	}
	if s.Unbounded {
		return true
	}
	return !s.EndsAt.IsZero() && s.EndsAt.After(now)
}

// Subscriber is keyed by the messaging identity of the user.
type Subscriber struct {
	ID              int64        `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Username        string       `json:"username" gorm:"size:64"`
	FirstName       string       `json:"first_name" gorm:"size:128"`
	TrialUsed       bool         `json:"trial_used"`
	MainPackage     string       `json:"main_package" gorm:"size:64"`
	Main            Subscription `json:"main" gorm:"embedded;embeddedPrefix:main_"`
	Addon           Subscription `json:"addon" gorm:"embedded;embeddedPrefix:addon_"`
	NotificationsOn bool         `json:"notifications_on"`
	AutoTrade       bool         `json:"auto_trade"`
	SymbolPrefix    string       `json:"symbol_prefix" gorm:"size:16"`
	SymbolSuffix    string       `json:"symbol_suffix" gorm:"size:16"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (Subscriber) TableName() string { return "subscribers" }

// NewSubscriber returns a subscriber with no subscriptions and notifications on.
func NewSubscriber(id int64, username, firstName string) *Subscriber {
	return &Subscriber{
		ID:              id,
		Username:        username,
		FirstName:       firstName,
		Main:            Subscription{Status: StatusNone},
		Addon:           Subscription{Status: StatusNone},
		NotificationsOn: true,
	}
}
