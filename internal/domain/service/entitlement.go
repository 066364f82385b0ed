package service

import (
	"fmt"
	"strings"
	"time"

	"SignalRelay/internal/domain/models"
)

var (
	ErrTrialUsed      = fmt.Errorf("%w: trial already used", models.ErrPrecondition)
	ErrAddonNeedsMain = fmt.Errorf("%w: add-on requires an active main package", models.ErrPrecondition)
	ErrConfirmReplace = fmt.Errorf("%w: replacing the active main package must be confirmed", models.ErrPrecondition)
	ErrAddonNotOwned  = fmt.Errorf("%w: add-on subscription is not active", models.ErrNotEntitled)
	ErrAffixTooLong   = fmt.Errorf("%w: symbol affix longer than %d characters", models.ErrValidation, maxAffixLen)
	ErrUnknownAffix   = fmt.Errorf("%w: unknown affix kind", models.ErrValidation)
	ErrUnknownPackage = fmt.Errorf("%w: unknown package", models.ErrValidation)
)

const maxAffixLen = 16

// Words that clear a symbol prefix or suffix instead of setting it.
var clearWords = map[string]struct{}{
	"":       {},
	"-":      {},
	"none":   {},
	"clear":  {},
	"kosong": {},
	"hapus":  {},
}

// Entitlements resolves what a subscriber may receive from subscription
// state and the package catalog. All methods are pure.
type Entitlements struct {
	catalog *Catalog
}

func NewEntitlements(catalog *Catalog) *Entitlements {
	return &Entitlements{catalog: catalog}
}

func (e *Entitlements) Catalog() *Catalog { return e.catalog }

// MainPackage returns the package behind the subscriber's main subscription.
func (e *Entitlements) MainPackage(s *models.Subscriber) (models.Package, bool) {
	if s.MainPackage == "" {
		return models.Package{}, false
	}
	if p, ok := e.catalog.Get(s.MainPackage); ok {
		return p, true
	}
	return e.catalog.ByName(s.MainPackage)
}

// AllowedAssets is empty unless the main subscription is active at now.
func (e *Entitlements) AllowedAssets(s *models.Subscriber, now time.Time) []string {
	if s == nil || !s.Main.ActiveAt(now) {
		return nil
	}
	p, ok := e.MainPackage(s)
	if !ok {
		return nil
	}
	out := make([]string, len(p.Assets))
	for i, a := range p.Assets {
		out[i] = strings.ToUpper(a)
	}
	return out
}

// Allows reports whether pair is among the subscriber's allowed assets.
func (e *Entitlements) Allows(s *models.Subscriber, pair string, now time.Time) bool {
	pair = strings.ToUpper(pair)
	for _, a := range e.AllowedAssets(s, now) {
		if a == pair {
			return true
		}
	}
	return false
}

func HasAddon(s *models.Subscriber, now time.Time) bool {
	return s != nil && s.Addon.ActiveAt(now)
}

// AutoTradeOn reports whether commands should be relayed without a prompt.
func AutoTradeOn(s *models.Subscriber, now time.Time) bool {
	return s.AutoTrade && HasAddon(s, now)
}

// CheckPurchase enforces purchase preconditions for pkg.
func (e *Entitlements) CheckPurchase(s *models.Subscriber, pkg models.Package, confirmReplace bool, now time.Time) error {
	switch pkg.Type {
	case models.PackageTrial:
		if s.TrialUsed {
			return ErrTrialUsed
		}
	case models.PackageAddon:
		if !s.Main.ActiveAt(now) {
			return ErrAddonNeedsMain
		}
	case models.PackageMain:
		if s.Main.ActiveAt(now) && !confirmReplace {
			if cur, ok := e.MainPackage(s); ok && cur.Key != pkg.Key {
				return ErrConfirmReplace
			}
		}
	default:
		return ErrUnknownPackage
	}
	return nil
}

// ApplyPurchase grants pkg starting at now. Main and trial packages replace
// the main subscription without prorating; add-ons only touch the add-on.
func ApplyPurchase(s *models.Subscriber, pkg models.Package, now time.Time) error {
	sub := models.Subscription{Status: models.StatusActive}
	if pkg.DurationDays <= 0 {
		sub.Unbounded = true
	} else {
		sub.EndsAt = now.Add(pkg.Duration())
	}
	switch {
	case pkg.Type == models.PackageAddon:
		s.Addon = sub
	case pkg.GrantsAssets():
		s.Main = sub
		s.MainPackage = pkg.Key
		s.TrialUsed = s.TrialUsed || pkg.Type == models.PackageTrial
	default:
		return ErrUnknownPackage
	}
	return nil
}

func ToggleNotifications(s *models.Subscriber) bool {
	s.NotificationsOn = !s.NotificationsOn
	return s.NotificationsOn
}

// ToggleAutoTrade flips auto-trade. Turning it on without the add-on
// returns ErrAddonNotOwned and leaves s untouched; turning it off is
// always allowed.
func ToggleAutoTrade(s *models.Subscriber, now time.Time) (bool, error) {
	if !s.AutoTrade && !HasAddon(s, now) {
		return false, ErrAddonNotOwned
	}
	s.AutoTrade = !s.AutoTrade
	return s.AutoTrade, nil
}

// SetSymbolAffix stores a prefix or suffix applied to relayed symbols.
// Clear words reset it.
func SetSymbolAffix(s *models.Subscriber, kind models.AffixKind, value string) (string, error) {
	v := strings.TrimSpace(value)
	if _, ok := clearWords[strings.ToLower(v)]; ok {
		v = ""
	}
	if len(v) > maxAffixLen {
		return "", ErrAffixTooLong
	}
	switch kind {
	case models.AffixPrefix:
		s.SymbolPrefix = v
	case models.AffixSuffix:
		s.SymbolSuffix = v
	default:
		return "", ErrUnknownAffix
	}
	return v, nil
}

// ExpireLapsed marks lapsed subscriptions EXPIRED and turns auto-trade off
// when the add-on lapses. It reports whether s changed.
func ExpireLapsed(s *models.Subscriber, now time.Time) bool {
	changed := false
	if s.Main.Status == models.StatusActive && !s.Main.ActiveAt(now) {
		s.Main.Status = models.StatusExpired
		changed = true
	}
	if s.Addon.Status == models.StatusActive && !s.Addon.ActiveAt(now) {
		s.Addon.Status = models.StatusExpired
		s.AutoTrade = false
		changed = true
	}
	return changed
}
