package service

import (
	"strings"

	"SignalRelay/internal/domain/models"
)

var (
	goldAssets  = []string{"XAUUSD"}
	forexAssets = []string{
		"EURUSD", "GBPUSD", "USDJPY", "AUDUSD", "USDCAD", "USDCHF", "NZDUSD",
		"GBPJPY", "EURJPY", "AUDJPY", "CADJPY", "CHFJPY",
		"EURGBP", "EURAUD", "EURCAD", "EURCHF", "EURNZD",
		"GBPAUD", "GBPCAD", "GBPCHF", "GBPNZD",
	}
	cryptoAssets = []string{"BTCUSD", "ETHUSD", "LTCUSD", "XRPUSD"}
)

// symbolMap translates source instrument names to broker symbols.
var symbolMap = map[string]string{
	"GOLD SPOT":    "XAUUSD",
	"US 500":       "US500",
	"BRENT CRUDE":  "UKOIL",
	"US CRUDE OIL": "USOIL",
	"BTCUSD":       "BTCUSD",
	"ETHUSD":       "ETHUSD",
}

// NormalizePair upper-cases a source pair name and maps it to the broker
// symbol when one is known.
func NormalizePair(pair string) string {
	p := strings.ToUpper(strings.TrimSpace(pair))
	if mapped, ok := symbolMap[p]; ok {
		return mapped
	}
	return p
}

// Catalog is the static package list, keyed by package key.
type Catalog struct {
	packages map[string]models.Package
	order    []string
}

func NewCatalog(pkgs ...models.Package) *Catalog {
	c := &Catalog{packages: make(map[string]models.Package, len(pkgs))}
	for _, p := range pkgs {
		if _, dup := c.packages[p.Key]; !dup {
			c.order = append(c.order, p.Key)
		}
		c.packages[p.Key] = p
	}
	return c
}

func DefaultCatalog() *Catalog {
	return NewCatalog(
		models.Package{Key: "gold_monthly", Name: "GOLD (Monthly)", Price: 149000, DurationDays: 30, Assets: goldAssets, Type: models.PackageMain},
		models.Package{Key: "forex_monthly", Name: "FOREX (Monthly)", Price: 175000, DurationDays: 30, Assets: forexAssets, Type: models.PackageMain},
		models.Package{Key: "crypto_monthly", Name: "CRYPTO (Monthly)", Price: 99000, DurationDays: 30, Assets: cryptoAssets, Type: models.PackageMain},
		models.Package{Key: "all_monthly", Name: "ALL IN (Monthly)", Price: 259000, DurationDays: 30, Assets: concat(goldAssets, forexAssets, cryptoAssets), Type: models.PackageMain},
		models.Package{Key: "all_yearly", Name: "ALL IN (Yearly)", Price: 1990000, DurationDays: 365, Assets: concat(goldAssets, forexAssets, cryptoAssets), Type: models.PackageMain},
		models.Package{Key: "gold_forex_monthly", Name: "GOLD + FOREX (Monthly)", Price: 249000, DurationDays: 30, Assets: concat(goldAssets, forexAssets), Type: models.PackageMain},
		models.Package{Key: "gold_crypto_monthly", Name: "GOLD + CRYPTO (Monthly)", Price: 239000, DurationDays: 30, Assets: concat(goldAssets, cryptoAssets), Type: models.PackageMain},
		models.Package{Key: "pro_ea_monthly", Name: "PRO EA (Monthly Add-on)", Price: 199000, DurationDays: 30, Type: models.PackageAddon},
		models.Package{Key: "trial_paid", Name: "TRIAL GOLD (7 Days)", Price: 49000, DurationDays: 7, Assets: goldAssets, Type: models.PackageTrial},
	)
}

func (c *Catalog) Get(key string) (models.Package, bool) {
	p, ok := c.packages[key]
	return p, ok
}

// ByName finds a package by display name. Subscribers store the key, but
// records written before keys were stored only carry the name.
func (c *Catalog) ByName(name string) (models.Package, bool) {
	for _, k := range c.order {
		if c.packages[k].Name == name {
			return c.packages[k], true
		}
	}
	return models.Package{}, false
}

// All returns packages in catalog order.
func (c *Catalog) All() []models.Package {
	out := make([]models.Package, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.packages[k])
	}
	return out
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
