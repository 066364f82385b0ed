package models

import "time"

type PackageType string

const (
	PackageMain  PackageType = "main"
	PackageAddon PackageType = "addon"
	PackageTrial PackageType = "trial"
)

// Package is an entry of the static package catalog. Price is in IDR.
type Package struct {
	Key          string      `json:"key" yaml:"key"`
	Name         string      `json:"name" yaml:"name"`
	Price        int64       `json:"price" yaml:"price"`
	DurationDays int         `json:"duration_days" yaml:"duration_days"`
	Assets       []string    `json:"assets,omitempty" yaml:"assets"`
	Type         PackageType `json:"type" yaml:"type"`
}

func (p Package) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// GrantsAssets reports whether the package sets the main subscription.
func (p Package) GrantsAssets() bool {
	return p.Type == PackageMain || p.Type == PackageTrial
}
