package service

import (
	"testing"
	"time"

	"SignalRelay/internal/domain/models"
)

func f(v float64) *float64 { return &v }

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("XAUUSD", "60", "Triangle", f(2300.5), f(2310), f(2295))
	b := Fingerprint("XAUUSD", "60", "Triangle", f(2300.5), f(2310), f(2295))
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if c := Fingerprint("XAUUSD", "60", "Triangle", f(2300.5), f(2311), f(2295)); c == a {
		t.Fatalf("different take profit produced the same fingerprint")
	}
	if d := Fingerprint("XAUUSD", "60", "Triangle", nil, f(2310), f(2295)); d == a {
		t.Fatalf("missing entry produced the same fingerprint")
	}
}

func TestBuildSignalNormalisesPair(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	raw := models.RawSignal{
		Pair: "gold spot", Timeframe: "60", PatternName: "Triangle",
		EntryPrice: f(2300), TakeProfit: f(2310), StopLoss: f(2295),
		TargetPeriod: "16 hours", PatternAge: "2 hours ago",
	}
	s := BuildSignal(raw, now)
	if s.Pair != "XAUUSD" {
		t.Fatalf("unexpected pair %s", s.Pair)
	}
	if s.TradingStyle != models.StyleIntraday {
		t.Fatalf("unexpected style %s", s.TradingStyle)
	}
	if s.Fingerprint != Fingerprint("XAUUSD", "60", "Triangle", f(2300), f(2310), f(2295)) {
		t.Fatalf("fingerprint should be computed on the normalised pair")
	}
	// the age is mutable and must not influence identity
	raw.PatternAge = "5 hours ago"
	if BuildSignal(raw, now).Fingerprint != s.Fingerprint {
		t.Fatalf("pattern age changed the fingerprint")
	}
}

func TestDirectionOf(t *testing.T) {
	if DirectionOf(f(1), f(2)) != models.DirectionBuy {
		t.Fatalf("expected BUY")
	}
	if DirectionOf(f(2), f(1)) != models.DirectionSell {
		t.Fatalf("expected SELL")
	}
	if DirectionOf(f(1), f(1)) != models.DirectionUnknown || DirectionOf(nil, f(1)) != models.DirectionUnknown {
		t.Fatalf("expected UNKNOWN")
	}
}

func TestNormalizePair(t *testing.T) {
	if NormalizePair(" us 500 ") != "US500" {
		t.Fatalf("symbol map not applied")
	}
	if NormalizePair("eurusd") != "EURUSD" {
		t.Fatalf("pair not upper-cased")
	}
}
