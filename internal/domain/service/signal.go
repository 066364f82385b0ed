package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"SignalRelay/internal/domain/models"
)

// Fingerprint hashes the immutable identity of a signal. Inputs are
// expected to be normalised already; absent prices hash as empty text.
func Fingerprint(pair, timeframe, patternName string, entry, tp, sl *float64) string {
	key := strings.Join([]string{
		pair, timeframe, patternName,
		formatPrice(entry), formatPrice(tp), formatPrice(sl),
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func formatPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// BuildSignal normalises a raw record into its stored form: the pair is
// mapped to the broker symbol, the style is classified and the
// fingerprint computed.
func BuildSignal(raw models.RawSignal, now time.Time) *models.Signal {
	pair := NormalizePair(raw.Pair)
	timeframe := strings.TrimSpace(raw.Timeframe)
	pattern := strings.TrimSpace(raw.PatternName)
	return &models.Signal{
		Fingerprint:      Fingerprint(pair, timeframe, pattern, raw.EntryPrice, raw.TakeProfit, raw.StopLoss),
		Pair:             pair,
		Timeframe:        timeframe,
		TradingStyle:     ClassifyStyle(raw.TargetPeriod),
		PatternName:      pattern,
		PatternType:      strings.TrimSpace(raw.PatternType),
		PatternAge:       strings.TrimSpace(raw.PatternAge),
		EntryPrice:       raw.EntryPrice,
		TakeProfit:       raw.TakeProfit,
		StopLoss:         raw.StopLoss,
		TargetPeriod:     strings.TrimSpace(raw.TargetPeriod),
		ExpiryDatetime:   strings.TrimSpace(raw.ExpiryDatetime),
		ImageURL:         raw.ImageURL,
		ShortDescription: raw.ShortDescription,
		CreatedAt:        now,
		LastSeenAt:       now,
	}
}

func DirectionOf(entry, tp *float64) models.Direction {
	if entry == nil || tp == nil {
		return models.DirectionUnknown
	}
	switch {
	case *tp > *entry:
		return models.DirectionBuy
	case *tp < *entry:
		return models.DirectionSell
	default:
		return models.DirectionUnknown
	}
}

func ToDispatch(s *models.Signal) models.DispatchSignal {
	return models.DispatchSignal{Signal: *s, Direction: DirectionOf(s.EntryPrice, s.TakeProfit)}
}
