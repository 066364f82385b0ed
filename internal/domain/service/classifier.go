package service

import (
	"regexp"
	"strconv"
	"strings"

	"SignalRelay/internal/domain/models"
)

var durationPattern = regexp.MustCompile(`(\d+)\s*(hour|day|week|month)`)

var unitHours = map[string]int{
	"hour":  1,
	"day":   24,
	"week":  24 * 7,
	"month": 24 * 30,
}

// ClassifyStyle derives a trading style from target-duration text such as
// "16 hours" or "2 days". Anything unparseable is StyleUnknown.
func ClassifyStyle(durationText string) models.TradingStyle {
	m := durationPattern.FindStringSubmatch(strings.ToLower(durationText))
	if m == nil {
		return models.StyleUnknown
	}
	value, err := strconv.Atoi(m[1])
	if err != nil {
		return models.StyleUnknown
	}
	// guard against absurd values overflowing the multiplication
	if value > 1_000_000 {
		return models.StyleSwing
	}
	hours := value * unitHours[m[2]]
	switch {
	case hours >= 1 && hours <= 3:
		return models.StyleScalper
	case hours >= 4 && hours <= 24:
		return models.StyleIntraday
	case hours > 24:
		return models.StyleSwing
	default:
		return models.StyleUnknown
	}
}
