package util

import (
	"strconv"
	"time"
)

var layouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
}

// ParseTime tries RFC3339 variants, common wall-clock layouts (read as UTC)
// and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// NormalizeTimeText renders s as RFC3339 UTC when it parses, and returns
// it unchanged otherwise.
func NormalizeTimeText(s string) string {
	if t, ok := ParseTime(s); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return s
}
