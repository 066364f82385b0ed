package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestNormalizeTimeText(t *testing.T) {
	cases := map[string]string{
		"2024-10-10 10:10:10":       "2024-10-10T10:10:10Z",
		"2024-10-10T17:10:10+07:00": "2024-10-10T10:10:10Z",
		"in 3 days":                 "in 3 days",
		"":                          "",
	}
	for in, want := range cases {
		if got := NormalizeTimeText(in); got != want {
			t.Errorf("NormalizeTimeText(%q) = %q, want %q", in, got, want)
		}
	}
}
