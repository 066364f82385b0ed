package ratelimit

import (
	"testing"
	"time"
)

func TestAllowPerKey(t *testing.T) {
	l := New(2)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	if !l.Allow(1) || !l.Allow(1) {
		t.Fatalf("burst should allow two requests")
	}
	if l.Allow(1) {
		t.Fatalf("third request should be throttled")
	}
	if !l.Allow(2) {
		t.Fatalf("other keys must not share a bucket")
	}

	clock = clock.Add(30 * time.Second)
	if !l.Allow(1) {
		t.Fatalf("token should refill after 30s")
	}
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	l := New(5)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	l.Allow(1)
	clock = clock.Add(11 * time.Minute)
	l.Allow(2)

	if n := l.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
}
