package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type item struct {
	Pair  string `json:"pair"`
	Count int    `json:"count"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	var got item
	if err := mc.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := mc.Set(ctx, Key("history", "XAUUSD", "Scalper"), item{Pair: "XAUUSD", Count: 2}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := mc.Get(ctx, "history:XAUUSD:Scalper", &got); err != nil || got.Count != 2 {
		t.Fatalf("Get() = %+v, %v", got, err)
	}
}

func TestMemoryCacheDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	_ = mc.Set(ctx, "history:XAUUSD:Swing", 1, 0)
	_ = mc.Set(ctx, "history:EURUSD:Swing", 1, 0)
	_ = mc.Set(ctx, "other", 1, 0)

	if err := mc.DeleteByPrefix(ctx, "history:"); err != nil {
		t.Fatalf("DeleteByPrefix() error = %v", err)
	}
	var v int
	if err := mc.Get(ctx, "history:XAUUSD:Swing", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected prefix entries removed")
	}
	if err := mc.Get(ctx, "other", &v); err != nil {
		t.Fatalf("unrelated key removed: %v", err)
	}
}

func TestGetOrLoadCachesResult(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	calls := 0
	load := func(context.Context) ([]item, error) {
		calls++
		return []item{{Pair: "BTCUSD", Count: 1}}, nil
	}
	for i := 0; i < 3; i++ {
		got, err := GetOrLoad(ctx, mc, "k", time.Minute, load)
		if err != nil || len(got) != 1 {
			t.Fatalf("GetOrLoad() = %v, %v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
}
