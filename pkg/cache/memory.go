package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache implements Service on an in-process expiring map.
type MemoryCache struct {
	store *gocache.Cache
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &MemoryCache{store: gocache.New(cfg.DefaultTTL, cfg.CleanupInterval)}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = gocache.DefaultExpiration
	}
	mc.store.Set(key, data, expiration)
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	v, ok := mc.store.Get(key)
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(v.([]byte), dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		mc.store.Delete(key)
	}
	return nil
}

func (mc *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) error {
	for key := range mc.store.Items() {
		if strings.HasPrefix(key, prefix) {
			mc.store.Delete(key)
		}
	}
	return nil
}

func (mc *MemoryCache) Close() error {
	mc.store.Flush()
	return nil
}
