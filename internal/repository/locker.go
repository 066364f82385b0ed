package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"SignalRelay/internal/domain/repository"
)

// RedsyncLocker serialises work on one key across processes.
type RedsyncLocker struct {
	rs     *redsync.Redsync
	ttl    time.Duration
	prefix string
}

func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	return redsync.New(goredis.NewPool(rdb))
}

func NewRedsyncLocker(rs *redsync.Redsync, ttl time.Duration) repository.Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedsyncLocker{rs: rs, ttl: ttl, prefix: "signalrelay:lock:"}
}

func (l *RedsyncLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	m := l.rs.NewMutex(l.prefix+key,
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(20),
		redsync.WithRetryDelay(100*time.Millisecond))
	if err := m.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if _, err := m.UnlockContext(ctx); err != nil {
			return fmt.Errorf("unlock %s: %w", key, err)
		}
		return nil
	}, nil
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}
	return func(context.Context) error {
		<-ch
		return nil
	}, nil
}
