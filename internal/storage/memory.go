package storage

import (
	"context"
	"sync/atomic"
	"time"

	"moneywire/internal/cache"
)

const defaultMemoryEntries = 10000

// Memory keeps entries in an in-process LRU. Contents are lost on restart.
type Memory struct {
	lru    cache.Cache[[]byte]
	closed atomic.Bool
}

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryEntries
	}
	return &Memory{lru: cache.NewLRUCache[[]byte](maxEntries, 0)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.closed.Load() {
		return nil, false, ErrClosed
	}
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.lru.SetWithTTL(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.lru.Delete(key)
	return nil
}

// CleanExpired implements cache.Cleaner.
func (m *Memory) CleanExpired() int {
	return m.lru.CleanExpired()
}

func (m *Memory) Ping(context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.closed.Store(true)
	return nil
}
