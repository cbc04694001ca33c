// Package storage is the key/value layer behind server-side session records.
//
// Three backends are available: an in-process LRU (memory), a SQLite file
// (sqlite) and Redis (redis). All of them honor a per-key TTL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: closed")

// KV is a byte-valued key/value store with per-key expiry.
type KV interface {
	// Get returns the value and true, or false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set writes value under key. A ttl <= 0 keeps the entry until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Backend names a KV implementation.
type Backend string

const (
	MemoryBackend Backend = "memory"
	SQLiteBackend Backend = "sqlite"
	RedisBackend  Backend = "redis"
)

// IsValid checks if the backend type is valid
func (b Backend) IsValid() bool {
	switch b {
	case MemoryBackend, SQLiteBackend, RedisBackend:
		return true
	}
	return false
}

func (b Backend) String() string {
	return string(b)
}

// Backends returns all valid backend names.
func Backends() []string {
	return []string{MemoryBackend.String(), SQLiteBackend.String(), RedisBackend.String()}
}

// Config selects and configures a backend.
type Config struct {
	Backend Backend

	// MemoryMaxEntries bounds the in-process store.
	MemoryMaxEntries int

	SQLitePath string

	// RedisURL wins over RedisAddr when both are set.
	RedisURL  string
	RedisAddr string
}

func (c Config) Validate() error {
	if !c.Backend.IsValid() {
		return fmt.Errorf("invalid storage backend %q (valid: %s)", c.Backend, strings.Join(Backends(), ", "))
	}
	switch c.Backend {
	case SQLiteBackend:
		if c.SQLitePath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case RedisBackend:
		if c.RedisURL == "" && c.RedisAddr == "" {
			return errors.New("REDIS_URL or REDIS_ADDR is required for redis backend")
		}
	}
	return nil
}

// Open builds the configured backend and checks that it is reachable.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (KV, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		kv  KV
		err error
	)
	switch cfg.Backend {
	case MemoryBackend:
		kv = NewMemory(cfg.MemoryMaxEntries)
	case SQLiteBackend:
		kv, err = NewSQLite(ctx, cfg.SQLitePath, logger)
	case RedisBackend:
		kv, err = NewRedis(ctx, cfg.RedisURL, cfg.RedisAddr)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Backend, err)
	}

	logger.Info("Session storage ready", "backend", cfg.Backend.String())
	return kv, nil
}
