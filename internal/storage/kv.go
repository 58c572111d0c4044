// Package storage provides the durable key/value store behind the search history.
//
// Values are opaque strings. Concurrent writers from separate processes are
// last-writer-wins; no backend coordinates across processes.
package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// KV is a string key/value store that survives widget restarts.
// Get returns ok=false with a nil error when the key is absent.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Pinger is implemented by backends that talk to a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
)

// Options selects and configures a backend.
type Options struct {
	Backend string

	FilePath   string
	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
}

// Open builds the configured backend wrapped with metrics instrumentation.
func Open(ctx context.Context, opts Options) (KV, error) {
	var (
		kv  KV
		err error
	)
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	switch backend {
	case BackendMemory:
		kv = NewMemoryKV()
	case BackendFile, "":
		backend = BackendFile
		kv, err = NewFileKV(opts.FilePath)
	case BackendSQLite:
		kv, err = NewSQLiteKV(ctx, opts.SQLitePath)
	case BackendRedis:
		kv, err = NewRedisKV(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix)
	case BackendMemcached:
		kv, err = NewMemcachedKV(opts.MemcachedAddrs, opts.MemcachedTimeout, opts.MemcachedMaxIdleConns)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", backend, err)
	}
	return Instrument(kv, backend), nil
}

// MemoryKV keeps values in a map. Nothing survives the process; used for tests
// and throwaway sessions.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// Get implements KV.Get.
func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	if ctx.Err() != nil {
		return "", false, ctx.Err()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements KV.Set.
func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Close implements KV.Close.
func (m *MemoryKV) Close() error { return nil }
