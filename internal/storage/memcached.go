package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const memcachedKeyPrefix = "weather:"

// MemcachedKV stores values in memcached with no expiration. Values survive
// widget restarts but not a memcached restart or eviction under memory pressure.
type MemcachedKV struct {
	client *memcache.Client
}

// NewMemcachedKV creates a MemcachedKV. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedKV(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedKV, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedKV{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedKV) key(k string) string {
	return memcachedKeyPrefix + k
}

// Get implements KV.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedKV) Get(ctx context.Context, key string) (string, bool, error) {
	if ctx.Err() != nil {
		return "", false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(item.Value), true, nil
}

// Set implements KV.Set.
func (c *MemcachedKV) Set(ctx context.Context, key, value string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return c.client.Set(&memcache.Item{
		Key:   c.key(key),
		Value: []byte(value),
	})
}

// Ping checks if memcached is reachable.
func (c *MemcachedKV) Ping(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedKV) Close() error {
	return c.client.Close()
}
