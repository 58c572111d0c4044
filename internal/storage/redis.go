package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "weather:"

// RedisKV stores values as plain redis strings without a TTL; expiry of
// history entries is handled above this layer.
type RedisKV struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisKV creates a RedisKV. An empty prefix uses "weather:".
func NewRedisKV(addr, password string, db int, prefix string) (*RedisKV, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisKV{rdb: rdb, prefix: prefix}, nil
}

func (r *RedisKV) key(k string) string {
	return r.prefix + k
}

// Get implements KV.Get.
func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements KV.Set.
func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.rdb.Set(ctx, r.key(key), value, 0).Err()
}

// Ping checks if redis is reachable.
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the redis client.
func (r *RedisKV) Close() error {
	return r.rdb.Close()
}
