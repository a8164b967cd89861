// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores search result sets in Redis so repeated
// sub-questions skip the upstream APIs.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// keyPrefix namespaces every key written by this package.
const keyPrefix = "research-assistant:"

// Redis is a search.Cache backed by a Redis server.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to the server in cfg and pings it once.
func NewRedis(ctx context.Context, cfg types.CacheConfig) (*Redis, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("redis address is empty")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}
	return &Redis{rdb: rdb}, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Get returns the stored value and whether it existed.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Set stores value under key. A zero ttl keeps the key forever.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
