// Package cachedriver is the Cache Driver Adapter (spec.md §4.D): plain
// get/setex operations against Redis, grounded on the teacher's
// pkg/redis/client.go wrapper around github.com/redis/go-redis/v9. Unlike
// the teacher's client it stores raw strings rather than JSON envelopes —
// the cache tier above it already works with opaque string query
// results — and its own connection-pool sizing comes from
// config.CacheConfig rather than hardcoded constants.
package cachedriver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mydevhero/cacherepo/internal/config"
	"github.com/mydevhero/cacherepo/internal/rerr"
)

// Adapter wraps a *redis.Client configured from config.CacheConfig.
type Adapter struct {
	client *redis.Client
}

// New builds an Adapter and configures go-redis's own internal pool from
// cfg, per spec.md §4.D ("the core treats a cache adapter as its own
// mini-pool").
func New(cfg config.CacheConfig) *Adapter {
	opts := &redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DB:              cfg.Index,
		Username:        cfg.Username,
		Password:        cfg.Password,
		ClientName:      cfg.ClientName,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		ConnMaxLifetime: cfg.ConnectionLifetime,
		ConnMaxIdleTime: cfg.ConnectionIdleTime,
		DialTimeout:     cfg.CommandTimeout,
		ReadTimeout:     cfg.CommandTimeout,
		WriteTimeout:    cfg.CommandTimeout,
	}
	return &Adapter{client: redis.NewClient(opts)}
}

// Ping checks connectivity with one round trip, classifying failure as
// Broken the way the teacher's NewClient did with a hard error return.
// New does not call it.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.client.Ping(ctx).Err(); err != nil {
		return rerr.New(rerr.Broken, "cachedriver.Ping", err)
	}
	return nil
}

// Get returns (value, true, nil) on a hit, ("", false, nil) on a clean
// miss, or a classified error when the round-trip itself failed.
func (a *Adapter) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := a.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, rerr.New(rerr.Broken, "cachedriver.Get", err)
	}
	return val, true, nil
}

// SetEX stores value under key with the given TTL.
func (a *Adapter) SetEX(ctx context.Context, key string, ttl time.Duration, value string) error {
	if err := a.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return rerr.New(rerr.CacheStore, "cachedriver.SetEX", err)
	}
	return nil
}

// Close releases the underlying client's resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}
