// Package cache provides the Redis adapter used by the legal-case lookup
// endpoint. Redis is optional: a nil cache degrades to always-miss so the
// service runs without it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/defeso/backend/internal/core"
)

// LegalCaseCache caches provider lookups keyed by the clean case number.
type LegalCaseCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to Redis and verifies connectivity. The caller decides
// whether a connection failure is fatal or means running cache-less.
func New(addr, password string, db int, ttl time.Duration) (*LegalCaseCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}

	slog.Info("Redis connected", "addr", addr, "db", db)
	return &LegalCaseCache{rdb: rdb, ttl: ttl}, nil
}

// Close shuts down the underlying client.
func (c *LegalCaseCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

func cacheKey(cleanNumber string) string {
	return "processo:" + cleanNumber
}

// Get returns the cached case, or (nil, false) on miss, decode failure or a
// nil cache.
func (c *LegalCaseCache) Get(ctx context.Context, cleanNumber string) (*core.LegalCase, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey(cleanNumber)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("legal-case cache read failed", "error", err)
		}
		return nil, false
	}
	var legalCase core.LegalCase
	if err := json.Unmarshal(raw, &legalCase); err != nil {
		slog.Warn("legal-case cache entry corrupt, dropping", "key", cleanNumber, "error", err)
		c.rdb.Del(ctx, cacheKey(cleanNumber))
		return nil, false
	}
	return &legalCase, true
}

// Put stores the case under its clean number. Write failures only log; the
// lookup result was already obtained.
func (c *LegalCaseCache) Put(ctx context.Context, cleanNumber string, legalCase *core.LegalCase) {
	if c == nil || legalCase == nil {
		return
	}
	raw, err := json.Marshal(legalCase)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(cleanNumber), raw, c.ttl).Err(); err != nil {
		slog.Warn("legal-case cache write failed", "error", err)
	}
}

// Invalidate removes a cached case, used after the sync job refreshes it.
func (c *LegalCaseCache) Invalidate(ctx context.Context, cleanNumber string) {
	if c == nil {
		return
	}
	c.rdb.Del(ctx, cacheKey(cleanNumber))
}
