package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares cached read models between API instances. Each owner
// has a generation counter that is part of every key; Invalidate bumps it so
// older entries become unreachable and expire on their own.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to redisURL, accepting both redis://host:port and a
// bare host:port.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	if !strings.Contains(redisURL, "://") {
		redisURL = "redis://" + redisURL
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisCacheWithClient(client, ttl), nil
}

func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "ledger"}
}

func (c *RedisCache) genKey(ownerID int64) string {
	return fmt.Sprintf("%s:%d:gen", c.prefix, ownerID)
}

func (c *RedisCache) valueKey(ownerID, gen int64, key string) string {
	return fmt.Sprintf("%s:%d:%d:%s", c.prefix, ownerID, gen, key)
}

func (c *RedisCache) Get(ctx context.Context, ownerID int64, key string, dst any) (int64, bool) {
	gen, err := c.client.Get(ctx, c.genKey(ownerID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		slog.WarnContext(ctx, "Redis cache unavailable", "operation", "get", "error", err)
		return -1, false
	}
	raw, err := c.client.Get(ctx, c.valueKey(ownerID, gen, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "Redis cache unavailable", "operation", "get", "error", err)
		}
		return gen, false
	}
	return gen, json.Unmarshal(raw, dst) == nil
}

// Set stores v under gen. A value computed across an Invalidate lands under
// a generation nobody reads and expires with the TTL.
func (c *RedisCache) Set(ctx context.Context, ownerID, gen int64, key string, v any) {
	if gen < 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.valueKey(ownerID, gen, key), raw, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Redis cache unavailable", "operation", "set", "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, ownerID int64) {
	if err := c.client.Incr(ctx, c.genKey(ownerID)).Err(); err != nil {
		slog.ErrorContext(ctx, "Redis cache invalidation failed", "owner_id", ownerID, "error", err)
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
