package geolocate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "venuemap:geolocate:"

// positionStore is the part of *redis.Client RedisCached needs.
type positionStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCached shares successful lookups between processes through Redis.
// Redis failures fall through to the wrapped locator and are only logged.
type RedisCached struct {
	Locator Locator
	Store   positionStore
	MaxAge  time.Duration
	Logger  *slog.Logger
}

// OpenRedis returns a client for addr, or nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func NewRedisCached(l Locator, rc *redis.Client, maxAge time.Duration, logger *slog.Logger) *RedisCached {
	if maxAge <= 0 {
		maxAge = DefaultMaximumAge
	}
	return &RedisCached{Locator: l, Store: rc, MaxAge: maxAge, Logger: logger}
}

func (c *RedisCached) Locate(ctx context.Context, req Request) (Position, error) {
	if req.IP == "" {
		return c.Locator.Locate(ctx, req)
	}
	key := redisKeyPrefix + req.IP

	raw, err := c.Store.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var pos Position
		if err := json.Unmarshal(raw, &pos); err == nil {
			return pos, nil
		}
		c.Logger.Warn("Discarding malformed cached position", "key", key)
	case !errors.Is(err, redis.Nil):
		c.Logger.Warn("Redis lookup failed", "key", key, "error", err)
	}

	pos, err := c.Locator.Locate(ctx, req)
	if err != nil {
		return Position{}, err
	}
	if data, err := json.Marshal(pos); err == nil {
		if err := c.Store.Set(ctx, key, data, c.MaxAge).Err(); err != nil {
			c.Logger.Warn("Redis store failed", "key", key, "error", err)
		}
	}
	return pos, nil
}
