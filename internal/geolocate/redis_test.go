package geolocate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	values map[string]string
	ttl    map[string]time.Duration
	getErr error
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	f.values[key] = string(value.([]byte))
	f.ttl[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func TestRedisCached(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	calls := 0
	inner := LocatorFunc(func(context.Context, Request) (Position, error) {
		calls++
		return Position{Point: orb.Point{121.56, 25.03}}, nil
	})

	t.Run("Caches successful lookups", func(t *testing.T) {
		calls = 0
		store := &fakeRedis{values: map[string]string{}, ttl: map[string]time.Duration{}}
		c := &RedisCached{Locator: inner, Store: store, MaxAge: time.Minute, Logger: logger}

		for i := 0; i < 3; i++ {
			pos, err := c.Locate(context.Background(), Request{IP: "203.0.113.7"})
			if err != nil || pos.Point != (orb.Point{121.56, 25.03}) {
				t.Fatalf("Unexpected result %v %v", pos, err)
			}
		}
		if calls != 1 {
			t.Errorf("Expected one upstream lookup, got %d", calls)
		}
		if store.ttl[redisKeyPrefix+"203.0.113.7"] != time.Minute {
			t.Errorf("Expected entry stored for MaxAge, got %v", store.ttl)
		}
	})

	t.Run("Redis errors fall through", func(t *testing.T) {
		calls = 0
		store := &fakeRedis{values: map[string]string{}, ttl: map[string]time.Duration{}, getErr: errors.New("connection refused")}
		c := &RedisCached{Locator: inner, Store: store, MaxAge: time.Minute, Logger: logger}

		if _, err := c.Locate(context.Background(), Request{IP: "203.0.113.7"}); err != nil {
			t.Fatalf("Expected lookup to succeed, got %v", err)
		}
		if calls != 1 {
			t.Errorf("Expected upstream lookup, got %d calls", calls)
		}
	})

	t.Run("Failures are not cached", func(t *testing.T) {
		store := &fakeRedis{values: map[string]string{}, ttl: map[string]time.Duration{}}
		c := &RedisCached{Locator: Failing(ErrUnavailable), Store: store, MaxAge: time.Minute, Logger: logger}

		if _, err := c.Locate(context.Background(), Request{IP: "203.0.113.8"}); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("Expected ErrUnavailable, got %v", err)
		}
		if len(store.values) != 0 {
			t.Errorf("Expected nothing stored, got %v", store.values)
		}
	})
}

func TestOpenRedisWithoutAddress(t *testing.T) {
	if OpenRedis("", "", 0) != nil {
		t.Error("Expected nil client without an address")
	}
}
