package geolocate

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxCachedIPs bounds the in-process cache; the least recently used IP goes
// first once it is full.
const maxCachedIPs = 4096

// Cached reuses a successful lookup for the same IP for up to MaxAge.
// Failures are never cached.
type Cached struct {
	Locator Locator
	MaxAge  time.Duration

	entries *expirable.LRU[string, Position]
}

func NewCached(l Locator, maxAge time.Duration) *Cached {
	if maxAge <= 0 {
		maxAge = DefaultMaximumAge
	}
	return &Cached{
		Locator: l,
		MaxAge:  maxAge,
		entries: expirable.NewLRU[string, Position](maxCachedIPs, nil, maxAge),
	}
}

func (c *Cached) Locate(ctx context.Context, req Request) (Position, error) {
	if pos, ok := c.entries.Get(req.IP); ok {
		return pos, nil
	}

	pos, err := c.Locator.Locate(ctx, req)
	if err != nil {
		return Position{}, err
	}
	c.entries.Add(req.IP, pos)
	return pos, nil
}
