package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// CachedPromHandler serves a Prometheus exposition that is gathered at most
// once per ttl. Scrapes in between get the last rendered body.
type CachedPromHandler struct {
	mu       sync.RWMutex
	body     []byte
	rendered time.Time
	ttl      time.Duration
	h        http.Handler
}

// NewCachedPromHandler renders the gatherer once and then refreshes it every
// ttl until ctx is done.
func NewCachedPromHandler(ctx context.Context, gatherer prometheus.Gatherer, ttl time.Duration) *CachedPromHandler {
	c := &CachedPromHandler{
		ttl: ttl,
		h:   promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
	c.Refresh()
	go c.refreshLoop(ctx)
	return c
}

func (c *CachedPromHandler) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh()
		}
	}
}

// Refresh gathers and renders the metrics now. A failed gather keeps the
// previous body.
func (c *CachedPromHandler) Refresh() {
	rec := &bufferWriter{header: http.Header{}, status: http.StatusOK}
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	c.h.ServeHTTP(rec, req)
	if rec.status != http.StatusOK {
		return
	}

	c.mu.Lock()
	c.body = rec.buf.Bytes()
	c.rendered = time.Now()
	c.mu.Unlock()
}

func (c *CachedPromHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	body, rendered := c.body, c.rendered
	c.mu.RUnlock()

	if len(body) == 0 {
		c.h.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	w.Header().Set("Last-Modified", rendered.UTC().Format(http.TimeFormat))
	_, _ = w.Write(body)
}

// bufferWriter captures what promhttp writes.
type bufferWriter struct {
	buf    bytes.Buffer
	header http.Header
	status int
}

func (b *bufferWriter) Header() http.Header         { return b.header }
func (b *bufferWriter) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *bufferWriter) WriteHeader(status int)      { b.status = status }
