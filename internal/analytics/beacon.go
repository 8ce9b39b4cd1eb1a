package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"venuemap.taipeimusic.org/internal/config"
	"venuemap.taipeimusic.org/internal/metrics"
)

const (
	DefaultBeaconQueue   = 256
	DefaultBeaconTimeout = 5 * time.Second
)

// Beacon posts events as JSON to an HTTP endpoint from a background
// goroutine. Events are dropped, never retried, when the queue is full, the
// endpoint fails or the endpoint is backing off after a failure.
type Beacon struct {
	URL     string
	Client  *http.Client
	Logger  *slog.Logger
	Timeout time.Duration

	backoff *config.BackoffStore
	queue   chan Event
	wg      sync.WaitGroup
}

// NewBeacon creates a beacon for url. Start must be called for events to be sent.
func NewBeacon(url string, client *http.Client, logger *slog.Logger) *Beacon {
	if client == nil {
		client = http.DefaultClient
	}
	return &Beacon{
		URL:     url,
		Client:  client,
		Logger:  logger,
		Timeout: DefaultBeaconTimeout,
		backoff: config.NewBackoffStore(),
		queue:   make(chan Event, DefaultBeaconQueue),
	}
}

func (b *Beacon) Track(e Event) {
	select {
	case b.queue <- e:
	default:
		metrics.AnalyticsBeaconDropped.WithLabelValues("queue_full").Inc()
	}
}

// Start sends queued events from a new goroutine until ctx is done. Wait
// returns once that goroutine has stopped.
func (b *Beacon) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run(ctx)
	}()
}

func (b *Beacon) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-b.queue:
			b.send(ctx, e)
		}
	}
}

// Wait blocks until the goroutine started by Start has returned.
func (b *Beacon) Wait() {
	b.wg.Wait()
}

func (b *Beacon) send(ctx context.Context, e Event) {
	if !b.backoff.Ready(b.URL) {
		metrics.AnalyticsBeaconDropped.WithLabelValues("backoff").Inc()
		return
	}

	body, err := json.Marshal(e)
	if err != nil {
		metrics.AnalyticsBeaconDropped.WithLabelValues("encode").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.URL, bytes.NewReader(body))
	if err != nil {
		metrics.AnalyticsBeaconDropped.WithLabelValues("request").Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.Client.Do(req)
	if err != nil {
		b.fail(e, err.Error())
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		b.fail(e, resp.Status)
		return
	}
	b.backoff.ResetBackoff(b.URL)
}

func (b *Beacon) fail(e Event, reason string) {
	b.backoff.UpdateBackoff(b.URL)
	metrics.AnalyticsBeaconDropped.WithLabelValues("delivery").Inc()
	next, _ := b.backoff.NextRetryAt(b.URL)
	b.Logger.Warn("Analytics beacon delivery failed, dropping events until retry",
		"url", b.URL, "event", e.Name, "reason", reason, "next_retry_at", next)
}
