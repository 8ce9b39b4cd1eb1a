package analytics

import (
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"venuemap.taipeimusic.org/internal/metrics"
	"venuemap.taipeimusic.org/internal/report"
)

// Tracker receives analytics events. Track must not block for long and
// never reports failures to the caller.
type Tracker interface {
	Track(e Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Track(Event) {}

// Multi fans events out to several trackers. A tracker that panics is
// reported and skipped; the others still receive the event.
type Multi struct {
	Trackers []Tracker
	Logger   *slog.Logger
}

func (m Multi) Track(e Event) {
	for _, t := range m.Trackers {
		m.safeTrack(t, e)
	}
}

func (m Multi) safeTrack(t Tracker, e Event) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("analytics tracker panicked: %v", r)
			if m.Logger != nil {
				m.Logger.Error("Analytics tracker panicked", "event", e.Name, "error", err)
			}
			report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
				Tags:  map[string]string{"event": string(e.Name)},
				Level: sentry.LevelWarning,
			})
		}
	}()
	t.Track(e)
}

// Prometheus counts events by name and their primary label.
type Prometheus struct{}

func (Prometheus) Track(e Event) {
	metrics.AnalyticsEvents.WithLabelValues(string(e.Name), e.Label()).Inc()
}

// Log writes events to a structured logger at debug level.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Track(e Event) {
	attrs := make([]any, 0, 2*len(e.Props)+2)
	attrs = append(attrs, "event", string(e.Name))
	for k, v := range e.Props {
		attrs = append(attrs, k, v)
	}
	l.Logger.Debug("Analytics event", attrs...)
}
