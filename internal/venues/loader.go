package venues

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"venuemap.taipeimusic.org/internal/report"
)

// Load reads the collection from src once and builds a Store.
//
// On any failure it returns an empty store together with the error, so the
// map can still render and the caller can surface that loading failed.
// A partial collection is never returned.
func Load(ctx context.Context, src DataSource, logger *slog.Logger) (*Store, error) {
	collection, err := src.Load(ctx)
	if err != nil {
		reportLoadError(err, src, logger)
		return EmptyStore(), err
	}

	store, err := NewStore(collection, logger)
	if err != nil {
		reportLoadError(err, src, logger)
		return EmptyStore(), err
	}
	return store, nil
}

func reportLoadError(err error, src DataSource, logger *slog.Logger) {
	logger.Error("Failed to load venue collection", "source", src.Describe(), "error", err)
	report.ReportVenueLoadError(err, src.Describe(), "", sentry.LevelError)
}
