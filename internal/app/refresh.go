package app

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/robfig/cron/v3"
	"venuemap.taipeimusic.org/internal/metrics"
	"venuemap.taipeimusic.org/internal/report"
	"venuemap.taipeimusic.org/internal/venues"
)

// RefreshSchedule turns the configured schedule into a cron expression. An
// explicit schedule wins over interval; neither means no refresh.
func RefreshSchedule(schedule string, interval time.Duration) string {
	if schedule != "" {
		return schedule
	}
	if interval > 0 {
		return "@every " + interval.String()
	}
	return ""
}

// StartVenueRefresh reloads the collection from src on the cron schedule
// until ctx is done. A failed reload keeps serving the previous collection.
func (app *Application) StartVenueRefresh(ctx context.Context, src venues.DataSource, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		app.RefreshVenues(ctx, src)
	})
	if err != nil {
		return fmt.Errorf("error scheduling venue refresh: %w", err)
	}
	c.Start()
	app.Logger.Info("Venue refresh scheduled", "schedule", schedule, "source", src.Describe())

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

// RefreshVenues loads src once and installs the result if it succeeded.
func (app *Application) RefreshVenues(ctx context.Context, src venues.DataSource) error {
	collection, err := src.Load(ctx)
	if err == nil {
		var store *venues.Store
		store, err = venues.NewStore(collection, app.Logger)
		if err == nil {
			current, _ := app.Store()
			if store.Version() != "" && store.Version() == current.Version() && store.Len() == current.Len() {
				app.Logger.Debug("Venue collection unchanged", "version", store.Version())
				return nil
			}
			app.ReplaceStore(store)
			report.SetCollectionVersion(store.Version())
			metrics.RecordVenueLoad(store.Len(), len(store.Overlaps()), nil)
			app.Logger.Info("Reloaded venue collection", "source", src.Describe(), "venues", store.Len(), "version", store.Version())
			return nil
		}
	}

	metrics.VenueLoadFailures.Inc()
	app.Logger.Error("Failed to refresh venue collection", "source", src.Describe(), "error", err)
	current, _ := app.Store()
	report.ReportVenueLoadError(err, src.Describe(), current.Version(), sentry.LevelWarning)
	return err
}
