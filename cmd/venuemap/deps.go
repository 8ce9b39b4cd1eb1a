package main

import (
	"context"
	"log/slog"
	"net/http"

	"venuemap.taipeimusic.org/internal/analytics"
	"venuemap.taipeimusic.org/internal/config"
	"venuemap.taipeimusic.org/internal/geolocate"
	"venuemap.taipeimusic.org/internal/venues"
)

// newSource returns the venue source selected by the flags and a function
// releasing it.
func newSource(ctx context.Context, cfg *config.Config, client *http.Client) (venues.DataSource, func(), error) {
	switch {
	case cfg.VenuesDSN != "":
		pg, err := venues.OpenPostgres(ctx, cfg.VenuesDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	case cfg.VenuesURL != "":
		return venues.URLSource{
			URL:        cfg.VenuesURL,
			AuthUser:   cfg.VenuesAuthUser,
			AuthPass:   cfg.VenuesAuthPass,
			Client:     client,
			MaxRetries: cfg.FetchRetries,
		}, func() {}, nil
	default:
		return venues.FileSource{Path: cfg.VenuesFile}, func() {}, nil
	}
}

// newTracker counts every event in Prometheus and logs it, and also posts
// it to the analytics endpoint when one is configured.
func newTracker(cfg *config.Config, client *http.Client, log *slog.Logger) (analytics.Tracker, *analytics.Beacon) {
	trackers := []analytics.Tracker{analytics.Prometheus{}, analytics.Log{Logger: log}}
	var beacon *analytics.Beacon
	if cfg.AnalyticsURL != "" {
		beacon = analytics.NewBeacon(cfg.AnalyticsURL, client, log)
		trackers = append(trackers, beacon)
	}
	return analytics.Multi{Trackers: trackers, Logger: log}, beacon
}

// newLocator returns the server side IP locator, or geolocate.Unavailable
// when no endpoint is configured. Lookups are cached in Redis when an address
// is given and in process otherwise.
func newLocator(cfg *config.Config, client *http.Client, log *slog.Logger) geolocate.Locator {
	if cfg.GeolocationURL == "" {
		return geolocate.Unavailable
	}
	l := geolocate.WithTimeout(geolocate.IPLocator{URL: cfg.GeolocationURL, Client: client}, geolocate.DefaultTimeout)
	if rc := geolocate.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); rc != nil {
		log.Info("Caching geolocation lookups in Redis", "addr", cfg.RedisAddr)
		return geolocate.NewRedisCached(l, rc, geolocate.DefaultMaximumAge, log)
	}
	return geolocate.NewCached(l, geolocate.DefaultMaximumAge)
}
