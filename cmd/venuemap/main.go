package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"venuemap.taipeimusic.org/internal/app"
	"venuemap.taipeimusic.org/internal/config"
	"venuemap.taipeimusic.org/internal/logger"
	"venuemap.taipeimusic.org/internal/metrics"
	"venuemap.taipeimusic.org/internal/report"
	"venuemap.taipeimusic.org/internal/venues"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	config.LoadDotEnv(slog.Default(), ".env", ".env.local")

	cfg := config.NewConfig(4000, "development")

	flag.IntVar(&cfg.Port, "port", config.EnvIntOr("PORT", 4000), "API server port")
	flag.StringVar(&cfg.Env, "env", config.EnvOr("ENV", "development"), "Environment (development|staging|production)")
	flag.StringVar(&cfg.VenuesFile, "venues-file", config.EnvOr("VENUES_FILE", ""), "Path to a local venue collection (.json, .yaml, optionally .zst)")
	flag.StringVar(&cfg.VenuesURL, "venues-url", config.EnvOr("VENUES_URL", ""), "URL of a remote venue collection")
	flag.StringVar(&cfg.VenuesDSN, "venues-dsn", config.EnvOr("VENUES_DSN", ""), "PostgreSQL DSN of the venue database")
	flag.IntVar(&cfg.FetchRetries, "fetch-retries", config.EnvIntOr("FETCH_RETRIES", cfg.FetchRetries), "Retries for remote venue fetches")
	flag.DurationVar(&cfg.RefreshInterval, "refresh-interval", 0, "Reload the venue collection this often (0 disables)")
	flag.StringVar(&cfg.RefreshSchedule, "refresh-schedule", config.EnvOr("REFRESH_SCHEDULE", ""), "Cron expression for venue reloads, overrides -refresh-interval")
	flag.StringVar(&cfg.GeolocationURL, "geolocation-url", config.EnvOr("GEOLOCATION_URL", ""), "IP geolocation endpoint, may contain {ip}")
	flag.StringVar(&cfg.AnalyticsURL, "analytics-url", config.EnvOr("ANALYTICS_URL", ""), "Endpoint receiving analytics events as JSON")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", config.EnvOr("REDIS_ADDR", ""), "Redis address for the shared geolocation cache")
	flag.Float64Var(&cfg.Cluster.Radius, "cluster-radius", cfg.Cluster.Radius, "Cluster radius in pixels")
	flag.IntVar(&cfg.Cluster.MaxZoom, "cluster-max-zoom", cfg.Cluster.MaxZoom, "Highest zoom at which venues are clustered")
	flag.Parse()

	cfg.VenuesAuthUser = os.Getenv("VENUES_AUTH_USER")
	cfg.VenuesAuthPass = os.Getenv("VENUES_AUTH_PASS")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = config.EnvIntOr("REDIS_DB", 0)

	if err := config.ValidateSourceFlags(cfg.VenuesFile, cfg.VenuesURL, cfg.VenuesDSN); err != nil {
		fmt.Println("Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	log := logger.New(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	if err := report.SetupSentry(cfg.Env, version); err != nil {
		log.Warn("Sentry disabled", "error", err)
	}
	defer report.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		report.ReportError(err, sentry.LevelFatal)
		report.FlushSentry()
		log.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	client := app.NewPooledClient()

	src, closeSource, err := newSource(ctx, cfg, client)
	if err != nil {
		return err
	}
	defer closeSource()

	// A failed load still serves an empty map; the healthcheck reports it.
	store, loadErr := venues.Load(ctx, src, log)
	metrics.RecordVenueLoad(store.Len(), len(store.Overlaps()), loadErr)
	report.ConfigureScope(cfg.Env, version)
	report.SetCollectionVersion(store.Version())
	log.Info("Loaded venue collection",
		"source", src.Describe(), "venues", store.Len(), "version", store.Version(), "overlap_groups", len(store.Overlaps()))

	tracker, beacon := newTracker(cfg, client, log)
	if beacon != nil {
		beacon.Start(ctx)
	}

	application := app.New(cfg, log, store, loadErr, tracker, newLocator(cfg, client, log), version)
	if schedule := app.RefreshSchedule(cfg.RefreshSchedule, cfg.RefreshInterval); schedule != "" {
		if err := application.StartVenueRefresh(ctx, src, schedule); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      application.Routes(ctx),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr, "env", cfg.Env)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if beacon != nil {
		beacon.Wait()
	}
	return nil
}
