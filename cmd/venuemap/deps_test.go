package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"venuemap.taipeimusic.org/internal/analytics"
	"venuemap.taipeimusic.org/internal/config"
	"venuemap.taipeimusic.org/internal/geolocate"
	"venuemap.taipeimusic.org/internal/venues"
)

func TestNewSource(t *testing.T) {
	cfg := config.NewConfig(4000, "testing")
	cfg.VenuesURL = "https://data.example.com/venues.json"

	src, closeSource, err := newSource(context.Background(), cfg, http.DefaultClient)
	if err != nil {
		t.Fatalf("newSource failed: %v", err)
	}
	defer closeSource()
	if u, ok := src.(venues.URLSource); !ok || u.MaxRetries != 3 {
		t.Errorf("Expected URL source with 3 retries, got %#v", src)
	}

	cfg.VenuesURL = ""
	cfg.VenuesFile = "venues.yaml"
	src, _, _ = newSource(context.Background(), cfg, http.DefaultClient)
	if src.Describe() != "file:venues.yaml" {
		t.Errorf("Expected file source, got %s", src.Describe())
	}
}

func TestNewTracker(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.NewConfig(4000, "testing")

	tracker, beacon := newTracker(cfg, http.DefaultClient, log)
	if beacon != nil || len(tracker.(analytics.Multi).Trackers) != 2 {
		t.Errorf("Expected prometheus and log trackers only, got %#v", tracker)
	}

	cfg.AnalyticsURL = "https://collect.example.com/events"
	tracker, beacon = newTracker(cfg, http.DefaultClient, log)
	if beacon == nil || len(tracker.(analytics.Multi).Trackers) != 3 {
		t.Errorf("Expected a beacon tracker, got %#v", tracker)
	}
}

func TestNewLocator(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.NewConfig(4000, "testing")

	_, err := newLocator(cfg, http.DefaultClient, log).Locate(context.Background(), geolocate.Request{IP: "203.0.113.1"})
	if geolocate.Kind(err) != "unavailable" {
		t.Errorf("Expected unavailable without an endpoint, got %v", err)
	}

	cfg.GeolocationURL = "http://ip-api.example.com/json/{ip}"
	if _, ok := newLocator(cfg, http.DefaultClient, log).(*geolocate.Cached); !ok {
		t.Error("Expected an in-process cache without Redis")
	}
	cfg.RedisAddr = "127.0.0.1:6379"
	if _, ok := newLocator(cfg, http.DefaultClient, log).(*geolocate.RedisCached); !ok {
		t.Error("Expected a Redis cache when an address is set")
	}
}
