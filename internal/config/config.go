package config

import (
	"os"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/cluster"
	"venuemap.taipeimusic.org/internal/spiderfy"
)

// Config holds all the configuration settings for our application.
type Config struct {
	Port int
	Env  string

	// Exactly one venue source is used, see ValidateSourceFlags.
	VenuesFile     string
	VenuesURL      string
	VenuesDSN      string
	VenuesAuthUser string
	VenuesAuthPass string
	FetchRetries   int

	// Periodic reloads of the venue collection. RefreshSchedule is a cron
	// expression and wins over RefreshInterval; both unset disables them.
	RefreshSchedule string
	RefreshInterval time.Duration

	Cluster cluster.Options

	// Initial map view, used until the client reports its own viewport.
	InitialCenter  orb.Point
	InitialZoom    float64
	ViewportWidth  int
	ViewportHeight int

	SpiderfyRadius float64

	GeolocationURL string
	AnalyticsURL   string

	// Optional shared cache for IP geolocation lookups.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewConfig creates a Config for the given port and environment with every
// other setting at its default.
func NewConfig(port int, env string) *Config {
	return &Config{
		Port:           port,
		Env:            env,
		FetchRetries:   3,
		Cluster:        cluster.DefaultOptions(),
		InitialCenter:  orb.Point{121.5325, 25.0420},
		InitialZoom:    12,
		ViewportWidth:  1280,
		ViewportHeight: 800,
		SpiderfyRadius: spiderfy.DefaultRadius,
	}
}

// EnvOr returns the environment variable named key, or fallback when it is unset or empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvIntOr is EnvOr for integer settings; unparsable values fall back too.
func EnvIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
