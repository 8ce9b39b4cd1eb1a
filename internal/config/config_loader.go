package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// ValidateSourceFlags ensures that exactly one venue source is specified:
// a collection file "--venues-file", a remote collection URL "--venues-url"
// or a PostgreSQL DSN "--venues-dsn".
func ValidateSourceFlags(venuesFile, venuesURL, venuesDSN string) error {
	set := 0
	for _, s := range []string{venuesFile, venuesURL, venuesDSN} {
		if s != "" {
			set++
		}
	}
	if set == 0 {
		return fmt.Errorf("no venue source provided, one of --venues-file, --venues-url or --venues-dsn must be specified")
	}
	if set > 1 {
		return fmt.Errorf("only one of --venues-file, --venues-url or --venues-dsn can be specified")
	}
	return nil
}

// LoadDotEnv loads environment variables from the given .env files.
// Missing files are not an error; variables already set in the process win.
func LoadDotEnv(logger *slog.Logger, files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			logger.Warn("Failed to load env file", "file", f, "error", err)
			continue
		}
		logger.Info("Loaded env file", "file", f)
	}
}

// retryBaseDelay is the first wait between attempts in DoWithBackoff.
var retryBaseDelay = BASE_BACKOFF

// DoWithBackoff sends req with client, retrying transport errors and 5xx
// responses with exponential backoff and jitter.
//
// maxRetries is the number of retries after the first attempt; zero or less
// retries until ctx is done.
func DoWithBackoff(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	delay := retryBaseDelay
	var lastErr error

	for attempt := 0; maxRetries <= 0 || attempt <= maxRetries; attempt++ {
		resp, err := client.Do(req.WithContext(ctx))
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= http.StatusInternalServerError:
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned status: %d", resp.StatusCode)
		default:
			return resp, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if maxRetries > 0 && attempt == maxRetries {
			break
		}

		wait := time.Until(calculateNextRetryAt(delay))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		delay = calculateNewBackoffDelay(delay)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
