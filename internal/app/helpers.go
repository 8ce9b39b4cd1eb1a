package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/models"
	"venuemap.taipeimusic.org/internal/report"
)

const sessionHeader = "X-Session-ID"

type envelope map[string]any

func (app *Application) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		app.Logger.Error("Failed to encode response", "error", err)
	}
}

// readJSON decodes a single JSON object of at most 1MB from the body into
// dst. An empty body leaves dst untouched.
func (app *Application) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxBytesError *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)
		default:
			return fmt.Errorf("invalid JSON body: %w", err)
		}
	}
	if dec.More() {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func (app *Application) errorResponse(w http.ResponseWriter, status int, message string) {
	app.writeJSON(w, status, envelope{"error": message})
}

func (app *Application) badRequest(w http.ResponseWriter, err error) {
	app.errorResponse(w, http.StatusBadRequest, err.Error())
}

func (app *Application) notFound(w http.ResponseWriter, message string) {
	app.errorResponse(w, http.StatusNotFound, message)
}

func (app *Application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.Logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
		Tags:  map[string]string{"path": r.URL.Path},
		Level: sentry.LevelError,
	})
	app.errorResponse(w, http.StatusInternalServerError, "the server could not process the request")
}

// labels reads a comma separated or repeated query parameter.
func labels(values []string) []string {
	var out []string
	for _, v := range values {
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, l)
			}
		}
	}
	return out
}

func filterFromQuery(r *http.Request) models.VenueFilter {
	q := r.URL.Query()
	return models.VenueFilter{Tags: labels(q["tags"]), Scenario: labels(q["scenario"])}
}

func indexKey(filter models.VenueFilter, query string) string {
	tags := append([]string(nil), filter.Tags...)
	scenario := append([]string(nil), filter.Scenario...)
	sort.Strings(tags)
	sort.Strings(scenario)
	return strings.Join(tags, ",") + "|" + strings.Join(scenario, ",") + "|" + strings.ToLower(strings.TrimSpace(query))
}

func parseFloat(r *http.Request, key string) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

// parseLatLon reads a "lat,lon" pair.
func parseLatLon(raw string) (orb.Point, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("expected lat,lon, got %q", raw)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return orb.Point{}, fmt.Errorf("expected lat,lon, got %q", raw)
	}
	return orb.Point{lon, lat}, nil
}

func parseClusterID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cluster id %q", raw)
	}
	return id, nil
}
