package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/config"
	"venuemap.taipeimusic.org/internal/geolocate"
	"venuemap.taipeimusic.org/internal/models"
	"venuemap.taipeimusic.org/internal/venues"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCollection() *models.VenueCollection {
	return &models.VenueCollection{
		Version:     "2024.06",
		LastUpdated: "2024-06-01",
		Venues: []models.Venue{
			{ID: "bluenote", Name: "Blue Note", Coordinates: orb.Point{121.5300, 25.0210}, Tags: []string{"Jazz"}, Scenario: []string{"約會"}},
			{ID: "thewall", Name: "The Wall", Coordinates: orb.Point{121.5352, 25.0116}, Tags: []string{"Rock", "Punk"}, Scenario: []string{"平價"}},
			{ID: "revolver", Name: "Revolver", Coordinates: orb.Point{121.5234, 25.0271}, Tags: []string{"Indie", "Rock"}, Scenario: []string{"平價"}},
			{ID: "stacked-1", Name: "Stacked One", Coordinates: orb.Point{121.5400, 25.0500}, Tags: []string{"Electronic"}},
			{ID: "stacked-2", Name: "Stacked Two", Coordinates: orb.Point{121.5400, 25.0500}, Tags: []string{"Electronic"}},
			{ID: "canary", Name: "Canary", Coordinates: orb.Point{121.5301, 25.0211}, IsCanary: true},
		},
	}
}

func newTestApplication(t *testing.T) *Application {
	t.Helper()
	store, err := venues.NewStore(testCollection(), testLogger())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	cfg := config.NewConfig(4000, "testing")
	return New(cfg, testLogger(), store, nil, nil, geolocate.Fixed(orb.Point{121.5654, 25.0330}), "test-version")
}

// serve sends a request through the full router and decodes a JSON body
// into out, when out is not nil.
func serve(t *testing.T, h http.Handler, method, target, session, body string, out any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if out != nil {
		// start from zero so omitted fields do not keep an earlier response
		v := reflect.ValueOf(out).Elem()
		v.Set(reflect.Zero(v.Type()))
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: failed to decode %q: %v", method, target, rr.Body.String(), err)
		}
	}
	return rr
}

func testRoutes(t *testing.T, app *Application) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return app.Routes(ctx)
}

type staticSource struct {
	collection *models.VenueCollection
	err        error
}

func (s staticSource) Load(context.Context) (*models.VenueCollection, error) {
	return s.collection, s.err
}

func (s staticSource) Describe() string { return "static" }

func formatID(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
