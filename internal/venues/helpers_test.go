package venues

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticSource serves a fixed collection or error.
type staticSource struct {
	collection *models.VenueCollection
	err        error
}

func (s staticSource) Describe() string { return "static" }

func (s staticSource) Load(ctx context.Context) (*models.VenueCollection, error) {
	return s.collection, s.err
}

func venue(id string, lng, lat float64, tags, scenario []string) models.Venue {
	return models.Venue{
		ID:          id,
		Name:        "Venue " + id,
		Coordinates: orb.Point{lng, lat},
		Tags:        tags,
		Scenario:    scenario,
	}
}

func mustStore(t *testing.T, vs ...models.Venue) *Store {
	t.Helper()
	s, err := NewStore(&models.VenueCollection{Venues: vs, Version: "test"}, testLogger())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func ids(vs []models.Venue) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.ID
	}
	return out
}
