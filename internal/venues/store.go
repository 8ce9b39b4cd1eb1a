package venues

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/geo"
	"venuemap.taipeimusic.org/internal/models"
)

// Store is the immutable, canary-free venue collection served to the map.
// It is safe for concurrent reads; a new collection means a new Store.
type Store struct {
	venues      []models.Venue
	byID        map[string]int
	version     string
	lastUpdated string
	overlaps    [][]string
}

// EmptyStore returns a store with no venues, used when loading fails.
func EmptyStore() *Store {
	return &Store{byID: map[string]int{}}
}

// NewStore validates a collection and builds a Store from it.
//
// Canary venues are dropped here and nowhere else. A venue without an id makes
// the whole collection malformed. Duplicate ids keep the first occurrence.
// Venues with out-of-range coordinates are kept but logged; the cluster index
// skips them.
func NewStore(collection *models.VenueCollection, logger *slog.Logger) (*Store, error) {
	if collection == nil {
		return nil, fmt.Errorf("venue collection is nil")
	}

	s := &Store{
		venues:      make([]models.Venue, 0, len(collection.Venues)),
		byID:        make(map[string]int, len(collection.Venues)),
		version:     collection.Version,
		lastUpdated: collection.LastUpdated,
	}

	canaries := 0
	for i, v := range collection.Venues {
		if strings.TrimSpace(v.ID) == "" {
			return nil, fmt.Errorf("venue at index %d has no id", i)
		}
		if v.IsCanary {
			canaries++
			continue
		}
		if _, dup := s.byID[v.ID]; dup {
			logger.Warn("Duplicate venue id, keeping first occurrence", "id", v.ID, "index", i)
			continue
		}
		if !geo.IsValidPoint(v.Coordinates) {
			logger.Warn("Venue has invalid coordinates", "id", v.ID, "lng", v.Lng(), "lat", v.Lat())
		}
		s.byID[v.ID] = len(s.venues)
		s.venues = append(s.venues, v)
	}

	points := make([]orb.Point, len(s.venues))
	for i, v := range s.venues {
		points[i] = v.Coordinates
	}
	for _, group := range geo.GroupOverlapping(points) {
		ids := make([]string, len(group))
		for i, idx := range group {
			ids[i] = s.venues[idx].ID
		}
		s.overlaps = append(s.overlaps, ids)
		logger.Info("Venues share a location", "ids", ids)
	}

	logger.Info("Venue store ready",
		"venues", len(s.venues),
		"canaries_removed", canaries,
		"overlap_groups", len(s.overlaps),
		"version", s.version)

	return s, nil
}

// Len returns the number of venues in the store.
func (s *Store) Len() int { return len(s.venues) }

func (s *Store) Version() string { return s.version }

func (s *Store) LastUpdated() string { return s.lastUpdated }

// Overlaps returns the ids of venues sharing a location, grouped.
func (s *Store) Overlaps() [][]string { return s.overlaps }

// All returns every venue in collection order. The slice is a copy.
func (s *Store) All() []models.Venue {
	out := make([]models.Venue, len(s.venues))
	copy(out, s.venues)
	return out
}

// ByID looks up a single venue.
func (s *Store) ByID(id string) (models.Venue, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.Venue{}, false
	}
	return s.venues[i], true
}

// Filtered returns venues carrying at least one of the filter's tags and at
// least one of its scenarios. An empty field matches every venue.
func (s *Store) Filtered(filter models.VenueFilter) []models.Venue {
	var out []models.Venue
	for _, v := range s.venues {
		if matchesFilter(v, filter) {
			out = append(out, v)
		}
	}
	return out
}

func matchesFilter(v models.Venue, filter models.VenueFilter) bool {
	if len(filter.Tags) > 0 && !hasAny(filter.Tags, v.HasTag) {
		return false
	}
	if len(filter.Scenario) > 0 && !hasAny(filter.Scenario, v.HasScenario) {
		return false
	}
	return true
}

func hasAny(labels []string, has func(string) bool) bool {
	for _, l := range labels {
		if has(l) {
			return true
		}
	}
	return false
}

// Search returns venues whose name, tags, scenarios or review contain the
// query, ignoring case. The empty query matches everything.
func (s *Store) Search(query string) []models.Venue {
	if query == "" {
		return s.All()
	}
	q := strings.ToLower(query)

	var out []models.Venue
	for _, v := range s.venues {
		if matchesQuery(v, q) {
			out = append(out, v)
		}
	}
	return out
}

func matchesQuery(v models.Venue, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(v.Name), lowerQuery) ||
		strings.Contains(strings.ToLower(v.OriginalReview), lowerQuery) {
		return true
	}
	for _, t := range v.Tags {
		if strings.Contains(strings.ToLower(t), lowerQuery) {
			return true
		}
	}
	for _, sc := range v.Scenario {
		if strings.Contains(strings.ToLower(sc), lowerQuery) {
			return true
		}
	}
	return false
}

// Query combines filtering and search the way the map does: both are
// evaluated against the full collection and intersected by id. A query of
// only whitespace is no search at all.
func (s *Store) Query(filter models.VenueFilter, query string) []models.Venue {
	searching := strings.TrimSpace(query) != ""

	switch {
	case filter.IsEmpty() && !searching:
		return s.All()
	case !searching:
		return s.Filtered(filter)
	case filter.IsEmpty():
		return s.Search(query)
	}

	matched := make(map[string]struct{})
	for _, v := range s.Search(query) {
		matched[v.ID] = struct{}{}
	}
	var out []models.Venue
	for _, v := range s.Filtered(filter) {
		if _, ok := matched[v.ID]; ok {
			out = append(out, v)
		}
	}
	return out
}
