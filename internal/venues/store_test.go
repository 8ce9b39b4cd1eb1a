package venues

import (
	"reflect"
	"testing"

	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/models"
)

func TestNewStore(t *testing.T) {
	t.Run("RemovesCanaries", func(t *testing.T) {
		canary := venue("canary", 121.5, 25.0, []string{"Jazz"}, []string{"約會"})
		canary.Name = "Jazz Canary"
		canary.IsCanary = true
		s := mustStore(t, venue("a", 121.5, 25.0, []string{"Jazz"}, []string{"約會"}), canary)

		checks := map[string][]models.Venue{
			"All":      s.All(),
			"Filtered": s.Filtered(models.VenueFilter{Tags: []string{"Jazz"}}),
			"Search":   s.Search("canary"),
			"Query":    s.Query(models.VenueFilter{Scenario: []string{"約會"}}, "jazz"),
		}
		for name, got := range checks {
			for _, v := range got {
				if v.IsCanary {
					t.Errorf("%s returned canary venue %q", name, v.ID)
				}
			}
		}
		if _, ok := s.ByID("canary"); ok {
			t.Error("ByID returned canary venue")
		}
		if s.Len() != 1 {
			t.Errorf("Expected 1 venue, got %d", s.Len())
		}
	})

	t.Run("DuplicateIDsKeepFirst", func(t *testing.T) {
		first := venue("a", 121.5, 25.0, nil, nil)
		second := venue("a", 121.6, 25.1, nil, nil)
		second.Name = "Second"
		s := mustStore(t, first, second, venue("b", 121.7, 25.2, nil, nil))

		if got := ids(s.All()); !reflect.DeepEqual(got, []string{"a", "b"}) {
			t.Errorf("Expected [a b], got %v", got)
		}
		v, _ := s.ByID("a")
		if v.Name != first.Name {
			t.Errorf("Expected first occurrence kept, got %q", v.Name)
		}
	})

	t.Run("MissingIDIsMalformed", func(t *testing.T) {
		_, err := NewStore(&models.VenueCollection{Venues: []models.Venue{venue(" ", 0, 0, nil, nil)}}, testLogger())
		if err == nil {
			t.Error("Expected error for venue without id")
		}
	})

	t.Run("NilCollection", func(t *testing.T) {
		if _, err := NewStore(nil, testLogger()); err == nil {
			t.Error("Expected error for nil collection")
		}
	})

	t.Run("InvalidCoordinatesKept", func(t *testing.T) {
		s := mustStore(t, venue("bad", 200, 95, nil, nil))
		if _, ok := s.ByID("bad"); !ok {
			t.Error("Expected venue with invalid coordinates to stay in the store")
		}
	})

	t.Run("OverlapGroups", func(t *testing.T) {
		s := mustStore(t,
			venue("a", 121.500001, 25.000001, nil, nil),
			venue("b", 121.6, 25.1, nil, nil),
			venue("c", 121.500002, 25.000002, nil, nil),
		)
		want := [][]string{{"a", "c"}}
		if !reflect.DeepEqual(s.Overlaps(), want) {
			t.Errorf("Expected overlaps %v, got %v", want, s.Overlaps())
		}
	})
}

func TestFiltered(t *testing.T) {
	s := mustStore(t,
		venue("A", 121.50, 25.00, []string{"Jazz"}, []string{"約會"}),
		venue("B", 121.51, 25.01, []string{"Jazz"}, []string{"平價"}),
		venue("C", 121.52, 25.02, []string{"Rock"}, []string{"約會"}),
	)

	tests := []struct {
		name   string
		filter models.VenueFilter
		want   []string
	}{
		{"Empty filter", models.VenueFilter{}, []string{"A", "B", "C"}},
		{"Single tag", models.VenueFilter{Tags: []string{"Jazz"}}, []string{"A", "B"}},
		{"Tags are OR", models.VenueFilter{Tags: []string{"Jazz", "Rock"}}, []string{"A", "B", "C"}},
		{"Tag AND scenario", models.VenueFilter{Tags: []string{"Jazz"}, Scenario: []string{"約會"}}, []string{"A"}},
		{"Scenario only", models.VenueFilter{Scenario: []string{"約會"}}, []string{"A", "C"}},
		{"Case sensitive", models.VenueFilter{Tags: []string{"jazz"}}, []string{}},
		{"Unknown label", models.VenueFilter{Tags: []string{"Metal"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(s.Filtered(tt.filter))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filtered(%+v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	a := venue("a", 121.5, 25.0, []string{"Jazz"}, []string{"約會"})
	a.Name = "Blue Note Taipei"
	b := venue("b", 121.6, 25.1, []string{"Rock"}, []string{"平價"})
	b.Name = "The Wall"
	b.OriginalReview = "Loud and sweaty, great sound system"
	s := mustStore(t, a, b)

	tests := []struct {
		query string
		want  []string
	}{
		{"jazz", []string{"a"}},
		{"JAZZ", []string{"a"}},
		{"blue note", []string{"a"}},
		{"SOUND", []string{"b"}},
		{"平價", []string{"b"}},
		{"", []string{"a", "b"}},
		{"nothing matches", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := ids(s.Search(tt.query))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Search(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestQuery(t *testing.T) {
	s := mustStore(t,
		venue("A", 121.50, 25.00, []string{"Jazz"}, []string{"約會"}),
		venue("B", 121.51, 25.01, []string{"Jazz"}, []string{"平價"}),
		venue("C", 121.52, 25.02, []string{"Rock"}, []string{"約會"}),
	)

	tests := []struct {
		name   string
		filter models.VenueFilter
		query  string
		want   []string
	}{
		{"Nothing active", models.VenueFilter{}, "", []string{"A", "B", "C"}},
		{"Whitespace query is no search", models.VenueFilter{}, "   ", []string{"A", "B", "C"}},
		{"Filter only", models.VenueFilter{Tags: []string{"Jazz"}}, " ", []string{"A", "B"}},
		{"Search only", models.VenueFilter{}, "rock", []string{"C"}},
		{"Intersection", models.VenueFilter{Scenario: []string{"約會"}}, "jazz", []string{"A"}},
		{"Empty intersection", models.VenueFilter{Tags: []string{"Rock"}}, "jazz", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(s.Query(tt.filter, tt.query))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Query(%+v, %q) = %v, want %v", tt.filter, tt.query, got, tt.want)
			}
		})
	}
}

func TestAllReturnsCopy(t *testing.T) {
	s := mustStore(t, venue("a", 121.5, 25.0, nil, nil))
	list := s.All()
	list[0].Name = "changed"
	if v, _ := s.ByID("a"); v.Name == "changed" {
		t.Error("Mutating All() result changed the store")
	}
}

func TestByDistance(t *testing.T) {
	list := []models.Venue{
		venue("far", 121.60, 25.10, nil, nil),
		venue("bad", 500, 500, nil, nil),
		venue("near", 121.53, 25.04, nil, nil),
	}
	ByDistance(list, orb.Point{121.5325, 25.0420})

	if got := ids(list); !reflect.DeepEqual(got, []string{"near", "far", "bad"}) {
		t.Errorf("Expected [near far bad], got %v", got)
	}
}
