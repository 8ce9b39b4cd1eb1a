package mapview

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/analytics"
	"venuemap.taipeimusic.org/internal/cluster"
	"venuemap.taipeimusic.org/internal/geolocate"
	"venuemap.taipeimusic.org/internal/interaction"
	"venuemap.taipeimusic.org/internal/models"
	"venuemap.taipeimusic.org/internal/venues"
	"venuemap.taipeimusic.org/internal/viewport"
)

type eventLog struct{ events []analytics.Event }

func (l *eventLog) Track(e analytics.Event) { l.events = append(l.events, e) }

func (l *eventLog) names() []analytics.EventName {
	out := make([]analytics.EventName, len(l.events))
	for i, e := range l.events {
		out[i] = e.Name
	}
	return out
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCollection() *models.VenueCollection {
	return &models.VenueCollection{
		Version: "test",
		Venues: []models.Venue{
			{ID: "bluenote", Name: "Blue Note", Coordinates: orb.Point{121.5300, 25.0210}, Tags: []string{"Jazz"}, Scenario: []string{"約會"}},
			{ID: "thewall", Name: "The Wall", Coordinates: orb.Point{121.5352, 25.0116}, Tags: []string{"Rock", "Punk"}, Scenario: []string{"平價"}},
			{ID: "revolver", Name: "Revolver", Coordinates: orb.Point{121.5234, 25.0271}, Tags: []string{"Indie", "Rock"}, Scenario: []string{"平價"}},
			{ID: "stacked-1", Name: "Stacked One", Coordinates: orb.Point{121.5400, 25.0500}, Tags: []string{"Electronic"}},
			{ID: "stacked-2", Name: "Stacked Two", Coordinates: orb.Point{121.5400, 25.0500}, Tags: []string{"Electronic"}},
			{ID: "canary", Name: "Canary Jazz", Coordinates: orb.Point{121.5301, 25.0211}, Tags: []string{"Jazz"}, IsCanary: true},
		},
	}
}

func newTestSession(t *testing.T) (*Session, *eventLog, *clock) {
	t.Helper()
	store, err := venues.NewStore(testCollection(), testLogger())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	events := &eventLog{}
	clk := &clock{t: time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)}
	opts := Options{
		Cluster: cluster.DefaultOptions(),
		Initial: viewport.Viewport{Center: orb.Point{121.5325, 25.0420}, Zoom: 12, Width: 1280, Height: 800},
		Now:     clk.now,
	}
	return NewSession(store, nil, opts, events, nil, testLogger()), events, clk
}

func visibleIDs(s *Session) map[string]bool {
	ids := map[string]bool{}
	for _, f := range s.view.Features() {
		if f.IsCluster() {
			leaves, _ := s.index.Leaves(f.ID, 0, 0)
			for _, l := range leaves {
				ids[l.Venue.ID] = true
			}
			continue
		}
		ids[f.Venue.ID] = true
	}
	return ids
}

func findCluster(t *testing.T, s *Session) cluster.Feature {
	t.Helper()
	for _, f := range s.view.Features() {
		if f.IsCluster() {
			return f
		}
	}
	t.Fatal("no cluster visible")
	return cluster.Feature{}
}

func TestCanaryNeverVisible(t *testing.T) {
	s, _, _ := newTestSession(t)

	steps := []func(){
		func() {},
		func() { s.SetFilter(models.VenueFilter{Tags: []string{"Jazz"}}) },
		func() { s.SetSearch("canary") },
		func() { s.SetSearch("jazz") },
		func() { s.Move(orb.Point{121.53, 25.021}, 18) },
		func() { s.Move(orb.Point{121.53, 25.021}, 3) },
	}
	for i, step := range steps {
		step()
		if visibleIDs(s)["canary"] {
			t.Errorf("step %d: canary venue visible", i)
		}
		for _, v := range s.Visible() {
			if v.IsCanary {
				t.Errorf("step %d: canary venue in visible list", i)
			}
		}
	}
}

func TestFilterAndSearchRecompute(t *testing.T) {
	s, events, _ := newTestSession(t)

	if got := len(visibleIDs(s)); got != 5 {
		t.Fatalf("Expected 5 venues on the initial map, got %d", got)
	}

	s.SetFilter(models.VenueFilter{Tags: []string{"Rock"}})
	if got := visibleIDs(s); len(got) != 2 || !got["thewall"] || !got["revolver"] {
		t.Errorf("Expected rock venues, got %v", got)
	}

	s.SetSearch("WALL")
	if got := visibleIDs(s); len(got) != 1 || !got["thewall"] {
		t.Errorf("Expected filter and search intersection, got %v", got)
	}

	s.SetSearch("   ")
	if got := len(s.Visible()); got != 2 {
		t.Errorf("Expected whitespace search to be ignored, got %d venues", got)
	}

	want := []analytics.EventName{analytics.FilterChange, analytics.Search}
	if got := events.names(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Expected events %v, got %v", want, got)
	}
	if events.events[1].Props["results_count"] != 1 {
		t.Errorf("Expected search result count 1, got %v", events.events[1].Props["results_count"])
	}
}

func TestClusterClickBelowMaxZoom(t *testing.T) {
	s, events, clk := newTestSession(t)
	s.Move(orb.Point{121.5325, 25.03}, 10)
	c := findCluster(t, s)

	result := s.ClusterClick(c.ID)
	if result.Action != interaction.ActionZoom {
		t.Fatalf("Expected zoom action, got %+v", result)
	}
	if !s.view.Animating() {
		t.Fatal("Expected a fly-to to start")
	}
	clk.t = clk.t.Add(time.Second)
	s.Tick()
	if got := s.view.Viewport().Zoom; got != float64(result.TargetZoom) {
		t.Errorf("Expected to land at zoom %d, got %v", result.TargetZoom, got)
	}
	if last := events.events[len(events.events)-1]; last.Name != analytics.ClusterClick || last.Props["action"] != "zoom" {
		t.Errorf("Unexpected last event %+v", last)
	}
}

func TestClusterClickAtMaxZoomSpiderfies(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.Move(orb.Point{121.5400, 25.0500}, 16.5)
	c := findCluster(t, s)

	result := s.ClusterClick(c.ID)
	if result.Action != interaction.ActionSpiderfy {
		t.Fatalf("Expected spiderfy, got %+v", result)
	}
	st := s.Snapshot()
	if st.Interaction != "spiderfied" || st.Spiderfy == nil || len(st.Spiderfy.Venues) != 2 {
		t.Fatalf("Unexpected state %+v", st)
	}
	if st.SpiderfyFeatures == nil || len(st.SpiderfyFeatures.Features) != 2 {
		t.Fatalf("Expected the group rendered as two features, got %+v", st.SpiderfyFeatures)
	}
	for i, f := range st.SpiderfyFeatures.Features {
		if got := f.Geometry.(orb.Point); got != st.Spiderfy.Positions[i] {
			t.Errorf("feature %d drawn at %v, want fanned out position %v", i, got, st.Spiderfy.Positions[i])
		}
	}
	if s.view.Animating() {
		t.Error("Expected no fly-to when spiderfying")
	}

	s.Pan(5, 0)
	if st := s.Snapshot(); st.Spiderfy != nil || st.SpiderfyFeatures != nil {
		t.Error("Expected panning to clear the spiderfied group")
	}
}

func TestStaleClusterAfterFilterIsIgnored(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.Move(orb.Point{121.5400, 25.0500}, 16)
	c := findCluster(t, s)

	s.SetFilter(models.VenueFilter{Tags: []string{"Electronic"}})
	before := s.view.Viewport()
	result := s.ClusterClick(c.ID)

	if result.Action != interaction.ActionNone {
		t.Errorf("Expected stale click to do nothing, got %+v", result)
	}
	if s.view.Viewport() != before || s.view.Animating() {
		t.Error("Expected stale click not to move the map")
	}
}

func TestMarkerClick(t *testing.T) {
	s, events, _ := newTestSession(t)

	v, ok := s.MarkerClick("bluenote", analytics.SourceList)
	if !ok || v.Name != "Blue Note" {
		t.Fatalf("Expected Blue Note, got %+v %v", v, ok)
	}
	if st := s.Snapshot(); st.Selected == nil || st.Selected.ID != "bluenote" {
		t.Errorf("Expected bluenote selected, got %+v", st.Selected)
	}
	if last := events.events[len(events.events)-1]; last.Props["source"] != analytics.SourceList {
		t.Errorf("Unexpected event %+v", last)
	}
	if _, ok := s.MarkerClick("canary", ""); ok {
		t.Error("Expected canary venue to be unknown")
	}

	s.BackgroundClick()
	if s.Snapshot().Selected != nil {
		t.Error("Expected background click to clear the selection")
	}
}

func TestLocate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		s, events, _ := newTestSession(t)
		home := orb.Point{121.5654, 25.0330}

		if _, err := s.Locate(context.Background(), geolocate.Fixed(home), geolocate.Request{}); err != nil {
			t.Fatalf("Locate failed: %v", err)
		}
		st := s.Snapshot()
		if st.UserPosition == nil || st.UserPosition.Point != home {
			t.Errorf("Expected user position %v, got %+v", home, st.UserPosition)
		}
		if !st.Animating {
			t.Error("Expected the map to fly to the user")
		}
		if last := events.events[len(events.events)-1]; last.Props["success"] != true {
			t.Errorf("Unexpected event %+v", last)
		}
	})

	t.Run("FailureRaisesExpiringNotice", func(t *testing.T) {
		s, _, clk := newTestSession(t)
		s.SetFilter(models.VenueFilter{Tags: []string{"Jazz"}})

		_, err := s.Locate(context.Background(), geolocate.Failing(geolocate.ErrPermissionDenied), geolocate.Request{})
		if err == nil {
			t.Fatal("Expected error")
		}
		st := s.Snapshot()
		if st.Notice == nil || st.Notice.Kind != "permission_denied" {
			t.Fatalf("Expected permission notice, got %+v", st.Notice)
		}
		if st.VenueCount != 1 || st.Animating {
			t.Errorf("Expected filter and map to be untouched, got %+v", st)
		}

		clk.t = clk.t.Add(DefaultNoticeTTL)
		if s.Snapshot().Notice != nil {
			t.Error("Expected notice to expire")
		}
	})
}

func TestBottomSheet(t *testing.T) {
	s, events, _ := newTestSession(t)

	if !s.SetBottomSheet(analytics.SheetHalf) || s.SetBottomSheet("sideways") {
		t.Error("Unexpected bottom sheet validation")
	}
	s.SetBottomSheet(analytics.SheetHalf)

	if len(events.events) != 1 || events.events[0].Name != analytics.BottomSheetExpand {
		t.Errorf("Expected a single bottom sheet event, got %v", events.names())
	}
}

func TestLoadErrorSurfaces(t *testing.T) {
	s := NewSession(venues.EmptyStore(), context.DeadlineExceeded, Options{Cluster: cluster.DefaultOptions()}, nil, nil, testLogger())
	st := s.Snapshot()
	if st.LoadError == "" || st.VenueCount != 0 {
		t.Errorf("Expected empty map with load error, got %+v", st)
	}
}

func TestFitToVenues(t *testing.T) {
	store, _ := venues.NewStore(testCollection(), testLogger())
	opts := Options{
		Cluster:     cluster.DefaultOptions(),
		Initial:     viewport.Viewport{Center: orb.Point{0, 0}, Zoom: 2, Width: 1280, Height: 800},
		FitToVenues: true,
	}
	s := NewSession(store, nil, opts, nil, nil, testLogger())
	if got := len(visibleIDs(s)); got != 5 {
		t.Errorf("Expected all 5 venues in the fitted view, got %d", got)
	}
}

func TestSetStore(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.SetFilter(models.VenueFilter{Tags: []string{"Rock"}})
	s.MarkerClick("revolver", "")

	next, err := venues.NewStore(&models.VenueCollection{Venues: []models.Venue{
		{ID: "thewall", Name: "The Wall", Coordinates: orb.Point{121.5352, 25.0116}, Tags: []string{"Rock"}},
		{ID: "riverside", Name: "Riverside", Coordinates: orb.Point{121.5070, 25.0440}, Tags: []string{"Rock"}},
	}}, testLogger())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	s.SetStore(next)

	if got := visibleIDs(s); len(got) != 2 || !got["riverside"] {
		t.Errorf("Expected reloaded rock venues, got %v", got)
	}
	if s.Snapshot().Selected != nil {
		t.Error("Expected selection of a removed venue to be dropped")
	}
}
