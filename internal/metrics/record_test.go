package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"venuemap.taipeimusic.org/internal/cluster"
)

func TestRecordIndexBuild(t *testing.T) {
	before := testutil.CollectAndCount(IndexBuildDuration)
	observed := histogramCount(t, IndexBuildDuration)

	RecordIndexBuild(cluster.BuildStats{Indexed: 120, Excluded: 3}, 4*time.Millisecond)

	if got := testutil.ToFloat64(IndexedVenues.WithLabelValues("indexed")); got != 120 {
		t.Errorf("Expected 120 indexed venues, got %v", got)
	}
	if got := testutil.ToFloat64(IndexedVenues.WithLabelValues("excluded")); got != 3 {
		t.Errorf("Expected 3 excluded venues, got %v", got)
	}
	if got := testutil.CollectAndCount(IndexBuildDuration); got != before {
		t.Errorf("Expected histogram to stay a single series, got %d", got)
	}
	if got := histogramCount(t, IndexBuildDuration); got != observed+1 {
		t.Errorf("Expected one more build observation, got %d -> %d", observed, got)
	}
}

func TestRecordVenueLoad(t *testing.T) {
	failures := testutil.ToFloat64(VenueLoadFailures)

	RecordVenueLoad(42, 2, nil)
	if got := testutil.ToFloat64(VenuesLoaded); got != 42 {
		t.Errorf("Expected 42 venues, got %v", got)
	}
	if got := testutil.ToFloat64(VenueOverlapGroups); got != 2 {
		t.Errorf("Expected 2 overlap groups, got %v", got)
	}

	RecordVenueLoad(0, 0, errors.New("boom"))
	if got := testutil.ToFloat64(VenueLoadFailures); got != failures+1 {
		t.Errorf("Expected failure counter to increase, got %v", got)
	}
	if got := testutil.ToFloat64(VenuesLoaded); got != 0 {
		t.Errorf("Expected 0 venues after failed load, got %v", got)
	}
}
