package metrics

import (
	"time"

	"venuemap.taipeimusic.org/internal/cluster"
)

// RecordIndexBuild publishes the outcome of a cluster index build.
func RecordIndexBuild(stats cluster.BuildStats, took time.Duration) {
	IndexedVenues.WithLabelValues("indexed").Set(float64(stats.Indexed))
	IndexedVenues.WithLabelValues("excluded").Set(float64(stats.Excluded))
	IndexBuildDuration.Observe(took.Seconds())
}

// RecordVenueLoad publishes the result of loading the venue collection.
func RecordVenueLoad(venues, overlapGroups int, err error) {
	if err != nil {
		VenueLoadFailures.Inc()
	}
	VenuesLoaded.Set(float64(venues))
	VenueOverlapGroups.Set(float64(overlapGroups))
}
