package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VenuesLoaded number of venues served after canary removal and deduplication
	VenuesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "venuemap_venues_loaded",
		Help: "Number of venues in the loaded collection",
	})

	VenueLoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "venuemap_venue_load_failures_total",
		Help: "Number of failed venue collection loads",
	})

	VenueOverlapGroups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "venuemap_venue_overlap_groups",
		Help: "Number of groups of venues sharing the same location",
	})
)

var (
	IndexedVenues = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "venuemap_cluster_index_venues",
		Help: "Venues in the last cluster index build by outcome (indexed, excluded)",
	}, []string{"outcome"})

	IndexBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "venuemap_cluster_index_build_seconds",
		Help:    "Time taken to build the cluster index",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	ClusterClicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "venuemap_cluster_clicks_total",
		Help: "Cluster clicks by resulting action (zoom, spiderfy, none)",
	}, []string{"action"})
)

var (
	AnalyticsEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "venuemap_analytics_events_total",
		Help: "Analytics events by name and primary label",
	}, []string{"event", "label"})

	AnalyticsBeaconDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "venuemap_analytics_beacon_dropped_total",
		Help: "Analytics events not delivered to the beacon endpoint by reason",
	}, []string{"reason"})
)

var (
	// OutgoingRequestDuration latency of requests the service makes to other services
	OutgoingRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "venuemap_outgoing_request_seconds",
		Help:    "Latency of outgoing HTTP requests by host and status class",
		Buckets: prometheus.DefBuckets,
	}, []string{"host", "status"})
)
