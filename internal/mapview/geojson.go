package mapview

import (
	"strconv"

	"github.com/paulmach/orb/geojson"
	"venuemap.taipeimusic.org/internal/cluster"
	"venuemap.taipeimusic.org/internal/interaction"
	"venuemap.taipeimusic.org/internal/models"
)

// FeatureCollection renders cluster index features as GeoJSON. Cluster
// features carry "cluster": true; venue features carry the venue fields.
func FeatureCollection(features []cluster.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(toGeoJSON(f))
	}
	return fc
}

func toGeoJSON(f cluster.Feature) *geojson.Feature {
	gf := geojson.NewFeature(f.Position)
	if f.IsCluster() {
		gf.ID = f.ID
		gf.Properties["cluster"] = true
		gf.Properties["cluster_id"] = f.ID
		gf.Properties["point_count"] = f.PointCount
		gf.Properties["point_count_abbreviated"] = abbreviate(f.PointCount)
		gf.Properties["marker_size"] = cluster.ClusterSize(f.PointCount)
		gf.Properties["marker_color"] = cluster.ClusterColor(f.PointCount)
		return gf
	}
	gf.ID = f.Venue.ID
	gf.Properties["cluster"] = false
	venueProperties(gf.Properties, *f.Venue)
	return gf
}

func venueProperties(p geojson.Properties, v models.Venue) {
	p["id"] = v.ID
	p["name"] = v.Name
	p["tags"] = v.Tags
	p["scenario"] = v.Scenario
	p["original_review"] = v.OriginalReview
	p["marker_color"] = cluster.MarkerColor(v.Tags)
	for key, value := range map[string]string{
		"address":        v.Address,
		"opening_hours":  v.OpeningHours,
		"minimum_charge": v.MinimumCharge,
		"phone":          v.Phone,
		"website":        v.Website,
	} {
		if value != "" {
			p[key] = value
		}
	}
}

// VenueCollection renders venues as GeoJSON points.
func VenueCollection(list []models.Venue) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, v := range list {
		gf := geojson.NewFeature(v.Coordinates)
		gf.ID = v.ID
		venueProperties(gf.Properties, v)
		fc.Append(gf)
	}
	return fc
}

// SpiderfyCollection renders a fanned out group, each venue at its
// spiderfied position with the anchor it hangs from.
func SpiderfyCollection(g interaction.Group) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, v := range g.Venues {
		gf := geojson.NewFeature(g.Positions[i])
		gf.ID = v.ID
		venueProperties(gf.Properties, v)
		gf.Properties["anchor"] = []float64{g.Anchor.Lon(), g.Anchor.Lat()}
		fc.Append(gf)
	}
	return fc
}

func abbreviate(n int) string {
	switch {
	case n >= 10000:
		return strconv.Itoa(n/1000) + "k"
	case n >= 1000:
		return strconv.FormatFloat(float64(n)/1000, 'f', 1, 64) + "k"
	}
	return strconv.Itoa(n)
}
