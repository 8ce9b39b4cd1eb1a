package cluster

import (
	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/models"
)

// Kind discriminates the two shapes a Feature can take.
type Kind int

const (
	KindPoint Kind = iota
	KindCluster
)

func (k Kind) String() string {
	if k == KindCluster {
		return "cluster"
	}
	return "point"
}

// Feature is one marker on the map: either a single venue or a cluster of
// venues. Only the fields of its Kind are set.
type Feature struct {
	Kind     Kind
	Position orb.Point

	// Cluster fields.
	ID         uint64
	PointCount int

	// Point fields.
	Venue *models.Venue
}

func (f Feature) IsCluster() bool { return f.Kind == KindCluster }

func pointFeature(v *models.Venue) Feature {
	return Feature{Kind: KindPoint, Position: v.Coordinates, Venue: v, PointCount: 1}
}

func clusterFeature(id uint64, position orb.Point, count int) Feature {
	return Feature{Kind: KindCluster, Position: position, ID: id, PointCount: count}
}
