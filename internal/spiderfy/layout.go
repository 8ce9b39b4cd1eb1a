// Package spiderfy lays out the members of a cluster that cannot be split by
// zooming any further on a circle around the cluster position, so each one
// gets its own clickable marker.
package spiderfy

import (
	"math"

	"github.com/paulmach/orb"
)

// DefaultRadius is the circle radius in decimal degrees, about 80 meters
// around Taipei. It is deliberately not corrected for latitude.
const DefaultRadius = 0.0008

// Positions returns count coordinates evenly spaced on a circle of the given
// radius around center. The first position is straight up (north) and the
// rest follow clockwise, 2π/count apart.
func Positions(center orb.Point, count int, radius float64) []orb.Point {
	if count < 1 {
		return nil
	}

	positions := make([]orb.Point, count)
	step := 2 * math.Pi / float64(count)
	for i := 0; i < count; i++ {
		angle := float64(i) * step
		positions[i] = orb.Point{
			center.Lon() + radius*math.Sin(angle),
			center.Lat() + radius*math.Cos(angle),
		}
	}
	return positions
}
