package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// TileSize is the pixel size of one map tile, used when converting a
// viewport in pixels to a geographic extent.
const TileSize = 256

// maxMercatorLat is the latitude at which the Web Mercator projection
// reaches the edge of the square world.
const maxMercatorLat = 85.0511287798066

// IsValidLatLon returns true if the given latitude and longitude values
// are finite and fall within the valid geographic coordinate bounds.
//
// Latitude must be between -90 and 90 degrees, and longitude must be
// between -180 and 180 degrees.
func IsValidLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return true
}

// IsValidPoint is IsValidLatLon for an orb.Point in [lng, lat] order.
func IsValidPoint(p orb.Point) bool {
	return IsValidLatLon(p.Lat(), p.Lon())
}

// earthRadiusInMeters represents the mean radius of the Earth in meters.
//
// Reference: NASA Planetary Fact Sheet – Earth
// https://nssdc.gsfc.nasa.gov/planetary/factsheet/earthfact.html
const earthRadiusInMeters = 6371000

// HaversineDistance returns the great-circle distance in meters between two coordinates.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * earthRadiusInMeters
}

// BoundsOf computes the bounding box of all valid points.
func BoundsOf(points []orb.Point) (orb.Bound, error) {
	if len(points) == 0 {
		return orb.Bound{}, fmt.Errorf("no points to compute bounding box")
	}

	var bound orb.Bound
	found := false
	for _, p := range points {
		if !IsValidPoint(p) {
			continue
		}
		if !found {
			bound = p.Bound()
			found = true
			continue
		}
		bound = bound.Extend(p)
	}

	if !found {
		return orb.Bound{}, fmt.Errorf("no valid latitude/longitude found in points")
	}
	return bound, nil
}

// ProjectX converts a longitude into Web Mercator unit space [0, 1].
func ProjectX(lng float64) float64 {
	return lng/360 + 0.5
}

// ProjectY converts a latitude into Web Mercator unit space [0, 1],
// clamped at the poles.
func ProjectY(lat float64) float64 {
	sin := math.Sin(lat * math.Pi / 180)
	y := 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi
	if y < 0 {
		return 0
	}
	if y > 1 {
		return 1
	}
	return y
}

// UnprojectX converts a Web Mercator unit x back into longitude.
func UnprojectX(x float64) float64 {
	return (x - 0.5) * 360
}

// UnprojectY converts a Web Mercator unit y back into latitude.
func UnprojectY(y float64) float64 {
	y2 := (180 - y*360) * math.Pi / 180
	return 360*math.Atan(math.Exp(y2))/math.Pi - 90
}

// SynthesizeBounds approximates the visible extent of a width×height pixel
// viewport centred on center at the given zoom. It is used when the real
// viewport geometry is not known yet, so markers can render anyway.
//
// The returned west edge may be less than -180 or the east edge greater than
// 180 when the view wraps; the cluster index normalises such boxes.
func SynthesizeBounds(center orb.Point, zoom float64, width, height int) orb.Bound {
	if width <= 0 || height <= 0 {
		width, height = TileSize, TileSize
	}
	worldSize := TileSize * math.Pow(2, zoom)

	if float64(width) >= worldSize {
		return orb.Bound{Min: orb.Point{-180, -maxMercatorLat}, Max: orb.Point{180, maxMercatorLat}}
	}

	cx := ProjectX(center.Lon())
	cy := ProjectY(clampLat(center.Lat()))
	halfW := float64(width) / 2 / worldSize
	halfH := float64(height) / 2 / worldSize

	top := math.Max(0, cy-halfH)
	bottom := math.Min(1, cy+halfH)

	return orb.Bound{
		Min: orb.Point{UnprojectX(cx - halfW), UnprojectY(bottom)},
		Max: orb.Point{UnprojectX(cx + halfW), UnprojectY(top)},
	}
}

func clampLat(lat float64) float64 {
	return math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
}
