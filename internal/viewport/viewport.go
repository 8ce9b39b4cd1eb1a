package viewport

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/cluster"
	"venuemap.taipeimusic.org/internal/geo"
)

const (
	MinZoom = 0
	MaxZoom = 22
)

// Viewport is the visible part of the map.
type Viewport struct {
	Center orb.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	// Bounds is the extent last reported by the renderer. It is cleared
	// whenever center or zoom change until the renderer reports again.
	Bounds *orb.Bound `json:"bounds,omitempty"`
}

// VisibleBounds returns the reported bounds or, when none are known, an
// extent synthesized from center, zoom and size.
func (v Viewport) VisibleBounds() orb.Bound {
	if v.Bounds != nil {
		return *v.Bounds
	}
	return geo.SynthesizeBounds(v.Center, v.Zoom, v.Width, v.Height)
}

// FlooredZoom is the integer zoom the cluster index is queried at.
func (v Viewport) FlooredZoom() int {
	return int(math.Floor(v.Zoom))
}

// ChangeCause tells listeners why the viewport or its features changed.
type ChangeCause int

const (
	CauseGesture ChangeCause = iota
	CauseAnimation
	CauseResize
	CauseData
)

func (c ChangeCause) String() string {
	switch c {
	case CauseGesture:
		return "gesture"
	case CauseAnimation:
		return "animation"
	case CauseResize:
		return "resize"
	case CauseData:
		return "data"
	}
	return "unknown"
}

// Moved reports whether the change moved the map under the user.
func (c ChangeCause) Moved() bool {
	return c == CauseGesture || c == CauseAnimation
}

// Change is delivered to listeners after every recomputation.
type Change struct {
	Cause    ChangeCause
	Viewport Viewport
	Features []cluster.Feature
}

// Target is where a fly-to animation ends.
type Target struct {
	Center   orb.Point     `json:"center"`
	Zoom     float64       `json:"zoom"`
	Duration time.Duration `json:"duration"`
}

func clampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return MinZoom
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

func clampCenter(p orb.Point) orb.Point {
	lng := p.Lon()
	if lng < -180 || lng > 180 {
		lng = math.Mod(math.Mod(lng+180, 360)+360, 360) - 180
	}
	return orb.Point{lng, math.Max(-90, math.Min(90, p.Lat()))}
}

// Fit returns a viewport of the given pixel size that shows all of b.
func Fit(b orb.Bound, width, height int) Viewport {
	if width <= 0 || height <= 0 {
		width, height = geo.TileSize, geo.TileSize
	}
	dx := geo.ProjectX(b.Max.Lon()) - geo.ProjectX(b.Min.Lon())
	dy := geo.ProjectY(b.Min.Lat()) - geo.ProjectY(b.Max.Lat())

	zoom := float64(MaxZoom)
	if dx > 0 {
		zoom = math.Min(zoom, math.Log2(float64(width)/(dx*geo.TileSize)))
	}
	if dy > 0 {
		zoom = math.Min(zoom, math.Log2(float64(height)/(dy*geo.TileSize)))
	}

	cx := (geo.ProjectX(b.Min.Lon()) + geo.ProjectX(b.Max.Lon())) / 2
	cy := (geo.ProjectY(b.Min.Lat()) + geo.ProjectY(b.Max.Lat())) / 2
	return Viewport{
		Center: orb.Point{geo.UnprojectX(cx), geo.UnprojectY(cy)},
		Zoom:   clampZoom(math.Floor(zoom)),
		Width:  width,
		Height: height,
	}
}
