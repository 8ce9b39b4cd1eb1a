package viewport

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/cluster"
	"venuemap.taipeimusic.org/internal/geo"
)

// Querier is the part of the cluster index the controller needs.
type Querier interface {
	Query(bbox orb.Bound, zoom float64) []cluster.Feature
}

type animation struct {
	from     Viewport
	to       Target
	start    time.Time
	duration time.Duration
}

// Controller owns the live viewport of one map and the features visible in
// it. Every change of viewport or index recomputes the full feature set.
//
// A Controller is not safe for concurrent use; callers feed it one event at
// a time.
type Controller struct {
	view      Viewport
	index     Querier
	features  []cluster.Feature
	anim      *animation
	now       func() time.Time
	listeners []func(Change)
}

// NewController starts at initial. now stamps the start of fly-to
// animations; nil means time.Now.
func NewController(initial Viewport, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	initial.Center = clampCenter(initial.Center)
	initial.Zoom = clampZoom(initial.Zoom)
	return &Controller{view: initial, now: now}
}

// OnChange registers fn to be called after every recomputation.
func (c *Controller) OnChange(fn func(Change)) {
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) Viewport() Viewport { return c.view }

// Features returns the features computed for the current viewport.
func (c *Controller) Features() []cluster.Feature { return c.features }

// Animating reports whether a fly-to is in progress.
func (c *Controller) Animating() bool { return c.anim != nil }

// SetIndex swaps in a new index, typically after the venue list changed.
func (c *Controller) SetIndex(idx Querier) {
	c.index = idx
	c.recompute(CauseData)
}

// Move sets center and zoom as a user gesture, cancelling any fly-to.
func (c *Controller) Move(center orb.Point, zoom float64) {
	c.anim = nil
	c.setView(center, zoom)
	c.recompute(CauseGesture)
}

// Pan shifts the map by a pixel offset as a user gesture.
func (c *Controller) Pan(dx, dy float64) {
	worldSize := geo.TileSize * math.Pow(2, c.view.Zoom)
	x := geo.ProjectX(c.view.Center.Lon()) + dx/worldSize
	y := geo.ProjectY(c.view.Center.Lat()) + dy/worldSize
	y = math.Max(0, math.Min(1, y))
	c.Move(orb.Point{geo.UnprojectX(x), geo.UnprojectY(y)}, c.view.Zoom)
}

// ZoomTo changes only the zoom as a user gesture.
func (c *Controller) ZoomTo(zoom float64) {
	c.Move(c.view.Center, zoom)
}

// Resize records the pixel size of the map. It does not interrupt a fly-to.
func (c *Controller) Resize(width, height int) {
	c.view.Width, c.view.Height = width, height
	c.view.Bounds = nil
	c.recompute(CauseResize)
}

// ReportBounds records the extent the renderer actually shows.
func (c *Controller) ReportBounds(b orb.Bound) {
	c.view.Bounds = &b
	c.recompute(CauseResize)
}

// FlyTo animates the viewport to t, replacing any running animation. A zero
// or negative duration jumps straight to the target.
func (c *Controller) FlyTo(t Target) {
	t.Center = clampCenter(t.Center)
	t.Zoom = clampZoom(t.Zoom)

	if t.Duration <= 0 {
		c.anim = nil
		c.setView(t.Center, t.Zoom)
		c.recompute(CauseAnimation)
		return
	}
	c.anim = &animation{from: c.view, to: t, start: c.now(), duration: t.Duration}
}

// Tick advances the running animation to now and reports whether it is
// still running afterwards.
func (c *Controller) Tick(now time.Time) bool {
	if c.anim == nil {
		return false
	}
	a := c.anim
	p := float64(now.Sub(a.start)) / float64(a.duration)
	if p >= 1 {
		c.anim = nil
		c.setView(a.to.Center, a.to.Zoom)
		c.recompute(CauseAnimation)
		return false
	}
	if p < 0 {
		p = 0
	}
	e := easeInOutCubic(p)
	center := orb.Point{
		lerp(a.from.Center.Lon(), a.to.Center.Lon(), e),
		lerp(a.from.Center.Lat(), a.to.Center.Lat(), e),
	}
	c.setView(center, lerp(a.from.Zoom, a.to.Zoom, e))
	c.recompute(CauseAnimation)
	return true
}

func (c *Controller) setView(center orb.Point, zoom float64) {
	c.view.Center = clampCenter(center)
	c.view.Zoom = clampZoom(zoom)
	c.view.Bounds = nil
}

func (c *Controller) recompute(cause ChangeCause) {
	if c.index == nil {
		c.features = nil
	} else {
		c.features = c.index.Query(c.view.VisibleBounds(), float64(c.view.FlooredZoom()))
	}
	change := Change{Cause: cause, Viewport: c.view, Features: c.features}
	for _, fn := range c.listeners {
		fn(change)
	}
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	f := -2*t + 2
	return 1 - f*f*f/2
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
