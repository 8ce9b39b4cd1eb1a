package interaction

import (
	"errors"
	"math"
	"time"

	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/cluster"
	"venuemap.taipeimusic.org/internal/models"
	"venuemap.taipeimusic.org/internal/spiderfy"
	"venuemap.taipeimusic.org/internal/viewport"
)

// DefaultZoomDuration is how long zooming into a cluster takes.
const DefaultZoomDuration = 500 * time.Millisecond

// State is the interaction state of the map.
type State int

const (
	Idle State = iota
	Spiderfied
)

func (s State) String() string {
	if s == Spiderfied {
		return "spiderfied"
	}
	return "idle"
}

// Group is a cluster fanned out around its centroid. Positions[i] is where
// Venues[i] is drawn.
type Group struct {
	ClusterID uint64         `json:"cluster_id"`
	Anchor    orb.Point      `json:"anchor"`
	Venues    []models.Venue `json:"venues"`
	Positions []orb.Point    `json:"positions"`
}

// Action is what a cluster click ended up doing.
type Action string

const (
	ActionNone     Action = "none"
	ActionZoom     Action = "zoom"
	ActionSpiderfy Action = "spiderfy"
)

// ClickResult describes the outcome of a cluster click.
type ClickResult struct {
	Action     Action
	PointCount int
	Zoom       float64
	TargetZoom int
}

// Index is the part of the cluster index the controller needs.
type Index interface {
	Cluster(id uint64) (cluster.Feature, error)
	Leaves(id uint64, limit, offset int) ([]cluster.Feature, error)
	ExpansionZoom(id uint64) (int, error)
	Options() cluster.Options
}

// Navigator moves the map.
type Navigator interface {
	Viewport() viewport.Viewport
	FlyTo(t viewport.Target)
}

// Controller decides what clicks on the map do. It is either Idle or has one
// cluster spiderfied.
//
// A Controller is not safe for concurrent use.
type Controller struct {
	index        Index
	nav          Navigator
	radius       float64
	zoomDuration time.Duration
	group        *Group
	onSelect     []func(models.Venue)
}

// NewController wires a controller to an index and a navigator. A radius of
// zero or less uses spiderfy.DefaultRadius.
func NewController(idx Index, nav Navigator, radius float64) *Controller {
	if radius <= 0 {
		radius = spiderfy.DefaultRadius
	}
	return &Controller{index: idx, nav: nav, radius: radius, zoomDuration: DefaultZoomDuration}
}

// SetIndex points the controller at a rebuilt index. Any spiderfied group
// belonged to the old index and is cleared.
func (c *Controller) SetIndex(idx Index) {
	c.index = idx
	c.group = nil
}

// OnSelect registers fn to be called with every venue selected by a marker click.
func (c *Controller) OnSelect(fn func(models.Venue)) {
	c.onSelect = append(c.onSelect, fn)
}

func (c *Controller) State() State {
	if c.group != nil {
		return Spiderfied
	}
	return Idle
}

// Group returns the spiderfied group, if any.
func (c *Controller) Group() (Group, bool) {
	if c.group == nil {
		return Group{}, false
	}
	return *c.group, true
}

// ClusterClick handles a click on a cluster marker.
//
// At or above the maximum clustering zoom the cluster cannot be split by
// zooming, so its venues are fanned out around it. Below it the map flies to
// the zoom where the cluster splits. Ids the index no longer knows leave the
// controller Idle and the map where it is.
func (c *Controller) ClusterClick(id uint64) (ClickResult, error) {
	c.group = nil
	view := c.nav.Viewport()
	result := ClickResult{Action: ActionNone, Zoom: view.Zoom}

	if c.index == nil {
		return result, cluster.ErrUnknownCluster
	}
	feature, err := c.index.Cluster(id)
	if err != nil {
		return result, err
	}
	result.PointCount = feature.PointCount
	maxZoom := c.index.Options().MaxZoom

	if int(math.Floor(view.Zoom)) >= maxZoom {
		leaves, err := c.index.Leaves(id, 0, 0)
		if err != nil {
			return result, err
		}
		venues := make([]models.Venue, len(leaves))
		for i, l := range leaves {
			venues[i] = *l.Venue
		}
		c.group = &Group{
			ClusterID: id,
			Anchor:    feature.Position,
			Venues:    venues,
			Positions: spiderfy.Positions(feature.Position, len(venues), c.radius),
		}
		result.Action = ActionSpiderfy
		return result, nil
	}

	zoom, err := c.index.ExpansionZoom(id)
	if err != nil {
		return result, err
	}
	zoom = min(zoom, maxZoom)
	c.nav.FlyTo(viewport.Target{Center: feature.Position, Zoom: float64(zoom), Duration: c.zoomDuration})
	result.Action = ActionZoom
	result.TargetZoom = zoom
	return result, nil
}

// IsStale reports whether err came from a cluster id the index no longer knows.
func IsStale(err error) bool {
	return errors.Is(err, cluster.ErrUnknownCluster)
}

// MarkerClick selects a venue and clears any spiderfied group.
func (c *Controller) MarkerClick(v models.Venue) {
	c.group = nil
	for _, fn := range c.onSelect {
		fn(v)
	}
}

// BackgroundClick clears any spiderfied group.
func (c *Controller) BackgroundClick() {
	c.group = nil
}

// ViewportChanged clears the spiderfied group when the map moved or its
// data changed. Resizes keep it.
func (c *Controller) ViewportChanged(change viewport.Change) {
	if change.Cause.Moved() || change.Cause == viewport.CauseData {
		c.group = nil
	}
}
