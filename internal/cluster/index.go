package cluster

import (
	"errors"
	"math"
	"sort"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/geo"
	"venuemap.taipeimusic.org/internal/models"
)

// ErrUnknownCluster is returned for cluster ids that the current build did
// not issue, including ids from an earlier build.
var ErrUnknownCluster = errors.New("unknown cluster id")

// Options tunes the clustering. Radius is in pixels of a tile that is Extent
// pixels wide.
type Options struct {
	MinZoom   int     `json:"min_zoom"`
	MaxZoom   int     `json:"max_zoom"`
	Radius    float64 `json:"radius"`
	Extent    float64 `json:"extent"`
	MinPoints int     `json:"min_points"`
}

func DefaultOptions() Options {
	return Options{
		MinZoom:   0,
		MaxZoom:   16,
		Radius:    60,
		Extent:    512,
		MinPoints: 2,
	}
}

// BuildStats summarises the last Build.
type BuildStats struct {
	Indexed  int
	Excluded int
}

const (
	treeMinChildren = 25
	treeMaxChildren = 50
	pointTolerance  = 1e-12
	searchEpsilon   = 1e-9
)

// generation tags every build so cluster ids never collide across builds.
var generation atomic.Uint64

// node is a point or cluster in projected Web Mercator unit space. Nodes that
// survive a zoom level unchanged are shared between levels.
type node struct {
	x, y     float64
	count    int
	seq      int
	id       uint64
	venue    *models.Venue
	children []*node
	// lowest zoom this node has been processed at
	lastZoom int
	// zoom the cluster was formed at
	originZ  int

	// extent of the venues under the node
	minX, minY, maxX, maxY float64
}

// Bounds is the extent of the node's venues, so a tree search finds every
// node that has at least one venue in the searched box.
func (n *node) Bounds() rtreego.Rect {
	r, err := rtreego.NewRectFromPoints(
		rtreego.Point{n.minX - pointTolerance, n.minY - pointTolerance},
		rtreego.Point{n.maxX + pointTolerance, n.maxY + pointTolerance},
	)
	if err != nil {
		return rtreego.Point{n.x, n.y}.ToRect(pointTolerance)
	}
	return r
}

func (n *node) feature() Feature {
	if n.venue != nil {
		return pointFeature(n.venue)
	}
	return clusterFeature(n.id, orb.Point{geo.UnprojectX(n.x), geo.UnprojectY(n.y)}, n.count)
}

// Index is a hierarchical greedy clustering of venues, one level per integer
// zoom. It is immutable once built and safe for concurrent reads.
type Index struct {
	opts     Options
	gen      uint64
	buildID  string
	venues   []models.Venue
	levels   [][]*node
	trees    []*rtreego.Rtree
	clusters map[uint64]*node
	stats    BuildStats
}

// New returns an empty index. Out of range options are replaced by defaults.
func New(opts Options) *Index {
	def := DefaultOptions()
	if opts.MinZoom < 0 {
		opts.MinZoom = def.MinZoom
	}
	if opts.MaxZoom < opts.MinZoom {
		opts.MaxZoom = def.MaxZoom
		if opts.MaxZoom < opts.MinZoom {
			opts.MinZoom = def.MinZoom
		}
	}
	if opts.Radius <= 0 {
		opts.Radius = def.Radius
	}
	if opts.Extent <= 0 {
		opts.Extent = def.Extent
	}
	if opts.MinPoints < 2 {
		opts.MinPoints = def.MinPoints
	}
	idx := &Index{opts: opts}
	idx.Build(nil)
	return idx
}

func (idx *Index) Options() Options { return idx.opts }

func (idx *Index) Stats() BuildStats { return idx.stats }

// BuildID identifies the current build in logs and API responses.
func (idx *Index) BuildID() string { return idx.buildID }

// Build replaces the index contents with venues. Venues with invalid
// coordinates are left out and counted in the returned stats. Every cluster
// id issued by a previous build becomes unknown.
func (idx *Index) Build(venues []models.Venue) BuildStats {
	idx.gen = generation.Add(1)
	idx.buildID = uuid.NewString()
	idx.clusters = make(map[uint64]*node)
	idx.stats = BuildStats{}

	idx.venues = make([]models.Venue, 0, len(venues))
	for _, v := range venues {
		if !geo.IsValidPoint(v.Coordinates) {
			idx.stats.Excluded++
			continue
		}
		idx.venues = append(idx.venues, v)
	}
	idx.stats.Indexed = len(idx.venues)

	top := idx.opts.MaxZoom + 1
	idx.levels = make([][]*node, top+1)
	idx.trees = make([]*rtreego.Rtree, top+1)

	points := make([]*node, len(idx.venues))
	for i := range idx.venues {
		v := &idx.venues[i]
		points[i] = &node{
			x:        geo.ProjectX(v.Lng()),
			y:        geo.ProjectY(v.Lat()),
			count:    1,
			seq:      i,
			venue:    v,
			lastZoom: math.MaxInt,
			originZ:  top,
		}
		points[i].minX, points[i].maxX = points[i].x, points[i].x
		points[i].minY, points[i].maxY = points[i].y, points[i].y
	}
	idx.levels[top] = points
	idx.trees[top] = newTree(points)

	seq := len(points)
	for z := idx.opts.MaxZoom; z >= idx.opts.MinZoom; z-- {
		idx.levels[z] = idx.clusterLevel(idx.levels[z+1], idx.trees[z+1], z, &seq)
		idx.trees[z] = newTree(idx.levels[z])
	}
	return idx.stats
}

func newTree(nodes []*node) *rtreego.Rtree {
	objs := make([]rtreego.Spatial, len(nodes))
	for i, n := range nodes {
		objs[i] = n
	}
	return rtreego.NewTree(2, treeMinChildren, treeMaxChildren, objs...)
}

// clusterLevel merges the nodes of zoom z+1 into the nodes of zoom z.
func (idx *Index) clusterLevel(prev []*node, tree *rtreego.Rtree, z int, seq *int) []*node {
	r := idx.opts.Radius / (idx.opts.Extent * math.Pow(2, float64(z)))
	var next []*node

	for _, p := range prev {
		if p.lastZoom <= z {
			continue
		}
		p.lastZoom = z

		neighbors := within(tree, p.x, p.y, r)
		count := p.count
		for _, n := range neighbors {
			if n.lastZoom > z {
				count += n.count
			}
		}

		if count > p.count && count >= idx.opts.MinPoints {
			wx, wy := p.x*float64(p.count), p.y*float64(p.count)
			children := []*node{p}
			for _, n := range neighbors {
				if n.lastZoom <= z {
					continue
				}
				n.lastZoom = z
				wx += n.x * float64(n.count)
				wy += n.y * float64(n.count)
				children = append(children, n)
			}

			*seq++
			c := &node{
				x:        wx / float64(count),
				y:        wy / float64(count),
				count:    count,
				seq:      *seq,
				id:       idx.gen<<32 | uint64(*seq),
				children: children,
				lastZoom: math.MaxInt,
				originZ:  z,
				minX:     p.minX,
				minY:     p.minY,
				maxX:     p.maxX,
				maxY:     p.maxY,
			}
			for _, ch := range children[1:] {
				c.minX, c.minY = math.Min(c.minX, ch.minX), math.Min(c.minY, ch.minY)
				c.maxX, c.maxY = math.Max(c.maxX, ch.maxX), math.Max(c.maxY, ch.maxY)
			}
			idx.clusters[c.id] = c
			next = append(next, c)
			continue
		}

		next = append(next, p)
		if count > p.count {
			for _, n := range neighbors {
				if n.lastZoom <= z {
					continue
				}
				n.lastZoom = z
				next = append(next, n)
			}
		}
	}
	return next
}

// within returns the nodes of tree at most r away from (x, y), ordered by seq.
func within(tree *rtreego.Rtree, x, y, r float64) []*node {
	found := tree.SearchIntersect(rtreego.Point{x, y}.ToRect(r+searchEpsilon), func(_ []rtreego.Spatial, obj rtreego.Spatial) (bool, bool) {
		n := obj.(*node)
		dx, dy := n.x-x, n.y-y
		return dx*dx+dy*dy > r*r, false
	})
	return sortedNodes(found)
}

func sortedNodes(found []rtreego.Spatial) []*node {
	out := make([]*node, len(found))
	for i, s := range found {
		out[i] = s.(*node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
