package cluster

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/geo"
)

// zoomLevel floors zoom and clamps it to the levels the index holds.
func (idx *Index) zoomLevel(zoom float64) int {
	if math.IsNaN(zoom) {
		return idx.opts.MinZoom
	}
	z := math.Floor(zoom)
	if z < float64(idx.opts.MinZoom) {
		return idx.opts.MinZoom
	}
	if z > float64(idx.opts.MaxZoom+1) {
		return idx.opts.MaxZoom + 1
	}
	return int(z)
}

// Query returns the features visible in bbox at zoom. Together they hold
// exactly the venues inside bbox: a cluster with venues on both sides of the
// box edge is replaced by the largest of its parts that lie inside.
//
// A box whose Min.X is greater than its Max.X, or whose edges run past the
// antimeridian, is treated as wrapping around it. Results are ordered the
// same way for the same index and inputs.
func (idx *Index) Query(bbox orb.Bound, zoom float64) []Feature {
	z := idx.zoomLevel(zoom)

	minLat := clamp(bbox.Min.Lat(), -90, 90)
	maxLat := clamp(bbox.Max.Lat(), -90, 90)
	if minLat > maxLat {
		minLat, maxLat = maxLat, minLat
	}

	west, east := bbox.Min.Lon(), bbox.Max.Lon()
	if east-west >= 360 {
		return idx.search(z, -180, minLat, 180, maxLat)
	}
	minLng := wrapLng(west)
	maxLng := 180.0
	if east != 180 {
		maxLng = wrapLng(east)
	}

	if minLng > maxLng {
		found := idx.searchNodes(z, minLng, minLat, 180, maxLat)
		found = append(found, idx.searchNodes(z, -180, minLat, maxLng, maxLat)...)
		return toFeatures(dedupe(found))
	}
	return idx.search(z, minLng, minLat, maxLng, maxLat)
}

func (idx *Index) search(z int, minLng, minLat, maxLng, maxLat float64) []Feature {
	return toFeatures(idx.searchNodes(z, minLng, minLat, maxLng, maxLat))
}

func (idx *Index) searchNodes(z int, minLng, minLat, maxLng, maxLat float64) []*node {
	tree := idx.trees[z]
	if tree == nil || tree.Size() == 0 {
		return nil
	}
	minX, maxX := geo.ProjectX(minLng), geo.ProjectX(maxLng)
	minY, maxY := geo.ProjectY(maxLat), geo.ProjectY(minLat)

	rect, err := rtreego.NewRectFromPoints(
		rtreego.Point{minX - searchEpsilon, minY - searchEpsilon},
		rtreego.Point{maxX + searchEpsilon, maxY + searchEpsilon},
	)
	if err != nil {
		return nil
	}
	box := projectedBox{minX, minY, maxX, maxY}
	var out []*node
	for _, obj := range tree.SearchIntersect(rect) {
		out = box.collect(obj.(*node), out)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// projectedBox is a query box in Web Mercator unit space.
type projectedBox struct {
	minX, minY, maxX, maxY float64
}

func (b projectedBox) contains(n *node) bool {
	return n.minX >= b.minX && n.maxX <= b.maxX && n.minY >= b.minY && n.maxY <= b.maxY
}

func (b projectedBox) intersects(n *node) bool {
	return n.minX <= b.maxX && n.maxX >= b.minX && n.minY <= b.maxY && n.maxY >= b.minY
}

// collect appends n if all of its venues are inside b, otherwise the parts of
// n that are.
func (b projectedBox) collect(n *node, out []*node) []*node {
	if b.contains(n) {
		return append(out, n)
	}
	if !b.intersects(n) {
		return out
	}
	for _, c := range n.children {
		out = b.collect(c, out)
	}
	return out
}

func dedupe(nodes []*node) []*node {
	seen := make(map[*node]struct{}, len(nodes))
	out := nodes[:0]
	for _, n := range nodes {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func toFeatures(nodes []*node) []Feature {
	out := make([]Feature, len(nodes))
	for i, n := range nodes {
		out[i] = n.feature()
	}
	return out
}

func wrapLng(lng float64) float64 {
	return math.Mod(math.Mod(lng+180, 360)+360, 360) - 180
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func (idx *Index) lookup(id uint64) (*node, error) {
	if id>>32 != idx.gen {
		return nil, ErrUnknownCluster
	}
	n, ok := idx.clusters[id]
	if !ok {
		return nil, ErrUnknownCluster
	}
	return n, nil
}

// Cluster returns the cluster feature with the given id.
func (idx *Index) Cluster(id uint64) (Feature, error) {
	n, err := idx.lookup(id)
	if err != nil {
		return Feature{}, err
	}
	return n.feature(), nil
}

// Leaves returns the venues under a cluster as point features, skipping
// offset of them and returning at most limit. A limit of zero or less
// returns all of them.
func (idx *Index) Leaves(id uint64, limit, offset int) ([]Feature, error) {
	n, err := idx.lookup(id)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n.count
	}

	out := make([]Feature, 0, min(limit, n.count))
	skipped := 0
	var walk func(*node) bool
	walk = func(c *node) bool {
		if c.venue != nil {
			if skipped < offset {
				skipped++
				return true
			}
			out = append(out, pointFeature(c.venue))
			return len(out) < limit
		}
		if skipped+c.count <= offset {
			skipped += c.count
			return true
		}
		for _, child := range c.children {
			if !walk(child) {
				return false
			}
		}
		return true
	}
	walk(n)
	return out, nil
}

// ExpansionZoom returns the zoom at which the cluster breaks apart into more
// than one feature, capped at MaxZoom.
func (idx *Index) ExpansionZoom(id uint64) (int, error) {
	n, err := idx.lookup(id)
	if err != nil {
		return 0, err
	}
	z := n.originZ + 1
	for len(n.children) == 1 && z <= idx.opts.MaxZoom {
		n = n.children[0]
		if n.venue != nil {
			break
		}
		z = n.originZ + 1
	}
	if z > idx.opts.MaxZoom {
		z = idx.opts.MaxZoom
	}
	return z, nil
}
