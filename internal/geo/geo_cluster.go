package geo

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
)

// overlapPrecision is the number of decimals used to decide that two
// coordinates sit on the same spot (about 1 m).
const overlapPrecision = 5

// OverlapKey returns the key under which coordinates that are practically
// identical collapse together.
func OverlapKey(p orb.Point) string {
	return fmt.Sprintf("%.*f,%.*f", overlapPrecision, p.Lon(), overlapPrecision, p.Lat())
}

// GroupOverlapping groups indexes of points sharing an OverlapKey.
// Only groups of two or more points are returned, ordered by their first index.
func GroupOverlapping(points []orb.Point) [][]int {
	byKey := make(map[string][]int)
	var keys []string
	for i, p := range points {
		key := OverlapKey(p)
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], i)
	}

	var groups [][]int
	for _, key := range keys {
		if idx := byKey[key]; len(idx) > 1 {
			groups = append(groups, idx)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}
