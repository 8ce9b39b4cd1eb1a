package venues

import (
	"sort"

	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/geo"
	"venuemap.taipeimusic.org/internal/models"
)

// ByDistance sorts venues in place, nearest to from first. Venues with
// invalid coordinates go last, keeping their relative order.
func ByDistance(list []models.Venue, from orb.Point) {
	dist := make(map[string]float64, len(list))
	for _, v := range list {
		if geo.IsValidPoint(v.Coordinates) {
			dist[v.ID] = geo.HaversineDistance(from.Lat(), from.Lon(), v.Lat(), v.Lng())
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		di, iok := dist[list[i].ID]
		dj, jok := dist[list[j].ID]
		if iok != jok {
			return iok
		}
		return iok && di < dj
	})
}
