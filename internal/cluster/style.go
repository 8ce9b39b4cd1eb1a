package cluster

// Marker styling shared by every client that draws features.

// ClusterSize returns the diameter in pixels of a cluster marker.
func ClusterSize(pointCount int) int {
	switch {
	case pointCount < 10:
		return 40
	case pointCount < 30:
		return 50
	case pointCount < 50:
		return 60
	default:
		return 70
	}
}

// ClusterColor returns the fill colour of a cluster marker, darker for
// bigger clusters.
func ClusterColor(pointCount int) string {
	switch {
	case pointCount < 10:
		return "#6B8272"
	case pointCount < 30:
		return "#4A5D4E"
	case pointCount < 50:
		return "#3A4D3E"
	default:
		return "#2A3D2E"
	}
}

const defaultMarkerColor = "#4A5D4E"

var tagColors = []struct {
	tag   string
	color string
}{
	{"Jazz", "#4A5D4E"},
	{"Rock", "#8B4513"},
	{"Punk", "#8B4513"},
	{"Indie", "#6B8272"},
	{"Electronic", "#5F9EA0"},
}

// MarkerColor returns the colour of a single venue marker. The first tag in
// priority order Jazz, Rock/Punk, Indie, Electronic decides.
func MarkerColor(tags []string) string {
	for _, tc := range tagColors {
		for _, t := range tags {
			if t == tc.tag {
				return tc.color
			}
		}
	}
	return defaultMarkerColor
}
