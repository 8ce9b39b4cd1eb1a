package analytics

import (
	"strconv"
	"strings"
	"time"

	"venuemap.taipeimusic.org/internal/models"
)

// EventName is the name an event is reported under.
type EventName string

const (
	VenueClick        EventName = "Venue_Click"
	FilterChange      EventName = "Filter_Change"
	Search            EventName = "Search"
	GeolocationClick  EventName = "Geolocation_Click"
	ClusterClick      EventName = "Cluster_Click"
	BottomSheetExpand EventName = "BottomSheet_Expand"
	MapInteraction    EventName = "Map_Interaction"
)

// Where a venue click came from.
const (
	SourceMap         = "map"
	SourceList        = "list"
	SourceBottomSheet = "bottomsheet"
	SourceSpiderfy    = "spiderfy"
)

// Bottom sheet states.
const (
	SheetCollapsed = "collapsed"
	SheetHalf      = "half"
	SheetFull      = "full"
)

// Event is one observation sent to trackers. Props values are strings,
// numbers or booleans.
type Event struct {
	Name  EventName      `json:"name"`
	Props map[string]any `json:"props"`
	Time  time.Time      `json:"time"`
}

// Label is the property used to break an event down in metrics.
func (e Event) Label() string {
	var key string
	switch e.Name {
	case VenueClick:
		key = "source"
	case FilterChange:
		key = "category"
	case GeolocationClick:
		key = "success"
	case ClusterClick:
		key = "action"
	case BottomSheetExpand:
		key = "state"
	case MapInteraction:
		key = "type"
	default:
		return ""
	}
	switch v := e.Props[key].(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func newEvent(name EventName, props map[string]any) Event {
	return Event{Name: name, Props: props, Time: time.Now().UTC()}
}

func VenueClicked(v models.Venue, source string) Event {
	tags := "none"
	if len(v.Tags) > 0 {
		tags = strings.Join(v.Tags, ",")
	}
	return newEvent(VenueClick, map[string]any{
		"venue_name": v.Name,
		"venue_id":   v.ID,
		"tags":       tags,
		"source":     source,
	})
}

// FilterChanged records one label being added to or removed from a filter
// category ("tags" or "scenario").
func FilterChanged(category, value string, added bool) Event {
	action := "remove"
	if added {
		action = "add"
	}
	return newEvent(FilterChange, map[string]any{
		"category": category,
		"value":    value,
		"action":   action,
	})
}

func Searched(query string, results int) Event {
	return newEvent(Search, map[string]any{
		"query":         query,
		"results_count": results,
	})
}

// GeolocationResult records the outcome of a locate request. errKind is
// empty on success.
func GeolocationResult(success bool, errKind string) Event {
	if errKind == "" {
		errKind = "none"
	}
	return newEvent(GeolocationClick, map[string]any{
		"success": success,
		"error":   errKind,
	})
}

func ClusterClicked(pointCount int, zoom float64, action string) Event {
	return newEvent(ClusterClick, map[string]any{
		"point_count": pointCount,
		"zoom":        zoom,
		"action":      action,
	})
}

func BottomSheetExpanded(state string) Event {
	return newEvent(BottomSheetExpand, map[string]any{"state": state})
}

// MapInteracted records a pan, zoom or click on the map.
func MapInteracted(kind string, zoom float64) Event {
	return newEvent(MapInteraction, map[string]any{
		"type": kind,
		"zoom": zoom,
	})
}

// FilterDiff turns a wholesale filter replacement into per-label change
// events, additions first.
func FilterDiff(prev, next models.VenueFilter) []Event {
	var events []Event
	events = append(events, diffLabels("tags", prev.Tags, next.Tags)...)
	events = append(events, diffLabels("scenario", prev.Scenario, next.Scenario)...)
	return events
}

func diffLabels(category string, prev, next []string) []Event {
	before := make(map[string]bool, len(prev))
	for _, l := range prev {
		before[l] = true
	}
	after := make(map[string]bool, len(next))
	for _, l := range next {
		after[l] = true
	}

	var events []Event
	for _, l := range next {
		if !before[l] {
			events = append(events, FilterChanged(category, l, true))
			before[l] = true
		}
	}
	for _, l := range prev {
		if !after[l] {
			events = append(events, FilterChanged(category, l, false))
			after[l] = true
		}
	}
	return events
}
