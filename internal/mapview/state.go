package mapview

import (
	"github.com/paulmach/orb/geojson"
	"venuemap.taipeimusic.org/internal/geolocate"
	"venuemap.taipeimusic.org/internal/interaction"
	"venuemap.taipeimusic.org/internal/models"
	"venuemap.taipeimusic.org/internal/viewport"
)

// State is everything a renderer needs to draw the session.
type State struct {
	SessionID        string                     `json:"session_id"`
	BuildID          string                     `json:"build_id"`
	Viewport         viewport.Viewport          `json:"viewport"`
	Animating        bool                       `json:"animating"`
	Features         *geojson.FeatureCollection `json:"features"`
	Interaction      string                     `json:"interaction"`
	Spiderfy         *interaction.Group         `json:"spiderfy,omitempty"`
	// Spiderfy drawn as GeoJSON, each venue at its fanned out position.
	SpiderfyFeatures *geojson.FeatureCollection `json:"spiderfy_features,omitempty"`
	Filter           models.VenueFilter         `json:"filter"`
	Query            string                     `json:"query"`
	VenueCount       int                        `json:"venue_count"`
	Selected         *models.Venue              `json:"selected,omitempty"`
	UserPosition     *geolocate.Position        `json:"user_position,omitempty"`
	Notice           *Notice                    `json:"notice,omitempty"`
	BottomSheet      string                     `json:"bottom_sheet"`
	LoadError        string                     `json:"load_error,omitempty"`
}

// Snapshot captures the current state.
func (s *Session) Snapshot() State {
	st := State{
		SessionID:    s.ID,
		BuildID:      s.index.BuildID(),
		Viewport:     s.view.Viewport(),
		Animating:    s.view.Animating(),
		Features:     FeatureCollection(s.view.Features()),
		Interaction:  s.clicks.State().String(),
		Filter:       s.filter,
		Query:        s.query,
		VenueCount:   len(s.visible),
		Selected:     s.selected,
		UserPosition: s.user,
		BottomSheet:  s.sheet,
	}
	if g, ok := s.clicks.Group(); ok {
		st.Spiderfy = &g
		st.SpiderfyFeatures = SpiderfyCollection(g)
	}
	if n, ok := s.Notice(); ok {
		st.Notice = &n
	}
	if s.loadErr != nil {
		st.LoadError = s.loadErr.Error()
	}
	return st
}
