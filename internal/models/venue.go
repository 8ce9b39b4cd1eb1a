package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// ErrBadCoordinates is returned when decoding a venue whose coordinates are
// missing, null or not exactly two finite numbers.
var ErrBadCoordinates = errors.New("coordinates must be [longitude, latitude]")

// Venue is a single music venue as it appears in the venue collection.
//
// Coordinates are stored as [longitude, latitude] in WGS84 decimal degrees,
// which is also the JSON shape used by the data file.
type Venue struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Coordinates    orb.Point `json:"coordinates" yaml:"coordinates"`
	Tags           []string  `json:"tags" yaml:"tags"`         // genre labels: Jazz, Rock, Indie ...
	Scenario       []string  `json:"scenario" yaml:"scenario"` // mood labels: 約會, 平價 ...
	OriginalReview string    `json:"original_review" yaml:"original_review"`
	IsCanary       bool      `json:"is_canary,omitempty" yaml:"is_canary"`
	Address        string    `json:"address,omitempty" yaml:"address,omitempty"`
	OpeningHours   string    `json:"opening_hours,omitempty" yaml:"opening_hours,omitempty"`
	MinimumCharge  string    `json:"minimum_charge,omitempty" yaml:"minimum_charge,omitempty"`
	Phone          string    `json:"phone,omitempty" yaml:"phone,omitempty"`
	Website        string    `json:"website,omitempty" yaml:"website,omitempty"`
}

// Lng returns the venue longitude.
func (v Venue) Lng() float64 { return v.Coordinates.Lon() }

// Lat returns the venue latitude.
func (v Venue) Lat() float64 { return v.Coordinates.Lat() }

// rawCoordinates sees what the data file actually holds, which orb.Point
// would silently zero fill.
type rawCoordinates struct {
	ID          string     `json:"id" yaml:"id"`
	Coordinates []*float64 `json:"coordinates" yaml:"coordinates"`
}

func (r rawCoordinates) point() (orb.Point, error) {
	if len(r.Coordinates) != 2 {
		return orb.Point{}, fmt.Errorf("venue %q: %w, got %d values", r.ID, ErrBadCoordinates, len(r.Coordinates))
	}
	var p orb.Point
	for i, c := range r.Coordinates {
		if c == nil || math.IsNaN(*c) || math.IsInf(*c, 0) {
			return orb.Point{}, fmt.Errorf("venue %q: %w", r.ID, ErrBadCoordinates)
		}
		p[i] = *c
	}
	return p, nil
}

// venueFields decodes like Venue without the custom unmarshalers.
type venueFields Venue

func (v *Venue) UnmarshalJSON(data []byte) error {
	var raw rawCoordinates
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p, err := raw.point()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, (*venueFields)(v)); err != nil {
		return err
	}
	v.Coordinates = p
	return nil
}

func (v *Venue) UnmarshalYAML(node *yaml.Node) error {
	var raw rawCoordinates
	if err := node.Decode(&raw); err != nil {
		return err
	}
	p, err := raw.point()
	if err != nil {
		return err
	}
	if err := node.Decode((*venueFields)(v)); err != nil {
		return err
	}
	v.Coordinates = p
	return nil
}

// HasTag reports whether the venue carries the exact tag label.
func (v Venue) HasTag(tag string) bool {
	for _, t := range v.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasScenario reports whether the venue carries the exact scenario label.
func (v Venue) HasScenario(scenario string) bool {
	for _, s := range v.Scenario {
		if s == scenario {
			return true
		}
	}
	return false
}

// VenueCollection is the versioned document every venue source produces.
type VenueCollection struct {
	Venues      []Venue `json:"venues" yaml:"venues"`
	LastUpdated string  `json:"last_updated" yaml:"last_updated"`
	Version     string  `json:"version" yaml:"version"`
}

// VenueFilter selects venues by tag and scenario labels.
// A nil or empty field imposes no constraint.
type VenueFilter struct {
	Tags     []string `json:"tags,omitempty"`
	Scenario []string `json:"scenario,omitempty"`
}

// IsEmpty reports whether the filter constrains nothing.
func (f VenueFilter) IsEmpty() bool {
	return len(f.Tags) == 0 && len(f.Scenario) == 0
}
