package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/geo"
	"venuemap.taipeimusic.org/internal/geolocate"
	"venuemap.taipeimusic.org/internal/interaction"
	"venuemap.taipeimusic.org/internal/mapview"
	"venuemap.taipeimusic.org/internal/models"
	"venuemap.taipeimusic.org/internal/viewport"
)

// withSession runs fn against the caller's map session under the
// application lock and replies with the resulting state. The session id
// travels in the X-Session-ID header; a missing or expired id opens a new
// session, announced with 201.
func (app *Application) withSession(w http.ResponseWriter, r *http.Request, fn func(s *mapview.Session) (any, error)) {
	app.mu.Lock()
	s, created := app.session(r.Header.Get(sessionHeader))
	extra, err := fn(s)
	state := s.Snapshot()
	app.mu.Unlock()

	w.Header().Set(sessionHeader, s.ID)
	if err != nil {
		app.badRequest(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	if extra != nil {
		app.writeJSON(w, status, envelope{"state": state, "result": extra})
		return
	}
	app.writeJSON(w, status, envelope{"state": state})
}

// decode reads the request body into dst before the session is touched.
func decode[T any](app *Application, w http.ResponseWriter, r *http.Request) (T, bool) {
	var dst T
	if err := app.readJSON(w, r, &dst); err != nil {
		app.badRequest(w, err)
		return dst, false
	}
	return dst, true
}

func (app *Application) viewHandler(w http.ResponseWriter, r *http.Request) {
	app.withSession(w, r, func(*mapview.Session) (any, error) { return nil, nil })
}

func (app *Application) filterHandler(w http.ResponseWriter, r *http.Request) {
	filter, ok := decode[models.VenueFilter](app, w, r)
	if !ok {
		return
	}
	app.withSession(w, r, func(s *mapview.Session) (any, error) {
		s.SetFilter(filter)
		return nil, nil
	})
}

type searchRequest struct {
	Query string `json:"query"`
}

func (app *Application) searchHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[searchRequest](app, w, r)
	if !ok {
		return
	}
	app.withSession(w, r, func(s *mapview.Session) (any, error) {
		s.SetSearch(req.Query)
		return nil, nil
	})
}

// moveRequest is either a center and zoom or a pixel drag.
type moveRequest struct {
	Center *orb.Point `json:"center"`
	Zoom   *float64   `json:"zoom"`
	DX     float64    `json:"dx"`
	DY     float64    `json:"dy"`
}

func (app *Application) moveHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[moveRequest](app, w, r)
	if !ok {
		return
	}
	app.withSession(w, r, func(s *mapview.Session) (any, error) {
		if req.Center == nil && req.Zoom == nil {
			s.Pan(req.DX, req.DY)
			return nil, nil
		}
		view := s.Snapshot().Viewport
		center, zoom := view.Center, view.Zoom
		if req.Center != nil {
			if !geo.IsValidPoint(*req.Center) {
				return nil, errors.New("center must be [lng, lat] within range")
			}
			center = *req.Center
		}
		if req.Zoom != nil {
			zoom = *req.Zoom
		}
		s.Move(center, zoom)
		return nil, nil
	})
}

type resizeRequest struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Bounds *orb.Bound `json:"bounds"`
}

func (app *Application) resizeHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[resizeRequest](app, w, r)
	if !ok {
		return
	}
	app.withSession(w, r, func(s *mapview.Session) (any, error) {
		if req.Width < 0 || req.Height < 0 {
			return nil, errors.New("width and height must not be negative")
		}
		if req.Width > 0 && req.Height > 0 {
			s.Resize(req.Width, req.Height)
		}
		if req.Bounds != nil {
			s.ReportBounds(*req.Bounds)
		}
		return nil, nil
	})
}

type flyToRequest struct {
	Center     orb.Point `json:"center"`
	Zoom       float64   `json:"zoom"`
	DurationMS int       `json:"duration_ms"`
}

func (app *Application) flyToHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[flyToRequest](app, w, r)
	if !ok {
		return
	}
	app.withSession(w, r, func(s *mapview.Session) (any, error) {
		if !geo.IsValidPoint(req.Center) {
			return nil, errors.New("center must be [lng, lat] within range")
		}
		s.FlyTo(viewport.Target{
			Center:   req.Center,
			Zoom:     req.Zoom,
			Duration: time.Duration(req.DurationMS) * time.Millisecond,
		})
		return nil, nil
	})
}

func (app *Application) tickHandler(w http.ResponseWriter, r *http.Request) {
	app.withSession(w, r, func(s *mapview.Session) (any, error) {
		return envelope{"animating": s.Tick()}, nil
	})
}

type clusterClickRequest struct {
	ClusterID uint64 `json:"cluster_id"`
}

type clusterClickResponse struct {
	Action     interaction.Action `json:"action"`
	PointCount int                `json:"point_count"`
	Zoom       float64            `json:"zoom"`
	TargetZoom int                `json:"target_zoom,omitempty"`
}

func (app *Application) clusterClickHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[clusterClickRequest](app, w, r)
	if !ok {
		return
	}
	app.withSession(w, r, func(s *mapview.Session) (any, error) {
		res := s.ClusterClick(req.ClusterID)
		return clusterClickResponse{
			Action:     res.Action,
			PointCount: res.PointCount,
			Zoom:       res.Zoom,
			TargetZoom: res.TargetZoom,
		}, nil
	})
}

type markerClickRequest struct {
	VenueID string `json:"venue_id"`
	Source  string `json:"source"`
}

func (app *Application) markerClickHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[markerClickRequest](app, w, r)
	if !ok {
		return
	}
	app.withSession(w, r, func(s *mapview.Session) (any, error) {
		_, found := s.MarkerClick(req.VenueID, req.Source)
		return envelope{"found": found}, nil
	})
}

func (app *Application) backgroundClickHandler(w http.ResponseWriter, r *http.Request) {
	app.withSession(w, r, func(s *mapview.Session) (any, error) {
		s.BackgroundClick()
		return nil, nil
	})
}

// locateRequest carries what the browser found out. Without either field the
// server locates the caller by IP.
type locateRequest struct {
	Position *struct {
		Lat      float64 `json:"lat"`
		Lon      float64 `json:"lon"`
		Accuracy float64 `json:"accuracy"`
	} `json:"position"`
	Error string `json:"error"`
}

func (app *Application) locateHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[locateRequest](app, w, r)
	if !ok {
		return
	}

	var locator geolocate.Locator
	switch {
	case req.Error != "":
		locator = geolocate.Failing(geolocate.ParseKind(req.Error))
	case req.Position != nil:
		p := orb.Point{req.Position.Lon, req.Position.Lat}
		if !geo.IsValidPoint(p) {
			app.badRequest(w, errors.New("position out of range"))
			return
		}
		locator = geolocate.Fixed(p)
	default:
		locator = app.Locator
		if locator == nil {
			locator = geolocate.Unavailable
		}
		// The lookup may hit the network; resolve it before taking the lock.
		ctx, cancel := context.WithTimeout(r.Context(), geolocate.DefaultTimeout)
		defer cancel()
		pos, err := locator.Locate(ctx, geolocate.Request{IP: geolocate.ClientIP(r), HighAccuracy: true})
		if err != nil {
			locator = geolocate.Failing(err)
		} else {
			locator = geolocate.Fixed(pos.Point)
		}
	}

	app.withSession(w, r, func(s *mapview.Session) (any, error) {
		// A failed lookup is part of the session state, not a bad request.
		pos, err := s.Locate(r.Context(), locator, geolocate.Request{})
		if err != nil {
			return envelope{"success": false, "error": geolocate.Kind(err)}, nil
		}
		return envelope{"success": true, "position": pos}, nil
	})
}

type bottomSheetRequest struct {
	State string `json:"state"`
}

func (app *Application) bottomSheetHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[bottomSheetRequest](app, w, r)
	if !ok {
		return
	}
	app.withSession(w, r, func(s *mapview.Session) (any, error) {
		if !s.SetBottomSheet(req.State) {
			return nil, errors.New("state must be one of collapsed, half, full")
		}
		return nil, nil
	})
}
