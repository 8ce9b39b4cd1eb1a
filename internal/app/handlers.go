package app

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/cluster"
	"venuemap.taipeimusic.org/internal/geo"
	"venuemap.taipeimusic.org/internal/mapview"
	"venuemap.taipeimusic.org/internal/venues"
)

// HealthStatus is the body of /v1/healthcheck. The service is ready once a
// non-empty venue collection has loaded.
type HealthStatus struct {
	Status            string `json:"status"`
	Environment       string `json:"environment"`
	Version           string `json:"version"`
	CollectionVersion string `json:"collection_version"`
	LastUpdated       string `json:"last_updated"`
	Venues            int    `json:"venues"`
	OverlapGroups     int    `json:"overlap_groups"`
	Ready             bool   `json:"ready"`
	LoadError         string `json:"load_error,omitempty"`
}

func (app *Application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	store, loadErr := app.Store()

	status := HealthStatus{
		Status:            "available",
		Environment:       app.Config.Env,
		Version:           app.Version,
		CollectionVersion: store.Version(),
		LastUpdated:       store.LastUpdated(),
		Venues:            store.Len(),
		OverlapGroups:     len(store.Overlaps()),
		Ready:             loadErr == nil && store.Len() > 0,
	}
	if loadErr != nil {
		status.LoadError = loadErr.Error()
	}

	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	app.writeJSON(w, code, status)
}

// listVenuesHandler serves the venue list narrowed by tags, scenario and q,
// optionally sorted by distance from near=lat,lon. format=geojson returns a
// FeatureCollection.
func (app *Application) listVenuesHandler(w http.ResponseWriter, r *http.Request) {
	store, _ := app.Store()
	list := store.Query(filterFromQuery(r), r.URL.Query().Get("q"))

	if near := r.URL.Query().Get("near"); near != "" {
		from, err := parseLatLon(near)
		if err != nil || !geo.IsValidPoint(from) {
			app.badRequest(w, fmt.Errorf("invalid near parameter %q", near))
			return
		}
		venues.ByDistance(list, from)
	}

	if r.URL.Query().Get("format") == "geojson" {
		app.writeJSON(w, http.StatusOK, mapview.VenueCollection(list))
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{
		"venues":  list,
		"count":   len(list),
		"version": store.Version(),
	})
}

func (app *Application) showVenueHandler(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	store, _ := app.Store()
	v, ok := store.ByID(id)
	if !ok {
		app.notFound(w, fmt.Sprintf("venue %q not found", id))
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"venue": v})
}

// clustersHandler answers a viewport query without a session: the bounding
// box west,south,east,north at zoom over the venues matching the filter.
func (app *Application) clustersHandler(w http.ResponseWriter, r *http.Request) {
	var box [4]float64
	for i, key := range []string{"west", "south", "east", "north"} {
		v, err := parseFloat(r, key)
		if err != nil {
			app.badRequest(w, err)
			return
		}
		box[i] = v
	}
	zoom, err := parseFloat(r, "zoom")
	if err != nil || math.IsNaN(zoom) {
		app.badRequest(w, errors.New("invalid zoom"))
		return
	}
	bbox := orb.Bound{Min: orb.Point{box[0], box[1]}, Max: orb.Point{box[2], box[3]}}

	app.mu.Lock()
	idx := app.clusterIndex(filterFromQuery(r), r.URL.Query().Get("q"))
	features := idx.Query(bbox, zoom)
	app.mu.Unlock()

	w.Header().Set("X-Build-ID", idx.BuildID())
	app.writeJSON(w, http.StatusOK, mapview.FeatureCollection(features))
}

// withCluster parses the cluster id route parameter and runs fn against the
// index that issued it under the application lock. It reports false, after
// writing the error response, when the id is malformed or unknown.
func (app *Application) withCluster(w http.ResponseWriter, r *http.Request, fn func(idx *cluster.Index, id uint64) error) (uint64, bool) {
	id, err := parseClusterID(httprouter.ParamsFromContext(r.Context()).ByName("id"))
	if err != nil {
		app.badRequest(w, err)
		return 0, false
	}

	app.mu.Lock()
	idx, ok := app.indexByCluster(id)
	if ok {
		err = fn(idx, id)
	}
	app.mu.Unlock()

	switch {
	case !ok:
		app.notFound(w, "cluster not found; it may belong to an earlier query")
		return 0, false
	case err != nil:
		app.serverError(w, r, err)
		return 0, false
	}
	return id, true
}

func (app *Application) clusterLeavesHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := 10, 0
	q := r.URL.Query()
	for key, dst := range map[string]*int{"limit": &limit, "offset": &offset} {
		if raw := q.Get(key); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				app.badRequest(w, fmt.Errorf("invalid %s %q", key, raw))
				return
			}
			*dst = v
		}
	}

	var leaves []cluster.Feature
	_, ok := app.withCluster(w, r, func(idx *cluster.Index, id uint64) (err error) {
		leaves, err = idx.Leaves(id, limit, offset)
		return err
	})
	if !ok {
		return
	}
	app.writeJSON(w, http.StatusOK, mapview.FeatureCollection(leaves))
}

func (app *Application) clusterExpansionZoomHandler(w http.ResponseWriter, r *http.Request) {
	var zoom int
	id, ok := app.withCluster(w, r, func(idx *cluster.Index, id uint64) (err error) {
		zoom, err = idx.ExpansionZoom(id)
		return err
	})
	if !ok {
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"cluster_id": id, "expansion_zoom": zoom})
}
