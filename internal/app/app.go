package app

import (
	"log/slog"
	"sync"
	"time"

	"venuemap.taipeimusic.org/internal/analytics"
	"venuemap.taipeimusic.org/internal/cluster"
	"venuemap.taipeimusic.org/internal/config"
	"venuemap.taipeimusic.org/internal/geolocate"
	"venuemap.taipeimusic.org/internal/mapview"
	"venuemap.taipeimusic.org/internal/models"
	"venuemap.taipeimusic.org/internal/venues"
	"venuemap.taipeimusic.org/internal/viewport"
)

const (
	sessionIdleTimeout = 30 * time.Minute
	maxCachedIndexes   = 32
)

// Application holds the dependencies of the HTTP handlers: configuration,
// the loaded venues and the map sessions opened by clients.
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	Tracker analytics.Tracker
	Locator geolocate.Locator
	Version string

	mu       sync.Mutex
	store    *venues.Store
	loadErr  error
	sessions map[string]*sessionEntry
	indexes  map[string]*cluster.Index
	now      func() time.Time
}

type sessionEntry struct {
	session  *mapview.Session
	lastSeen time.Time
}

// New wires the application around an already loaded store. loadErr is the
// error that left store empty, if any.
func New(cfg *config.Config, logger *slog.Logger, store *venues.Store, loadErr error, tracker analytics.Tracker, locator geolocate.Locator, version string) *Application {
	if store == nil {
		store = venues.EmptyStore()
	}
	if tracker == nil {
		tracker = analytics.Nop{}
	}
	return &Application{
		Config:   cfg,
		Logger:   logger,
		Tracker:  tracker,
		Locator:  locator,
		Version:  version,
		store:    store,
		loadErr:  loadErr,
		sessions: map[string]*sessionEntry{},
		indexes:  map[string]*cluster.Index{},
		now:      time.Now,
	}
}

// Store returns the venues currently served and the error of the last load.
func (app *Application) Store() (*venues.Store, error) {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.store, app.loadErr
}

// ReplaceStore installs a freshly loaded collection. Open sessions switch to
// it and cached cluster indexes are dropped.
func (app *Application) ReplaceStore(store *venues.Store) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.store = store
	app.loadErr = nil
	app.indexes = map[string]*cluster.Index{}
	for _, e := range app.sessions {
		e.session.SetStore(store)
	}
}

func (app *Application) sessionOptions() mapview.Options {
	cfg := app.Config
	return mapview.Options{
		Cluster: cfg.Cluster,
		Initial: viewport.Viewport{
			Center: cfg.InitialCenter,
			Zoom:   cfg.InitialZoom,
			Width:  cfg.ViewportWidth,
			Height: cfg.ViewportHeight,
		},
		SpiderfyRadius: cfg.SpiderfyRadius,
		Now:            app.now,
	}
}

// session returns the session with id, opening a new one when id is empty or
// unknown. The caller must hold app.mu.
func (app *Application) session(id string) (*mapview.Session, bool) {
	now := app.now()
	if e, ok := app.sessions[id]; ok {
		e.lastSeen = now
		return e.session, false
	}

	for sid, e := range app.sessions {
		if now.Sub(e.lastSeen) > sessionIdleTimeout {
			delete(app.sessions, sid)
		}
	}
	s := mapview.NewSession(app.store, app.loadErr, app.sessionOptions(), app.Tracker, app.Locator, app.Logger)
	app.sessions[s.ID] = &sessionEntry{session: s, lastSeen: now}
	app.Logger.Debug("Opened map session", "session", s.ID, "open", len(app.sessions))
	return s, true
}

// clusterIndex returns an index over the venues matching filter and query,
// reusing one built for the same arguments. The caller must hold app.mu.
func (app *Application) clusterIndex(filter models.VenueFilter, query string) *cluster.Index {
	key := indexKey(filter, query)
	if idx, ok := app.indexes[key]; ok {
		return idx
	}
	if len(app.indexes) >= maxCachedIndexes {
		app.indexes = map[string]*cluster.Index{}
	}
	idx := cluster.New(app.Config.Cluster)
	idx.Build(app.store.Query(filter, query))
	app.indexes[key] = idx
	return idx
}

// indexByCluster finds the cached index that issued a cluster id.
func (app *Application) indexByCluster(id uint64) (*cluster.Index, bool) {
	for _, idx := range app.indexes {
		if _, err := idx.Cluster(id); err == nil {
			return idx, true
		}
	}
	return nil, false
}
