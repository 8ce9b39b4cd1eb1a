package mapview

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/analytics"
	"venuemap.taipeimusic.org/internal/cluster"
	"venuemap.taipeimusic.org/internal/geo"
	"venuemap.taipeimusic.org/internal/geolocate"
	"venuemap.taipeimusic.org/internal/interaction"
	"venuemap.taipeimusic.org/internal/metrics"
	"venuemap.taipeimusic.org/internal/models"
	"venuemap.taipeimusic.org/internal/venues"
	"venuemap.taipeimusic.org/internal/viewport"
)

const (
	DefaultNoticeTTL      = 3 * time.Second
	DefaultLocateZoom     = 15
	DefaultLocateDuration = time.Second
)

// Options configures a Session.
type Options struct {
	Cluster        cluster.Options
	Initial        viewport.Viewport
	FitToVenues    bool
	SpiderfyRadius float64
	LocateZoom     float64
	LocateDuration time.Duration
	NoticeTTL      time.Duration
	Now            func() time.Time
}

// Notice is an advisory message that disappears on its own.
type Notice struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Expires time.Time `json:"expires"`
}

// Session is one map instance: the venue list narrowed by filter and
// search, its cluster index, the viewport and the click state machine.
//
// A Session is not safe for concurrent use. Events must be applied one at a
// time in the order they happened.
type Session struct {
	ID string

	store   *venues.Store
	loadErr error
	opts    Options
	logger  *slog.Logger
	tracker analytics.Tracker
	locator geolocate.Locator
	now     func() time.Time

	filter  models.VenueFilter
	query   string
	visible []models.Venue

	index  *cluster.Index
	view   *viewport.Controller
	clicks *interaction.Controller

	selected *models.Venue
	user     *geolocate.Position
	notice   *Notice
	sheet    string
}

// NewSession builds the session for store. loadErr is the error, if any,
// that left store empty.
func NewSession(store *venues.Store, loadErr error, opts Options, tracker analytics.Tracker, locator geolocate.Locator, logger *slog.Logger) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LocateZoom <= 0 {
		opts.LocateZoom = DefaultLocateZoom
	}
	if opts.LocateDuration <= 0 {
		opts.LocateDuration = DefaultLocateDuration
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = DefaultNoticeTTL
	}
	if tracker == nil {
		tracker = analytics.Nop{}
	}
	if locator == nil {
		locator = geolocate.Unavailable
	}
	if store == nil {
		store = venues.EmptyStore()
	}

	s := &Session{
		ID:      uuid.NewString(),
		store:   store,
		loadErr: loadErr,
		opts:    opts,
		logger:  logger,
		tracker: tracker,
		locator: locator,
		now:     opts.Now,
		index:   cluster.New(opts.Cluster),
		sheet:   analytics.SheetCollapsed,
	}

	initial := opts.Initial
	if opts.FitToVenues && store.Len() > 0 {
		points := make([]orb.Point, 0, store.Len())
		for _, v := range store.All() {
			points = append(points, v.Coordinates)
		}
		if b, err := geo.BoundsOf(points); err == nil {
			initial = viewport.Fit(b, initial.Width, initial.Height)
		}
	}

	s.view = viewport.NewController(initial, opts.Now)
	s.clicks = interaction.NewController(s.index, s.view, opts.SpiderfyRadius)
	s.view.OnChange(s.clicks.ViewportChanged)
	s.clicks.OnSelect(func(v models.Venue) { s.selected = &v })

	s.refresh()
	return s
}

// refresh recomputes the visible list and rebuilds the index from it.
func (s *Session) refresh() {
	s.visible = s.store.Query(s.filter, s.query)

	start := time.Now()
	stats := s.index.Build(s.visible)
	took := time.Since(start)
	metrics.RecordIndexBuild(stats, took)
	if stats.Excluded > 0 {
		s.logger.Warn("Venues excluded from the cluster index", "excluded", stats.Excluded, "indexed", stats.Indexed)
	}
	s.logger.Debug("Cluster index rebuilt",
		"session", s.ID, "build_id", s.index.BuildID(), "venues", stats.Indexed, "took", took)

	s.clicks.SetIndex(s.index)
	s.view.SetIndex(s.index)
}

func (s *Session) Store() *venues.Store { return s.store }

func (s *Session) LoadError() error { return s.loadErr }

// SetStore swaps in a reloaded venue collection, keeping filter, search and
// viewport. A selection the new collection no longer has is dropped.
func (s *Session) SetStore(store *venues.Store) {
	s.store = store
	s.loadErr = nil
	if s.selected != nil {
		if v, ok := store.ByID(s.selected.ID); ok {
			s.selected = &v
		} else {
			s.selected = nil
		}
	}
	s.refresh()
}

func (s *Session) Index() *cluster.Index { return s.index }

// Visible returns the venues passing the current filter and search.
func (s *Session) Visible() []models.Venue { return s.visible }

// SetFilter replaces the filter wholesale.
func (s *Session) SetFilter(f models.VenueFilter) {
	for _, e := range analytics.FilterDiff(s.filter, f) {
		s.tracker.Track(e)
	}
	s.filter = f
	s.refresh()
}

// SetSearch replaces the search query.
func (s *Session) SetSearch(query string) {
	s.query = query
	s.refresh()
	if strings.TrimSpace(query) != "" {
		s.tracker.Track(analytics.Searched(query, len(s.visible)))
	}
}

// Move handles a pan or zoom gesture.
func (s *Session) Move(center orb.Point, zoom float64) {
	kind := "pan"
	if zoom != s.view.Viewport().Zoom {
		kind = "zoom"
	}
	s.view.Move(center, zoom)
	s.tracker.Track(analytics.MapInteracted(kind, s.view.Viewport().Zoom))
}

// Pan handles a drag by a pixel offset.
func (s *Session) Pan(dx, dy float64) {
	s.view.Pan(dx, dy)
	s.tracker.Track(analytics.MapInteracted("pan", s.view.Viewport().Zoom))
}

func (s *Session) Resize(width, height int) {
	s.view.Resize(width, height)
}

func (s *Session) ReportBounds(b orb.Bound) {
	s.view.ReportBounds(b)
}

func (s *Session) FlyTo(t viewport.Target) {
	s.view.FlyTo(t)
}

// Tick advances a running fly-to to the session clock.
func (s *Session) Tick() bool {
	return s.view.Tick(s.now())
}

// ClusterClick handles a click on a cluster marker. A cluster id from an
// earlier index build is ignored.
func (s *Session) ClusterClick(id uint64) interaction.ClickResult {
	result, err := s.clicks.ClusterClick(id)
	metrics.ClusterClicks.WithLabelValues(string(result.Action)).Inc()
	if err != nil {
		if !interaction.IsStale(err) {
			s.logger.Error("Cluster click failed", "cluster_id", id, "error", err)
		} else {
			s.logger.Debug("Ignoring click on stale cluster", "cluster_id", id)
		}
		return result
	}
	s.tracker.Track(analytics.ClusterClicked(result.PointCount, result.Zoom, string(result.Action)))
	return result
}

// MarkerClick selects a venue. It reports false for unknown venue ids.
func (s *Session) MarkerClick(venueID, source string) (models.Venue, bool) {
	v, ok := s.store.ByID(venueID)
	if !ok {
		return models.Venue{}, false
	}
	if source == "" {
		source = analytics.SourceMap
	}
	s.clicks.MarkerClick(v)
	s.tracker.Track(analytics.VenueClicked(v, source))
	return v, true
}

func (s *Session) BackgroundClick() {
	s.clicks.BackgroundClick()
	s.selected = nil
	s.tracker.Track(analytics.MapInteracted("click", s.view.Viewport().Zoom))
}

// Locate finds the user with locator, or the session locator when nil.
// On success the map flies to the user; a failure only raises a notice.
func (s *Session) Locate(ctx context.Context, locator geolocate.Locator, req geolocate.Request) (geolocate.Position, error) {
	if locator == nil {
		locator = s.locator
	}
	req.HighAccuracy = true

	pos, err := locator.Locate(ctx, req)
	if err != nil {
		kind := geolocate.Kind(err)
		s.notice = &Notice{
			Kind:    kind,
			Message: geolocate.Message(err),
			Expires: s.now().Add(s.opts.NoticeTTL),
		}
		s.tracker.Track(analytics.GeolocationResult(false, kind))
		s.logger.Info("Geolocation failed", "kind", kind, "error", err)
		return geolocate.Position{}, err
	}

	s.user = &pos
	s.notice = nil
	s.view.FlyTo(viewport.Target{Center: pos.Point, Zoom: s.opts.LocateZoom, Duration: s.opts.LocateDuration})
	s.tracker.Track(analytics.GeolocationResult(true, ""))
	return pos, nil
}

// SetBottomSheet records the state of the list drawer.
func (s *Session) SetBottomSheet(state string) bool {
	switch state {
	case analytics.SheetCollapsed, analytics.SheetHalf, analytics.SheetFull:
	default:
		return false
	}
	if state != s.sheet {
		s.sheet = state
		s.tracker.Track(analytics.BottomSheetExpanded(state))
	}
	return true
}

// Notice returns the current advisory, if it has not expired.
func (s *Session) Notice() (Notice, bool) {
	if s.notice == nil || !s.now().Before(s.notice.Expires) {
		s.notice = nil
		return Notice{}, false
	}
	return *s.notice, true
}
