package app

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"venuemap.taipeimusic.org/internal/middleware"
)

// locateRatePerSecond bounds server side IP lookups, which cost an upstream
// request each.
const locateRatePerSecond = 20

// Routes registers every endpoint and wraps the router with Sentry, access
// logging and the security headers.
//
// /v1/venues and /v1/clusters are stateless. /v1/view/* drive one map
// session per client, identified by the X-Session-ID header.
func (app *Application) Routes(ctx context.Context) http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.Handler(http.MethodGet, "/metrics", middleware.NewCachedPromHandler(ctx, prometheus.DefaultGatherer, 10*time.Second))

	router.HandlerFunc(http.MethodGet, "/v1/venues", app.listVenuesHandler)
	router.HandlerFunc(http.MethodGet, "/v1/venues/:id", app.showVenueHandler)

	router.HandlerFunc(http.MethodGet, "/v1/clusters", app.clustersHandler)
	router.HandlerFunc(http.MethodGet, "/v1/clusters/:id/leaves", app.clusterLeavesHandler)
	router.HandlerFunc(http.MethodGet, "/v1/clusters/:id/expansion-zoom", app.clusterExpansionZoomHandler)

	router.HandlerFunc(http.MethodGet, "/v1/view", app.viewHandler)
	router.HandlerFunc(http.MethodPut, "/v1/view/filter", app.filterHandler)
	router.HandlerFunc(http.MethodPut, "/v1/view/search", app.searchHandler)
	router.HandlerFunc(http.MethodPost, "/v1/view/move", app.moveHandler)
	router.HandlerFunc(http.MethodPost, "/v1/view/resize", app.resizeHandler)
	router.HandlerFunc(http.MethodPost, "/v1/view/fly-to", app.flyToHandler)
	router.HandlerFunc(http.MethodPost, "/v1/view/tick", app.tickHandler)
	router.HandlerFunc(http.MethodPost, "/v1/view/cluster-click", app.clusterClickHandler)
	router.HandlerFunc(http.MethodPost, "/v1/view/marker-click", app.markerClickHandler)
	router.HandlerFunc(http.MethodPost, "/v1/view/background-click", app.backgroundClickHandler)
	router.Handler(http.MethodPost, "/v1/view/locate", middleware.RateLimit(locateRatePerSecond, http.HandlerFunc(app.locateHandler)))
	router.HandlerFunc(http.MethodPost, "/v1/view/bottom-sheet", app.bottomSheetHandler)

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.notFound(w, "the requested resource could not be found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.errorResponse(w, http.StatusMethodNotAllowed, r.Method+" is not supported for this resource")
	})

	handler := middleware.SentryMiddleware(router)
	handler = middleware.AccessLog(app.Logger)(handler)
	handler = middleware.Recover(handler)
	return middleware.SecurityHeaders(handler)
}
