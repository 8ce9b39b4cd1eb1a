package app

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"venuemap.taipeimusic.org/internal/metrics"
)

// latencyTrackingRoundTripper records the duration of every outgoing request
// by host and status.
type latencyTrackingRoundTripper struct {
	next http.RoundTripper
}

func (rt *latencyTrackingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(req)

	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	metrics.OutgoingRequestDuration.WithLabelValues(req.URL.Host, status).Observe(time.Since(start).Seconds())
	return resp, err
}

// NewPooledClient returns the client shared by the venue URL source, the IP
// locator and the analytics beacon. All three talk to a handful of hosts, so
// a few idle connections per host are kept warm.
func NewPooledClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &http.Client{
		Transport: &latencyTrackingRoundTripper{next: transport},
		Timeout:   15 * time.Second,
	}
}
