package geolocate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"venuemap.taipeimusic.org/internal/geo"
)

// ipLookupResponse is the ip-api.com style JSON answer.
type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// ipAccuracy is the rough accuracy of IP based positions, in meters.
const ipAccuracy = 5000

// IPLocator locates users by their IP address through an HTTP lookup
// service. URL may contain "{ip}", which is replaced by the client IP;
// otherwise the IP is appended as a path segment.
type IPLocator struct {
	URL    string
	Client *http.Client
}

func (l IPLocator) endpoint(ip string) string {
	if strings.Contains(l.URL, "{ip}") {
		return strings.ReplaceAll(l.URL, "{ip}", url.PathEscape(ip))
	}
	return strings.TrimRight(l.URL, "/") + "/" + url.PathEscape(ip)
}

func (l IPLocator) Locate(ctx context.Context, req Request) (Position, error) {
	if req.IP == "" {
		return Position{}, ErrUnavailable
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint(req.IP), nil)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Position{}, ErrTimeout
		}
		return Position{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Position{}, ErrPermissionDenied
	case resp.StatusCode != http.StatusOK:
		return Position{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if body.Status != "" && body.Status != "success" {
		return Position{}, fmt.Errorf("%w: %s", ErrUnavailable, body.Message)
	}
	if !geo.IsValidLatLon(body.Lat, body.Lon) {
		return Position{}, fmt.Errorf("%w: invalid coordinates", ErrUnavailable)
	}

	return Position{
		Point:    orb.Point{body.Lon, body.Lat},
		Accuracy: ipAccuracy,
		At:       time.Now().UTC(),
	}, nil
}

// ClientIP extracts the caller's address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	h := r.Header
	if x := h.Get("X-Forwarded-For"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	for _, key := range []string{"CF-Connecting-IP", "X-Real-IP"} {
		if x := h.Get(key); x != "" {
			return x
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
