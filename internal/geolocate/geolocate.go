package geolocate

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"
)

// The three ways locating the user can fail.
var (
	ErrPermissionDenied = errors.New("geolocation permission denied")
	ErrUnavailable      = errors.New("position unavailable")
	ErrTimeout          = errors.New("geolocation timed out")
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaximumAge = 30 * time.Second
)

// Kind names the failure class of err for notices and analytics. Errors
// outside the three classes count as unavailable.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unavailable"
	}
}

// ParseKind is the inverse of Kind for failures reported by a browser.
func ParseKind(kind string) error {
	switch kind {
	case "permission_denied":
		return ErrPermissionDenied
	case "timeout":
		return ErrTimeout
	default:
		return ErrUnavailable
	}
}

// Message is the advisory text shown to the user for a failure.
func Message(err error) string {
	switch Kind(err) {
	case "permission_denied":
		return "請允許存取您的位置"
	case "timeout":
		return "定位逾時"
	case "unavailable":
		return "無法取得位置資訊"
	}
	return ""
}

// Position is a located user.
type Position struct {
	Point    orb.Point `json:"point"`
	Accuracy float64   `json:"accuracy_m,omitempty"`
	At       time.Time `json:"at"`
}

// Request identifies who is being located.
type Request struct {
	IP           string
	HighAccuracy bool
}

// Locator finds the position of a user.
type Locator interface {
	Locate(ctx context.Context, req Request) (Position, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, req Request) (Position, error)

func (f LocatorFunc) Locate(ctx context.Context, req Request) (Position, error) {
	return f(ctx, req)
}

// Unavailable is used when no provider is configured.
var Unavailable = LocatorFunc(func(context.Context, Request) (Position, error) {
	return Position{}, ErrUnavailable
})

// Fixed always answers with the same position. Reports from a browser that
// already knows where it is are fed through it.
func Fixed(p orb.Point) Locator {
	return LocatorFunc(func(context.Context, Request) (Position, error) {
		return Position{Point: p, At: time.Now().UTC()}, nil
	})
}

// Failing always answers with err.
func Failing(err error) Locator {
	return LocatorFunc(func(context.Context, Request) (Position, error) {
		return Position{}, err
	})
}

// WithTimeout bounds every lookup by timeout and maps a deadline to ErrTimeout.
func WithTimeout(l Locator, timeout time.Duration) Locator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return LocatorFunc(func(ctx context.Context, req Request) (Position, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		pos, err := l.Locate(ctx, req)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Position{}, ErrTimeout
		}
		return pos, err
	})
}
