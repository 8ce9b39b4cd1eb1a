package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit rejects requests beyond perSecond with 429. Bursts of up to
// perSecond requests are allowed. A limit of zero or less disables it.
func RateLimit(perSecond int, next http.Handler) http.Handler {
	if perSecond <= 0 {
		return next
	}
	return limit(rate.NewLimiter(rate.Limit(perSecond), perSecond), time.Now, next)
}

func limit(lim *rate.Limiter, now func() time.Time, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := now()
		if !lim.AllowN(t, 1) {
			w.Header().Set("Retry-After", retryAfter(lim, t))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfter is the whole number of seconds until the next token, at least 1.
func retryAfter(lim *rate.Limiter, t time.Time) string {
	res := lim.ReserveN(t, 1)
	delay := res.DelayFrom(t)
	res.CancelAt(t)
	secs := int(math.Ceil(delay.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
