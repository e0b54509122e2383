// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"net/http"
	"time"
)

// APITracker receives one api_performance sample per request.
// It is satisfied by the analytics service.
type APITracker interface {
	TrackAPICall(ctx context.Context, endpoint, method string, responseTime float64, statusCode int)
}

// APITracking is a middleware that feeds each completed request into the
// metrics pipeline. Response time is reported in milliseconds and the
// endpoint is normalized to its route pattern so per-endpoint summaries
// stay bounded. Infrastructure endpoints (/health, /ready, /metrics) are
// excluded.
func APITracking(tracker APITracker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health", "/ready", "/metrics":
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			elapsed := float64(time.Since(start)) / float64(time.Millisecond)
			tracker.TrackAPICall(r.Context(), normalizePath(r.URL.Path), r.Method, elapsed, rw.statusCode)
		})
	}
}
