// Package api serves the monitor's health, metrics and status pages and a
// websocket feed of loop events.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/campuswatch/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes. The metrics and status pages are
// rate limited per client address at requestsPerMinute.
func (h *Handler) SetupRoutes(rateLimiter *ratelimit.Limiter, requestsPerMinute int) *mux.Router {
	r := mux.NewRouter()

	// Liveness probe (not rate limited)
	r.HandleFunc("/health", h.Health).Methods("GET")

	// API v1 routes
	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/session", h.Session).Methods("GET")
	api.HandleFunc("/events", h.feed.HandleEvents).Methods("GET")

	// Reports (rate limited)
	limited := r.PathPrefix("").Subrouter()
	limited.Use(RateLimitMiddleware(rateLimiter, requestsPerMinute))
	limited.HandleFunc("/metrics", h.Metrics).Methods("GET")
	limited.HandleFunc("/status", h.StatusPage).Methods("GET")

	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
