package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// ReadyStatus represents the readiness check response.
type ReadyStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Timestamp  string            `json:"timestamp"`
}

// HealthCheck returns a handler that reports basic service health. Always
// 200 while the process is up.
func HealthCheck(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		RespondJSON(w, http.StatusOK, HealthStatus{
			Status:    "healthy",
			Service:   "media-crawler",
			Version:   version,
			Timestamp: nowRFC3339(),
		})
	}
}

// ReadyCheck returns a handler that probes dependencies. The cache is
// reported but never fails readiness; crawling works without it.
func ReadyCheck(store HealthChecker, cache ResultCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := ReadyStatus{
			Status:     "ready",
			Components: make(map[string]string),
			Timestamp:  nowRFC3339(),
		}

		allReady := true

		if store != nil {
			if err := store.Health(ctx); err != nil {
				status.Components["asset_store"] = "unhealthy: " + err.Error()
				allReady = false
			} else {
				status.Components["asset_store"] = "healthy"
			}
		} else {
			status.Components["asset_store"] = "not configured"
		}

		if cache != nil {
			if cache.IsHealthy() {
				status.Components["result_cache"] = "healthy"
			} else {
				status.Components["result_cache"] = "degraded"
			}
		} else {
			status.Components["result_cache"] = "not configured"
		}

		if !allReady {
			status.Status = "not ready"
			RespondJSON(w, http.StatusServiceUnavailable, status)
			return
		}

		RespondJSON(w, http.StatusOK, status)
	}
}
