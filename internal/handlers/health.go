package handlers

import (
	"context"
	"net/http"
	"time"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health handles the health check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	storeStart := time.Now()
	if err := h.store.Ping(ctx); err != nil {
		checks["store"] = Check{Status: "fail", Message: "connection failed"}
		allHealthy = false
	} else {
		checks["store"] = Check{Status: "pass", Latency: time.Since(storeStart).String()}
	}

	// Redis is optional; the service degrades to single-instance fan-out
	// without it, so an unconfigured redis does not fail the check.
	if h.redis != nil {
		redisStart := time.Now()
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["redis"] = Check{Status: "pass", Latency: time.Since(redisStart).String()}
		}
	} else {
		checks["redis"] = Check{Status: "pass", Message: "not configured"}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
