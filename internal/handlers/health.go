package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	logpkg "github.com/benvon/smart-reminders/internal/logger"
)

// checkTimeout bounds each dependency check
const checkTimeout = 5 * time.Second

// Check is one dependency probed by the extended health check
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthChecker handles health check requests
type HealthChecker struct {
	checks []Check
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(checks ...Check) *HealthChecker {
	return &HealthChecker{checks: checks}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. With ?mode=extended every
// registered dependency is pinged.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	statusCode := http.StatusOK
	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = make(map[string]string, len(h.checks))
		for _, check := range h.checks {
			if err := ping(r.Context(), check); err != nil {
				response.Status = "unhealthy"
				response.Checks[check.Name] = "unhealthy: " + logpkg.SanitizeString(err.Error(), maxErrorMessageLength)
				continue
			}
			response.Checks[check.Name] = "healthy"
		}
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func ping(ctx context.Context, check Check) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return check.Ping(ctx)
}
