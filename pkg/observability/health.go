package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the status of a health check
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is a named readiness probe for a dependency
type HealthCheck func(ctx context.Context) error

// CheckResult is the outcome of a single health check
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Error   string       `json:"error,omitempty"`
	Latency string       `json:"latency"`
}

// HealthChecker aggregates dependency health checks and serves the
// liveness/readiness endpoints.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthChecker creates a health checker with a per-check timeout
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		checks:  make(map[string]HealthCheck),
		timeout: timeout,
	}
}

// Register adds a named health check
func (h *HealthChecker) Register(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Run executes all registered checks and reports per-check results
func (h *HealthChecker) Run(ctx context.Context) (HealthStatus, map[string]CheckResult) {
	h.mu.RLock()
	checks := make(map[string]HealthCheck, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	h.mu.RUnlock()

	overall := HealthStatusHealthy
	results := make(map[string]CheckResult, len(checks))

	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		start := time.Now()
		err := check(checkCtx)
		cancel()

		result := CheckResult{
			Status:  HealthStatusHealthy,
			Latency: time.Since(start).String(),
		}
		if err != nil {
			result.Status = HealthStatusUnhealthy
			result.Error = err.Error()
			overall = HealthStatusUnhealthy
		}
		results[name] = result
	}

	return overall, results
}

// LivenessHandler always reports OK while the process is running
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
}

// ReadinessHandler runs all checks and reports 503 when any dependency fails
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		overall, results := h.Run(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if overall != HealthStatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": overall,
			"checks": results,
		})
	})
}
