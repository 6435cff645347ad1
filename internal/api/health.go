package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"hermes/internal/adapters/redis"
	"hermes/internal/services/gateway"
	"hermes/pkg/breaker"
	"hermes/pkg/logger"
)

// HealthHandler provides health check endpoints
type HealthHandler struct {
	svc         *gateway.Service
	redis       *redis.Client
	startTime   time.Time
	serviceName string
	version     string
	log         *logger.Logger
}

// NewHealthHandler creates a new health check handler. redisClient may be
// nil when distributed rate limiting is not configured.
func NewHealthHandler(
	svc *gateway.Service,
	redisClient *redis.Client,
	serviceName string,
	version string,
	log *logger.Logger,
) *HealthHandler {
	return &HealthHandler{
		svc:         svc,
		redis:       redisClient,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
		log:         log,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
	Breakers  map[string]breaker.Stats   `json:"breakers"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
// Used by Kubernetes liveness probe
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "alive",
	})
}

// HandleReadiness checks if service is ready to accept traffic
// Used by Kubernetes readiness probe. A degraded provider pool (some
// circuits open) stays ready; only components reporting unhealthy fail it.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := h.runChecks(ctx)

	ready := true
	for _, check := range checks {
		if check.Status == "unhealthy" {
			ready = false
		}
	}

	status := h.report(checks)
	statusCode := http.StatusOK
	if !ready {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", checks)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(status)
}

// HandleHealth returns detailed health status (includes all checks)
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks := h.runChecks(ctx)

	healthyCount := 0
	for _, check := range checks {
		if check.Status == "healthy" {
			healthyCount++
		}
	}

	status := h.report(checks)
	statusCode := http.StatusOK

	if healthyCount == 0 {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	} else if healthyCount < len(checks) {
		status.Status = "degraded" // still return 200 for degraded
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(status)
}

func (h *HealthHandler) runChecks(ctx context.Context) map[string]ComponentHealth {
	checks := map[string]ComponentHealth{
		"providers": h.checkProviders(),
	}
	if h.redis != nil {
		checks["redis"] = h.checkRedis(ctx)
	}
	return checks
}

func (h *HealthHandler) report(checks map[string]ComponentHealth) HealthStatus {
	return HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
		Breakers:  h.svc.BreakerStats(),
	}
}

// checkProviders reports the provider pool state: unhealthy with no enabled
// providers, degraded while any circuit is open.
func (h *HealthHandler) checkProviders() ComponentHealth {
	enabled := 0
	for _, info := range h.svc.Providers() {
		if info.Enabled {
			enabled++
		}
	}

	if enabled == 0 {
		return ComponentHealth{
			Status: "unhealthy",
			Error:  "no providers enabled",
		}
	}

	if !h.svc.ProvidersHealthy() {
		return ComponentHealth{
			Status: "degraded",
			Error:  "one or more provider circuits open",
		}
	}

	return ComponentHealth{Status: "healthy"}
}

// checkRedis verifies Redis connectivity
func (h *HealthHandler) checkRedis(ctx context.Context) ComponentHealth {
	start := time.Now()
	err := h.redis.Health(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Errorw("Redis health check failed", "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}
