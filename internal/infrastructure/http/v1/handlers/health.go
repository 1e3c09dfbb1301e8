package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	version string
	timeout time.Duration
	checks  map[string]HealthCheck
	stats   func() map[string]any
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version: version,
		timeout: 2 * time.Second,
		checks:  make(map[string]HealthCheck),
	}
}

// AddCheck registers a readiness check.
func (h *HealthHandler) AddCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// SetStats sets the source of the Info payload.
func (h *HealthHandler) SetStats(fn func() map[string]any) {
	h.stats = fn
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles readiness probe: every registered check must pass.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			status, code = "error", http.StatusServiceUnavailable
			continue
		}
		results[name] = "healthy"
	}

	c.JSON(code, gin.H{"status": status, "checks": results})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	body := gin.H{"app": "pharmadesk", "version": h.version}
	if h.stats != nil {
		for k, v := range h.stats() {
			body[k] = v
		}
	}
	c.JSON(http.StatusOK, body)
}
