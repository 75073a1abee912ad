package handlers

import (
	"context"
	"net/http"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports service health
type HealthHandler struct {
	redis HealthChecker
}

// NewHealthHandler creates a new health handler. A nil redis means Redis
// is disabled.
func NewHealthHandler(redis HealthChecker) *HealthHandler {
	return &HealthHandler{redis: redis}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.redis == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redis": "disabled"})
		return
	}

	if err := h.redis.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "redis": "down"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redis": "up"})
}
