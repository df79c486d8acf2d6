package handler

import (
	"context"
	"net/http"
)

// Pinger is a store whose connection can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	store   Pinger
	backend string
}

// NewHealthHandler creates a new HealthHandler. backend names the store in
// the response.
func NewHealthHandler(store Pinger, backend string) *HealthHandler {
	return &HealthHandler{store: store, backend: backend}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
	}

	if err := h.store.Ping(r.Context()); err != nil {
		status[h.backend] = "error"
		status["status"] = "degraded"
	} else {
		status[h.backend] = "ok"
	}

	code := http.StatusOK
	if status["status"] == "degraded" {
		code = http.StatusServiceUnavailable
	}

	JSON(w, code, status)
}
