package handler

import (
	"net/http"

	"github.com/vjpiles/backend/internal/domain"
)

// PlansHandler serves the plan catalog.
type PlansHandler struct{}

// NewPlansHandler creates a new PlansHandler.
func NewPlansHandler() *PlansHandler {
	return &PlansHandler{}
}

// List handles GET /api/plans.
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, domain.AvailablePlans())
}
