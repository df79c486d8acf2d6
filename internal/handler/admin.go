package handler

import (
	"net/http"

	"github.com/vjpiles/backend/internal/domain"
	"github.com/vjpiles/backend/internal/service"
)

type AdminHandler struct {
	svc *service.SubscriptionService
}

func NewAdminHandler(svc *service.SubscriptionService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// ListSubscriptions handles GET /api/admin/subscriptions.
func (h *AdminHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.ListSubscriptions(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	if subs == nil {
		subs = []*domain.SubscriptionStatus{}
	}
	JSON(w, http.StatusOK, subs)
}
