package handler

import (
	"net/http"

	"github.com/vjpiles/backend/internal/contextkeys"
	"github.com/vjpiles/backend/internal/domain"
	"github.com/vjpiles/backend/internal/service"
)

type PaymentHandler struct {
	svc *service.SubscriptionService
}

func NewPaymentHandler(svc *service.SubscriptionService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// CreateCheckout handles POST /api/payment/checkout.
func (h *PaymentHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.svc.StartCheckout(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusAccepted, resp)
}

// CheckoutStatus handles GET /api/payment/checkout.
func (h *PaymentHandler) CheckoutStatus(w http.ResponseWriter, r *http.Request) {
	identity, err := contextkeys.Identity(r.Context())
	if err != nil {
		Error(w, err)
		return
	}

	progress, err := h.svc.CheckoutStatus(identity.UserID)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, progress)
}

// CancelCheckout handles DELETE /api/payment/checkout.
func (h *PaymentHandler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	identity, err := contextkeys.Identity(r.Context())
	if err != nil {
		Error(w, err)
		return
	}

	if err := h.svc.CancelCheckout(identity.UserID); err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusAccepted, map[string]bool{"cancelled": true})
}

// GetSubscription handles GET /api/payment/subscription.
func (h *PaymentHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	identity, err := contextkeys.Identity(r.Context())
	if err != nil {
		Error(w, err)
		return
	}

	status, err := h.svc.CurrentSubscription(r.Context(), identity.UserID)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, status)
}

// Access handles GET /api/payment/access.
func (h *PaymentHandler) Access(w http.ResponseWriter, r *http.Request) {
	identity, err := contextkeys.Identity(r.Context())
	if err != nil {
		Error(w, err)
		return
	}

	resp, err := h.svc.HasAccess(r.Context(), identity)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, resp)
}
