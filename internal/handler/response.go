package handler

import (
	"encoding/json"
	"net/http"

	"github.com/vjpiles/backend/internal/domain"
	"go.uber.org/zap"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zap.L().Warn("failed to encode JSON response", zap.Error(err))
		}
	}
}

// Error writes an error JSON response, using AppError status codes when available.
func Error(w http.ResponseWriter, err error) {
	if appErr, ok := domain.AsAppError(err); ok {
		if appErr.Code >= http.StatusInternalServerError {
			zap.L().Error("request failed", zap.Int("status", appErr.Code), zap.Error(err))
		}
		body := map[string]string{"error": appErr.Message}
		if kind, ok := domain.PaymentErrorKind(err); ok {
			body["kind"] = string(kind)
		}
		JSON(w, appErr.Code, body)
		return
	}
	zap.L().Error("unhandled error", zap.Error(err))
	JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// DecodeJSON decodes a JSON request body into the given struct.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrBadRequest("invalid JSON body")
	}
	return nil
}
