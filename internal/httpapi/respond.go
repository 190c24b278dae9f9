package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"checkoutservice/internal/apperr"

	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.ProductNotFound, apperr.OrderNotFound, apperr.CartLineNotFound, apperr.UserNotFound:
		return http.StatusNotFound
	case apperr.InsufficientStock, apperr.OrderCannotBeCancelled, apperr.IllegalTransition, apperr.Conflict:
		return http.StatusConflict
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.InvalidStatus, apperr.InvalidQuantity, apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders expected errors verbatim. Anything else is logged and
// reported without details.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.Internal {
		writeJSON(w, statusFor(appErr.Kind), ErrorResponse{Error: appErr.Kind.String(), Message: appErr.Message})
		return
	}

	h.logger.Error("Request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: apperr.Internal.String(), Message: "internal error"})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: apperr.InvalidInput.String(), Message: message})
}
