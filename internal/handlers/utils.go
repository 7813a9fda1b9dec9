package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/adminpanel/apiserver/internal/logging"
	"github.com/adminpanel/apiserver/internal/services"
	"github.com/adminpanel/apiserver/types"
)

const maxBodyBytes = 1 << 20

type contextKey string

const contextIdentityKey contextKey = "identity"

func withIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

func identityFromContext(ctx context.Context) (types.Identity, error) {
	identity, ok := ctx.Value(contextIdentityKey).(types.Identity)
	if !ok || identity.ID < 1 {
		return types.Identity{}, fmt.Errorf("%w: missing identity", services.ErrUnauthenticated)
	}
	return identity, nil
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges an operation.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", services.ErrValidation)
	}
	return nil
}

// statusFor maps a service error onto an HTTP status. Unknown errors are
// server errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrTokenRevoked),
		errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrAccountLocked),
		errors.Is(err, services.ErrAccountBlocked):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Server errors are
// logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func parseUserID(r *http.Request) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid user id", services.ErrValidation)
	}
	return id, nil
}
