package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adminpanel/apiserver/internal/logging"
	"github.com/adminpanel/apiserver/internal/services"
	"github.com/adminpanel/apiserver/types"
)

// AdminHandler provides the bulk account administration endpoints.
type AdminHandler struct {
	adminService *services.AdminService
	logger       logging.Logger
}

// NewAdminHandler constructs an AdminHandler with the provided dependencies.
func NewAdminHandler(adminService *services.AdminService, logger logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AdminHandler{adminService: adminService, logger: logger}
}

// AdminRouter registers admin routes on the given router. Every route
// requires an authenticated admin.
func AdminRouter(
	r chi.Router,
	adminService *services.AdminService,
	authMiddleware func(http.Handler) http.Handler,
	logger logging.Logger,
) {
	handler := NewAdminHandler(adminService, logger)

	r.Use(authMiddleware, requireAdmin)
	r.Get("/users", handler.ListUsers)
	r.Post("/block", handler.Block)
	r.Post("/unblock", handler.Unblock)
	r.Post("/delete", handler.Delete)
}

// ListUsers returns every account.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	users, err := h.adminService.List(r.Context(), identity)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UserListResponse{Users: users})
}

// Block blocks the listed accounts and revokes their sessions.
func (h *AdminHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.adminService.BlockMany, "blocked")
}

// Unblock reactivates the listed accounts.
func (h *AdminHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.adminService.UnblockMany, "unblocked")
}

// Delete removes the listed accounts.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.adminService.DeleteMany, "deleted")
}

func (h *AdminHandler) bulk(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, actor types.Identity, ids []int) (services.BulkResult, error),
	verb string,
) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	// A non-array ids field fails to decode.
	var req BulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	result, err := op(r.Context(), identity, req.IDs)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	affected := result.Affected
	if affected == nil {
		affected = []int{}
	}
	writeJSON(w, http.StatusOK, BulkResponse{
		Message:  fmt.Sprintf("%d of %d users %s", len(affected), result.Requested, verb),
		Affected: affected,
	})
}

type BulkRequest struct {
	IDs []int `json:"ids"`
}

type BulkResponse struct {
	Message  string `json:"message"`
	Affected []int  `json:"affected"`
}

type UserListResponse struct {
	Users []types.User `json:"users"`
}
