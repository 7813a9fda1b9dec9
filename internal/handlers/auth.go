package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adminpanel/apiserver/internal/logging"
	"github.com/adminpanel/apiserver/internal/services"
	"github.com/adminpanel/apiserver/types"
)

// AuthHandler provides registration, login and session endpoints, plus the
// per-user admin actions addressed by path id.
type AuthHandler struct {
	authService  *services.AuthService
	adminService *services.AdminService
	logger       logging.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, adminService *services.AdminService, logger logging.Logger) *AuthHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AuthHandler{
		authService:  authService,
		adminService: adminService,
		logger:       logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(
	r chi.Router,
	authService *services.AuthService,
	adminService *services.AdminService,
	authMiddleware func(http.Handler) http.Handler,
	logger logging.Logger,
) {
	handler := NewAuthHandler(authService, adminService, logger)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/me", handler.Me)
		r.Get("/verify", handler.Verify)
		r.Post("/block/{id}", handler.Block)
		r.Post("/unblock/{id}", handler.Unblock)
		r.Delete("/delete/{id}", handler.Delete)
	})
}

// Register creates a new active account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if _, err := h.authService.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "user registered successfully"})
}

// Login verifies credentials and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.authService.Login(r.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: result.Token, User: result.User})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	user, err := h.authService.Me(r.Context(), identity)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		Status: user.Status,
	})
}

// Verify confirms the bearer token is still accepted.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Valid: true, User: identity})
}

// Block blocks the account addressed by the path id.
func (h *AuthHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.perUser(w, r, h.adminService.Block, "user blocked successfully")
}

// Unblock reactivates the account addressed by the path id.
func (h *AuthHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.perUser(w, r, h.adminService.Unblock, "user unblocked successfully")
}

// Delete removes the account addressed by the path id.
func (h *AuthHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.perUser(w, r, h.adminService.Delete, "user deleted successfully")
}

func (h *AuthHandler) perUser(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, actor types.Identity, id int) error,
	message string,
) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	id, err := parseUserID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := op(r.Context(), identity, id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type MeResponse struct {
	ID     int          `json:"id"`
	Name   string       `json:"name"`
	Email  string       `json:"email"`
	Role   types.Role   `json:"role"`
	Status types.Status `json:"status"`
}

type VerifyResponse struct {
	Valid bool           `json:"valid"`
	User  types.Identity `json:"user"`
}
