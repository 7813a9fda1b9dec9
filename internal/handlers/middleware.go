package handlers

import (
	"net/http"

	"github.com/adminpanel/apiserver/internal/logging"
	"github.com/adminpanel/apiserver/internal/services"
)

// RequireAuth authenticates the bearer token through the session guard and
// injects the identity into the request context.
func RequireAuth(guard *services.SessionGuard, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := guard.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				writeServiceError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// requireAdmin rejects identities without the admin role. It must run after
// RequireAuth.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !identity.Role.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
