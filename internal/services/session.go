package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adminpanel/apiserver/internal/auth"
	"github.com/adminpanel/apiserver/internal/logging"
	"github.com/adminpanel/apiserver/internal/store"
	"github.com/adminpanel/apiserver/types"
)

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// AccountReader loads an account by id.
type AccountReader interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// SessionGuard turns a bearer token into an authenticated identity. Token
// validity is re-derived against the live account on every request, so
// bumping an account's token version revokes its tokens.
type SessionGuard struct {
	users  AccountReader
	tokens TokenVerifier
	logger logging.Logger
}

func NewSessionGuard(users AccountReader, tokens TokenVerifier, logger logging.Logger) *SessionGuard {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SessionGuard{users: users, tokens: tokens, logger: logger}
}

// Authenticate validates an Authorization header value.
func (g *SessionGuard) Authenticate(ctx context.Context, authorization string) (types.Identity, error) {
	raw, err := BearerToken(authorization)
	if err != nil {
		return types.Identity{}, err
	}

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return types.Identity{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return types.Identity{}, fmt.Errorf("%w: token could not be verified", ErrInvalidToken)
	}

	user, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Identity{}, fmt.Errorf("%w: account no longer exists", ErrInvalidToken)
		}
		return types.Identity{}, fmt.Errorf("load account: %w", err)
	}

	if user.TokenVersion != claims.TokenVersion {
		g.logger.Warn(ctx, "revoked token presented", "user_id", user.ID, "token_version", claims.TokenVersion, "current_version", user.TokenVersion)
		return types.Identity{}, fmt.Errorf("%w: session has been revoked", ErrTokenRevoked)
	}

	// Covers blocks that did not bump the token version.
	if user.IsBlocked() {
		return types.Identity{}, fmt.Errorf("%w: account is blocked", ErrForbidden)
	}

	return types.Identity{
		ID:     user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Status: user.Status,
	}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(authorization string) (string, error) {
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return "", fmt.Errorf("%w: missing authorization", ErrUnauthenticated)
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("%w: invalid authorization", ErrUnauthenticated)
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", fmt.Errorf("%w: invalid authorization", ErrUnauthenticated)
	}
	return token, nil
}
