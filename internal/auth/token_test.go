package auth

import (
	"testing"
	"time"

	"github.com/adminpanel/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func testUser() types.User {
	return types.User{
		ID:           42,
		Email:        "alice@x.com",
		Role:         types.RoleAdmin,
		TokenVersion: 3,
	}
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	manager, err := NewTokenManager("super-secret", 0, WithTokenClock(fixedClock(issuedAt)))
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, manager.TTL())

	token, err := manager.Issue(testUser())
	require.NoError(t, err)

	claims, err := manager.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, "alice@x.com", claims.Email)
	assert.Equal(t, types.RoleAdmin, claims.Role)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.True(t, claims.IssuedAt.Equal(issuedAt))
	assert.True(t, claims.ExpiresAt.Equal(issuedAt.Add(DefaultTokenTTL)))
}

func TestTokenManager_Expired(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer, err := NewTokenManager("secret", time.Hour, WithTokenClock(fixedClock(issuedAt)))
	require.NoError(t, err)
	token, err := issuer.Issue(testUser())
	require.NoError(t, err)

	verifier, err := NewTokenManager("secret", time.Hour, WithTokenClock(fixedClock(issuedAt.Add(2*time.Hour))))
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	t.Parallel()

	issuer, err := NewTokenManager("secret-a", time.Hour)
	require.NoError(t, err)
	verifier, err := NewTokenManager("secret-b", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue(testUser())
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManager_RejectsGarbageAndForeignAlgorithms(t *testing.T) {
	t.Parallel()

	manager, err := NewTokenManager("secret", time.Hour)
	require.NoError(t, err)

	_, err = manager.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = manager.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManager_RequiresSubjectAndExpiry(t *testing.T) {
	t.Parallel()

	manager, err := NewTokenManager("secret", time.Hour)
	require.NoError(t, err)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := noSubject.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = manager.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role:             "user",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	})
	raw, err = noExpiry.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = manager.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager("   ", time.Hour)
	assert.Error(t, err)
}
