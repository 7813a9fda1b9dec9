package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adminpanel/apiserver/config"
	"github.com/adminpanel/apiserver/internal/logging"
)

func memoryConfig() config.Config {
	return config.Config{
		ServerPort: 0,
		Database:   config.DatabaseConfig{Driver: "memory"},
		Auth: config.AuthConfig{
			JWTSecret:        "server-test-secret",
			TokenTTL:         time.Hour,
			LockoutThreshold: 5,
			LockoutWindow:    15 * time.Minute,
			AdminEmailDomain: "admin.com",
		},
		Events: config.EventsConfig{Backend: "none", Channel: "account-events"},
	}
}

func TestNew_RequiresJWTSecret(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auth.JWTSecret = ""

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestNew_RejectsUnknownBackends(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = "sqlite"
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown database driver")

	cfg = memoryConfig()
	cfg.Events.Backend = "kafka"
	_, err = New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown mq backend")
}

func TestNew_LogsAuthSettings(t *testing.T) {
	var buf bytes.Buffer
	srv, err := New(context.Background(), memoryConfig(), logging.New(config.LogConfig{Level: "info"}, &buf))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	out := buf.String()
	assert.Contains(t, out, "auth configured")
	assert.Contains(t, out, "token_ttl=1h0m0s")
	assert.Contains(t, out, "lockout_threshold=5")
	assert.Contains(t, out, "admin_email_domain=admin.com")
}

func TestServer_Routes(t *testing.T) {
	srv, err := New(context.Background(), memoryConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	do := func(method, path string, body any, token string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/healthz", nil, "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/readyz", nil, "").Code)

	rec := do(http.MethodPost, "/api/auth/register", map[string]string{"name": "Root", "email": "root@admin.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(http.MethodPost, "/api/auth/login", map[string]string{"email": "root@admin.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	rec = do(http.MethodGet, "/api/admin/users", nil, login.Token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodGet, "/api/admin/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
