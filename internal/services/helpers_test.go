package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adminpanel/apiserver/internal/auth"
	"github.com/adminpanel/apiserver/internal/store"
	"github.com/adminpanel/apiserver/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishEvent(ctx context.Context, event types.AccountEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// testClock is a settable clock shared by the services and token manager.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	users    *store.MemoryUserRepository
	attempts *store.MemoryLoginAttemptRepository
	tokens   *auth.TokenManager
	clock    *testClock
	auth     *AuthService
	admin    *AdminService
	guard    *SessionGuard
}

func newFixture(t *testing.T, opts ...AuthOption) *fixture {
	t.Helper()

	clock := newTestClock()
	tokens, err := auth.NewTokenManager("test-secret", 2*time.Hour, auth.WithTokenClock(clock.Now))
	require.NoError(t, err)

	users := store.NewMemoryUserRepository()
	attempts := store.NewMemoryLoginAttemptRepository()
	authOpts := append([]AuthOption{WithAuthClock(clock.Now), WithAdminEmailDomain("admin.com")}, opts...)

	return &fixture{
		users:    users,
		attempts: attempts,
		tokens:   tokens,
		clock:    clock,
		auth:     NewAuthService(users, attempts, tokens, auth.NewLockoutPolicy(5, 15*time.Minute), authOpts...),
		admin:    NewAdminService(users),
		guard:    NewSessionGuard(users, tokens, nil),
	}
}

func (f *fixture) register(t *testing.T, name, email, password string) types.User {
	t.Helper()
	user, err := f.auth.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	return user
}

func (f *fixture) identity(user types.User) types.Identity {
	return types.Identity{ID: user.ID, Email: user.Email, Role: user.Role, Status: user.Status}
}
