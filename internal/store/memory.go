package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/adminpanel/apiserver/internal/auth"
	"github.com/adminpanel/apiserver/types"
)

// MemoryUserRepository is a process-local UserRepository for local runs
// (DB_DRIVER=memory) and tests.
type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{nextID: 1, users: make(map[int]types.User)}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email = types.NormalizeEmail(email)
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) List(_ context.Context) ([]types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]types.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b types.User) int {
		switch {
		case a.LastLogin != nil && b.LastLogin == nil:
			return -1
		case a.LastLogin == nil && b.LastLogin != nil:
			return 1
		case a.LastLogin != nil && !a.LastLogin.Equal(*b.LastLogin):
			return b.LastLogin.Compare(*a.LastLogin)
		}
		return a.ID - b.ID
	})
	return users, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = types.NormalizeEmail(user.Email)
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, ErrDuplicateEmail
		}
	}
	now := time.Now()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) TouchLastLogin(_ context.Context, id int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.LastLogin = &at
	user.UpdatedAt = at
	r.users[id] = user
	return nil
}

func (r *MemoryUserRepository) SetRole(_ context.Context, email string, role types.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email = types.NormalizeEmail(email)
	for id, user := range r.users {
		if user.Email == email {
			user.Role = role
			user.UpdatedAt = time.Now()
			r.users[id] = user
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryUserRepository) BlockMany(_ context.Context, ids []int) ([]int, error) {
	return r.apply(ids, func(user *types.User) {
		user.Status = types.StatusBlocked
		user.TokenVersion++
	}), nil
}

func (r *MemoryUserRepository) UnblockMany(_ context.Context, ids []int) ([]int, error) {
	return r.apply(ids, func(user *types.User) {
		user.Status = types.StatusActive
	}), nil
}

func (r *MemoryUserRepository) DeleteMany(_ context.Context, ids []int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	affected := make([]int, 0, len(ids))
	for _, id := range uniqueIDs(ids) {
		if _, ok := r.users[id]; ok {
			delete(r.users, id)
			affected = append(affected, id)
		}
	}
	return affected, nil
}

func (r *MemoryUserRepository) apply(ids []int, mutate func(*types.User)) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	affected := make([]int, 0, len(ids))
	for _, id := range uniqueIDs(ids) {
		user, ok := r.users[id]
		if !ok {
			continue
		}
		mutate(&user)
		user.UpdatedAt = now
		r.users[id] = user
		affected = append(affected, id)
	}
	return affected
}

// uniqueIDs mirrors `id = ANY($1)`, which touches each row once.
func uniqueIDs(ids []int) []int {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// MemoryLoginAttemptRepository is the process-local failed-login ledger.
type MemoryLoginAttemptRepository struct {
	mu       sync.Mutex
	attempts map[string]types.LoginAttempt
}

func NewMemoryLoginAttemptRepository() *MemoryLoginAttemptRepository {
	return &MemoryLoginAttemptRepository{attempts: make(map[string]types.LoginAttempt)}
}

func (r *MemoryLoginAttemptRepository) Get(_ context.Context, email string) (types.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.attempts[types.NormalizeEmail(email)]
	if !ok {
		return types.LoginAttempt{}, ErrNotFound
	}
	return attempt, nil
}

// RecordFailure applies the same transition as the Postgres upsert.
func (r *MemoryLoginAttemptRepository) RecordFailure(_ context.Context, email string, at time.Time, threshold int, lockUntil time.Time) (types.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email = types.NormalizeEmail(email)
	prev, exists := r.attempts[email]
	if exists && prev.LockedAt(at) {
		prev.LastAttempt = at
		r.attempts[email] = prev
		return prev, nil
	}

	policy := auth.LockoutPolicy{Threshold: threshold, Window: lockUntil.Sub(at)}
	var current *types.LoginAttempt
	if exists {
		current = &prev
	}
	next := policy.Next(current, email, at)
	r.attempts[email] = next
	return next, nil
}

func (r *MemoryLoginAttemptRepository) Clear(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.attempts, types.NormalizeEmail(email))
	return nil
}
