package services

import (
	"context"
	"time"

	"github.com/adminpanel/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	TouchLastLogin(ctx context.Context, id int, at time.Time) error
	SetRole(ctx context.Context, email string, role types.Role) error
	BlockMany(ctx context.Context, ids []int) ([]int, error)
	UnblockMany(ctx context.Context, ids []int) ([]int, error)
	DeleteMany(ctx context.Context, ids []int) ([]int, error)
}

// LoginAttemptRepository defines persistence for the failed-login ledger.
type LoginAttemptRepository interface {
	Get(ctx context.Context, email string) (types.LoginAttempt, error)
	RecordFailure(ctx context.Context, email string, at time.Time, threshold int, lockUntil time.Time) (types.LoginAttempt, error)
	Clear(ctx context.Context, email string) error
}
