package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/adminpanel/apiserver/types"
)

const (
	// DefaultLockoutThreshold is the number of consecutive failures that
	// locks an email.
	DefaultLockoutThreshold = 5
	// DefaultLockoutWindow is how long a lock lasts.
	DefaultLockoutWindow = 15 * time.Minute
)

// ErrAccountLocked is returned while an email is inside its lockout window.
var ErrAccountLocked = errors.New("account temporarily locked")

// LockedError carries the instant a lock expires.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s until %s", ErrAccountLocked, e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error {
	return ErrAccountLocked
}

// LockoutState is the position of an email in the lockout state machine.
type LockoutState int

const (
	LockoutClear LockoutState = iota
	LockoutAccumulating
	LockoutLocked
)

func (s LockoutState) String() string {
	switch s {
	case LockoutClear:
		return "clear"
	case LockoutAccumulating:
		return "accumulating"
	case LockoutLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// LockoutPolicy decides when repeated login failures lock an email.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
}

// NewLockoutPolicy returns a policy, replacing non-positive values with
// the defaults.
func NewLockoutPolicy(threshold int, window time.Duration) LockoutPolicy {
	if threshold < 1 {
		threshold = DefaultLockoutThreshold
	}
	if window <= 0 {
		window = DefaultLockoutWindow
	}
	return LockoutPolicy{Threshold: threshold, Window: window}
}

// State classifies a ledger entry at the given instant. A nil entry and an
// entry whose lock has expired are both clear.
func (p LockoutPolicy) State(attempt *types.LoginAttempt, now time.Time) LockoutState {
	if attempt == nil {
		return LockoutClear
	}
	if attempt.BlockedUntil != nil {
		if attempt.LockedAt(now) {
			return LockoutLocked
		}
		return LockoutClear
	}
	if attempt.Attempts <= 0 {
		return LockoutClear
	}
	return LockoutAccumulating
}

// Check is the gate run before any credential comparison. It returns a
// *LockedError while the entry is locked.
func (p LockoutPolicy) Check(attempt *types.LoginAttempt, now time.Time) error {
	if p.State(attempt, now) == LockoutLocked {
		return &LockedError{Until: *attempt.BlockedUntil}
	}
	return nil
}

// Next is the ledger entry after one more failed login at now. Callers
// must not call it for a locked entry.
func (p LockoutPolicy) Next(prev *types.LoginAttempt, email string, now time.Time) types.LoginAttempt {
	attempts := 1
	if p.State(prev, now) == LockoutAccumulating {
		attempts = prev.Attempts + 1
	}
	next := types.LoginAttempt{
		Email:       email,
		Attempts:    attempts,
		LastAttempt: now,
	}
	if attempts >= p.Threshold {
		until := p.LockUntil(now)
		next.BlockedUntil = &until
	}
	return next
}

// LockUntil is the expiry of a lock set at now.
func (p LockoutPolicy) LockUntil(now time.Time) time.Time {
	return now.Add(p.Window)
}
