package types

import (
	"strings"
	"time"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole converts a stored role string into a Role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// IsAdmin reports whether the role grants administrative access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Status is the administrative state of an account.
type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

// ParseStatus converts a stored status string into a Status.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusActive:
		return StatusActive, true
	case StatusBlocked:
		return StatusBlocked, true
	default:
		return "", false
	}
}

// User represents an account in the system.
// It contains identity, role, status and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address. It is stored lower-cased and is
	// unique across all accounts.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// Status is either active or blocked.
	Status Status `json:"status" db:"status"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// TokenVersion is embedded in every issued token. Bumping it revokes
	// all outstanding tokens of the account.
	TokenVersion int `json:"-" db:"token_version"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin *time.Time `json:"last_login" db:"last_login"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsBlocked reports whether the account has been blocked.
func (u User) IsBlocked() bool {
	return u.Status == StatusBlocked
}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	ID     int    `json:"id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Status Status `json:"status"`
}

// LoginAttempt is the failed-login ledger entry for one email address.
// Entries exist for unregistered emails too.
type LoginAttempt struct {
	Email        string     `json:"email" db:"email"`
	Attempts     int        `json:"attempts" db:"attempts"`
	LastAttempt  time.Time  `json:"last_attempt" db:"last_attempt"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty" db:"blocked_until"`
}

// LockedAt reports whether the entry rejects logins at the given instant.
func (a LoginAttempt) LockedAt(now time.Time) bool {
	return a.BlockedUntil != nil && now.Before(*a.BlockedUntil)
}

// NormalizeEmail trims and lower-cases an email address. Uniqueness and
// lockout bookkeeping both key on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
