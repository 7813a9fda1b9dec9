package types

import "time"

// EventType names an account lifecycle event.
type EventType string

const (
	EventUserRegistered     EventType = "user.registered"
	EventUserLoginSucceeded EventType = "user.login_succeeded"
	EventUserLoginFailed    EventType = "user.login_failed"
	EventUserLocked         EventType = "user.locked"
	EventUserBlocked        EventType = "user.blocked"
	EventUserUnblocked      EventType = "user.unblocked"
	EventUserDeleted        EventType = "user.deleted"
)

// AccountEvent is the audit record published for every security-relevant
// change to an account or to the login ledger.
type AccountEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type is the kind of event.
	Type EventType `json:"type"`

	// ActorID is the account that triggered the event, when known.
	ActorID *int `json:"actor_id,omitempty"`

	// TargetIDs lists the accounts affected by the event.
	TargetIDs []int `json:"target_ids,omitempty"`

	// Email is set for login events, which may reference unregistered emails.
	Email string `json:"email,omitempty"`

	// OccurredAt is when the event happened.
	OccurredAt time.Time `json:"occurred_at"`
}
