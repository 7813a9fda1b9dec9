package services

import (
	"fmt"

	"github.com/adminpanel/apiserver/types"
)

// AdminAction names an administrative account operation.
type AdminAction string

const (
	ActionBlock   AdminAction = "block"
	ActionUnblock AdminAction = "unblock"
	ActionDelete  AdminAction = "delete"
)

// CheckSelfAction decides whether actor may apply action to its own
// account. Blocking yourself is allowed and logs you out; unblocking or
// deleting yourself is not.
func CheckSelfAction(actor types.Identity, action AdminAction, targetID int) error {
	if actor.ID != targetID {
		return nil
	}
	switch action {
	case ActionDelete:
		return fmt.Errorf("%w: you cannot delete your own account", ErrForbidden)
	case ActionUnblock:
		return fmt.Errorf("%w: you cannot unblock your own account", ErrForbidden)
	default:
		return nil
	}
}
