package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/adminpanel/apiserver/internal/logging"
	"github.com/adminpanel/apiserver/internal/store"
	"github.com/adminpanel/apiserver/types"
)

// BulkResult reports which of the requested ids were changed.
type BulkResult struct {
	Requested int
	Affected  []int
}

// AdminService implements the administrative account operations. Bulk
// operations are best-effort: unknown ids are skipped, not rolled back.
type AdminService struct {
	users  UserRepository
	logger logging.Logger
	events eventEmitter
}

// AdminOption customizes an AdminService.
type AdminOption func(*AdminService)

// WithAdminLogger sets the logger.
func WithAdminLogger(logger logging.Logger) AdminOption {
	return func(s *AdminService) {
		if logger != nil {
			s.logger = logger
			s.events.logger = logger
		}
	}
}

// WithAdminEvents sets the publisher for account events.
func WithAdminEvents(publisher EventPublisher) AdminOption {
	return func(s *AdminService) {
		s.events.publisher = publisher
	}
}

func NewAdminService(users UserRepository, opts ...AdminOption) *AdminService {
	logger := logging.Discard()
	s := &AdminService{
		users:  users,
		logger: logger,
		events: newEventEmitter(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every account.
func (s *AdminService) List(ctx context.Context, actor types.Identity) ([]types.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// BlockMany blocks the accounts and revokes their tokens. Blocking an
// already-blocked account still bumps its token version.
func (s *AdminService) BlockMany(ctx context.Context, actor types.Identity, ids []int) (BulkResult, error) {
	return s.bulk(ctx, actor, ActionBlock, ids, s.users.BlockMany, types.EventUserBlocked)
}

// UnblockMany reactivates the accounts.
func (s *AdminService) UnblockMany(ctx context.Context, actor types.Identity, ids []int) (BulkResult, error) {
	return s.bulk(ctx, actor, ActionUnblock, ids, s.users.UnblockMany, types.EventUserUnblocked)
}

// DeleteMany removes the accounts.
func (s *AdminService) DeleteMany(ctx context.Context, actor types.Identity, ids []int) (BulkResult, error) {
	return s.bulk(ctx, actor, ActionDelete, ids, s.users.DeleteMany, types.EventUserDeleted)
}

// Block blocks a single account addressed by id.
func (s *AdminService) Block(ctx context.Context, actor types.Identity, id int) error {
	return s.single(ctx, actor, id, s.BlockMany)
}

// Unblock reactivates a single account addressed by id.
func (s *AdminService) Unblock(ctx context.Context, actor types.Identity, id int) error {
	return s.single(ctx, actor, id, s.UnblockMany)
}

// Delete removes a single account addressed by id.
func (s *AdminService) Delete(ctx context.Context, actor types.Identity, id int) error {
	return s.single(ctx, actor, id, s.DeleteMany)
}

// Promote grants the admin role to the account registered under email.
// It is an operator action and carries no actor.
func (s *AdminService) Promote(ctx context.Context, email string) error {
	email = types.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if err := s.users.SetRole(ctx, email, types.RoleAdmin); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: no account for %s", ErrNotFound, email)
		}
		return err
	}
	s.logger.Info(ctx, "user promoted to admin", "email", email)
	return nil
}

func (s *AdminService) single(ctx context.Context, actor types.Identity, id int, op func(context.Context, types.Identity, []int) (BulkResult, error)) error {
	result, err := op(ctx, actor, []int{id})
	if err != nil {
		return err
	}
	if len(result.Affected) == 0 {
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return nil
}

func (s *AdminService) bulk(
	ctx context.Context,
	actor types.Identity,
	action AdminAction,
	ids []int,
	apply func(context.Context, []int) ([]int, error),
	eventType types.EventType,
) (BulkResult, error) {
	if err := requireAdmin(actor); err != nil {
		return BulkResult{}, err
	}
	if err := validateIDs(ids); err != nil {
		return BulkResult{}, err
	}
	// Every id is checked before anything is written.
	for _, id := range ids {
		if err := CheckSelfAction(actor, action, id); err != nil {
			s.logger.Warn(ctx, "self action rejected", "actor_id", actor.ID, "action", action)
			return BulkResult{}, err
		}
	}

	affected, err := apply(ctx, ids)
	if err != nil {
		return BulkResult{}, fmt.Errorf("%s users: %w", action, err)
	}

	s.logger.Info(ctx, "admin action applied", "actor_id", actor.ID, "action", action, "requested", len(ids), "affected", affected)
	if len(affected) > 0 {
		s.events.emit(ctx, types.AccountEvent{
			Type:      eventType,
			ActorID:   actorRef(actor),
			TargetIDs: affected,
		})
	}
	return BulkResult{Requested: len(ids), Affected: affected}, nil
}

func requireAdmin(actor types.Identity) error {
	if !actor.Role.IsAdmin() {
		return fmt.Errorf("%w: admin access required", ErrForbidden)
	}
	return nil
}

func validateIDs(ids []int) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids must be a non-empty array", ErrValidation)
	}
	for _, id := range ids {
		if id < 1 {
			return fmt.Errorf("%w: invalid user id %d", ErrValidation, id)
		}
	}
	return nil
}
