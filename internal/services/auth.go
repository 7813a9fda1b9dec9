package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/adminpanel/apiserver/internal/auth"
	"github.com/adminpanel/apiserver/internal/logging"
	"github.com/adminpanel/apiserver/internal/store"
	"github.com/adminpanel/apiserver/types"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Validate checks the registration fields.
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254),
			validation.Match(emailPattern).Error("must be a valid email address")),
		// bcrypt ignores bytes past 72.
		validation.Field(&in.Password, validation.Required, validation.Length(6, 72)),
	)
}

// LoginInput is the payload of a login.
type LoginInput struct {
	Email    string
	Password string
}

// Validate checks the login fields.
func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
}

// LoginResult is a successful login.
type LoginResult struct {
	Token string
	User  types.User
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(user types.User) (string, error)
}

// AuthService implements registration and login with progressive lockout.
type AuthService struct {
	users       UserRepository
	attempts    LoginAttemptRepository
	tokens      TokenIssuer
	lockout     auth.LockoutPolicy
	adminDomain string
	logger      logging.Logger
	events      eventEmitter
	now         func() time.Time
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithAuthClock injects the clock used for lockout bookkeeping.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAdminEmailDomain makes registrations under domain admins.
func WithAdminEmailDomain(domain string) AuthOption {
	return func(s *AuthService) {
		s.adminDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "@"))
	}
}

// WithAuthLogger sets the logger.
func WithAuthLogger(logger logging.Logger) AuthOption {
	return func(s *AuthService) {
		if logger != nil {
			s.logger = logger
			s.events.logger = logger
		}
	}
}

// WithAuthEvents sets the publisher for account events.
func WithAuthEvents(publisher EventPublisher) AuthOption {
	return func(s *AuthService) {
		s.events.publisher = publisher
	}
}

func NewAuthService(users UserRepository, attempts LoginAttemptRepository, tokens TokenIssuer, lockout auth.LockoutPolicy, opts ...AuthOption) *AuthService {
	logger := logging.Discard()
	s := &AuthService{
		users:    users,
		attempts: attempts,
		tokens:   tokens,
		lockout:  auth.NewLockoutPolicy(lockout.Threshold, lockout.Window),
		logger:   logger,
		events:   newEventEmitter(logger),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an active account. Emails under the admin domain get
// the admin role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = types.NormalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return types.User{}, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	role := types.RoleUser
	if s.adminDomain != "" && strings.HasSuffix(in.Email, "@"+s.adminDomain) {
		role = types.RoleAdmin
	}

	user, err := s.users.Create(ctx, types.User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         role,
		Status:       types.StatusActive,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return types.User{}, fmt.Errorf("%w: email already exists", ErrConflict)
		}
		return types.User{}, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	s.events.emit(ctx, types.AccountEvent{
		Type:      types.EventUserRegistered,
		ActorID:   &user.ID,
		TargetIDs: []int{user.ID},
		Email:     user.Email,
	})
	return user, nil
}

// Login checks the lockout gate, then the credentials, and returns a
// session token. Failures are counted against the email whether or not
// it is registered.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	in.Email = types.NormalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return LoginResult{}, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	now := s.now()

	// The gate runs before any lookup or hash comparison.
	attempt, err := s.attempts.Get(ctx, in.Email)
	switch {
	case err == nil:
		if err := s.lockout.Check(&attempt, now); err != nil {
			s.logger.Warn(ctx, "login rejected while locked", "email", in.Email)
			return LoginResult{}, err
		}
	case !errors.Is(err, store.ErrNotFound):
		return LoginResult{}, fmt.Errorf("load login attempts: %w", err)
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, fmt.Errorf("load user: %w", err)
		}
		// Spend the same hashing time as a real comparison.
		auth.VerifyPassword(in.Password, placeholderDigest())
		return LoginResult{}, s.recordFailure(ctx, in.Email, now, nil)
	}

	if !auth.VerifyPassword(in.Password, user.PasswordHash) {
		return LoginResult{}, s.recordFailure(ctx, in.Email, now, &user.ID)
	}

	if user.IsBlocked() {
		s.logger.Warn(ctx, "login rejected for blocked account", "user_id", user.ID)
		return LoginResult{}, fmt.Errorf("%w: account is blocked", ErrAccountBlocked)
	}

	if err := s.attempts.Clear(ctx, in.Email); err != nil {
		return LoginResult{}, err
	}
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return LoginResult{}, fmt.Errorf("record last login: %w", err)
	}
	user.LastLogin = &now

	token, err := s.tokens.Issue(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.events.emit(ctx, types.AccountEvent{
		Type:       types.EventUserLoginSucceeded,
		ActorID:    &user.ID,
		TargetIDs:  []int{user.ID},
		Email:      user.Email,
		OccurredAt: now,
	})
	return LoginResult{Token: token, User: user}, nil
}

// recordFailure is deliberately outside any transaction with the
// credential check so the count survives the failed request. It returns
// the error the login should fail with.
func (s *AuthService) recordFailure(ctx context.Context, email string, now time.Time, userID *int) error {
	bookkeeping := context.WithoutCancel(ctx)
	attempt, err := s.attempts.RecordFailure(bookkeeping, email, now, s.lockout.Threshold, s.lockout.LockUntil(now))
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}

	event := types.AccountEvent{
		Type:       types.EventUserLoginFailed,
		ActorID:    userID,
		Email:      email,
		OccurredAt: now,
	}
	if userID != nil {
		event.TargetIDs = []int{*userID}
	}
	s.events.emit(ctx, event)

	if attempt.LockedAt(now) {
		s.logger.Warn(ctx, "login locked after repeated failures", "email", email, "attempts", attempt.Attempts, "blocked_until", *attempt.BlockedUntil)
		event.Type = types.EventUserLocked
		event.ID = ""
		s.events.emit(ctx, event)
		return &auth.LockedError{Until: *attempt.BlockedUntil}
	}
	return ErrInvalidCredentials
}

// Me returns the current state of the authenticated account.
func (s *AuthService) Me(ctx context.Context, identity types.Identity) (types.User, error) {
	user, err := s.users.GetByID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, fmt.Errorf("%w: account no longer exists", ErrInvalidToken)
		}
		return types.User{}, err
	}
	return user, nil
}

var placeholderDigest = sync.OnceValue(func() string {
	digest, err := auth.HashPassword("placeholder-password-for-timing")
	if err != nil {
		return ""
	}
	return digest
})
