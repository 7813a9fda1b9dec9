package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adminpanel/apiserver/types"
)

// LoginAttemptRepository persists the failed-login ledger keyed by email.
type LoginAttemptRepository struct {
	db *sql.DB
}

func NewLoginAttemptRepository(db *sql.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

func scanLoginAttempt(row rowScanner) (types.LoginAttempt, error) {
	var (
		attempt      types.LoginAttempt
		blockedUntil sql.NullTime
	)
	if err := row.Scan(&attempt.Email, &attempt.Attempts, &attempt.LastAttempt, &blockedUntil); err != nil {
		return types.LoginAttempt{}, err
	}
	if blockedUntil.Valid {
		t := blockedUntil.Time
		attempt.BlockedUntil = &t
	}
	return attempt, nil
}

func (r *LoginAttemptRepository) Get(ctx context.Context, email string) (types.LoginAttempt, error) {
	const query = `
		SELECT email, attempts, last_attempt, blocked_until
		FROM login_attempts
		WHERE email = $1`
	attempt, err := scanLoginAttempt(r.db.QueryRowContext(ctx, query, types.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.LoginAttempt{}, ErrNotFound
		}
		return types.LoginAttempt{}, fmt.Errorf("get login attempt: %w", err)
	}
	return attempt, nil
}

// RecordFailure counts one failed login in a single upsert so concurrent
// failures never lose an increment. A live lock is left untouched, an
// expired lock restarts the count at one, and reaching threshold sets
// blocked_until to lockUntil.
func (r *LoginAttemptRepository) RecordFailure(ctx context.Context, email string, at time.Time, threshold int, lockUntil time.Time) (types.LoginAttempt, error) {
	const query = `
		INSERT INTO login_attempts AS la (email, attempts, last_attempt, blocked_until)
		VALUES ($1, 1, $2, CASE WHEN 1 >= $3 THEN $4::timestamptz ELSE NULL END)
		ON CONFLICT (email) DO UPDATE SET
			attempts = CASE
				WHEN la.blocked_until IS NULL THEN la.attempts + 1
				WHEN la.blocked_until > EXCLUDED.last_attempt THEN la.attempts
				ELSE 1
			END,
			last_attempt = EXCLUDED.last_attempt,
			blocked_until = CASE
				WHEN la.blocked_until > EXCLUDED.last_attempt THEN la.blocked_until
				WHEN la.blocked_until IS NULL AND la.attempts + 1 >= $3 THEN $4::timestamptz
				WHEN la.blocked_until IS NOT NULL AND 1 >= $3 THEN $4::timestamptz
				ELSE NULL
			END
		RETURNING email, attempts, last_attempt, blocked_until`
	attempt, err := scanLoginAttempt(r.db.QueryRowContext(ctx, query, types.NormalizeEmail(email), at, threshold, lockUntil))
	if err != nil {
		return types.LoginAttempt{}, fmt.Errorf("record login failure: %w", err)
	}
	return attempt, nil
}

// Clear removes the ledger entry after a successful login.
func (r *LoginAttemptRepository) Clear(ctx context.Context, email string) error {
	const query = `DELETE FROM login_attempts WHERE email = $1`
	if _, err := r.db.ExecContext(ctx, query, types.NormalizeEmail(email)); err != nil {
		return fmt.Errorf("clear login attempts: %w", err)
	}
	return nil
}
