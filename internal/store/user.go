package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adminpanel/apiserver/types"
	"github.com/lib/pq"
)

const userColumns = `id, name, email, role, status, password_hash, token_version, last_login, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user      types.User
		role      string
		status    string
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&role,
		&status,
		&user.PasswordHash,
		&user.TokenVersion,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return types.User{}, err
	}

	var ok bool
	if user.Role, ok = types.ParseRole(role); !ok {
		return types.User{}, fmt.Errorf("user %d: unknown role %q", user.ID, role)
	}
	if user.Status, ok = types.ParseStatus(status); !ok {
		return types.User{}, fmt.Errorf("user %d: unknown status %q", user.ID, status)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, types.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// List returns every account, most recently active first.
func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY last_login DESC NULLS LAST, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.Email = types.NormalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (name, email, role, status, password_hash, token_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Name,
		user.Email,
		string(user.Role),
		string(user.Status),
		user.PasswordHash,
		user.TokenVersion,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// TouchLastLogin records a successful login.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id int, at time.Time) error {
	const query = `UPDATE users SET last_login = $1, updated_at = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return expectAffected(result)
}

// SetRole changes the role of the account registered under email.
func (r *UserRepository) SetRole(ctx context.Context, email string, role types.Role) error {
	const query = `UPDATE users SET role = $1, updated_at = $2 WHERE LOWER(email) = $3`
	result, err := r.db.ExecContext(ctx, query, string(role), time.Now(), types.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return expectAffected(result)
}

// BlockMany blocks the given accounts and bumps their token version in the
// same statement, revoking every outstanding token. Unknown ids are
// ignored; the ids actually updated are returned.
func (r *UserRepository) BlockMany(ctx context.Context, ids []int) ([]int, error) {
	const query = `
		UPDATE users
		SET status = 'blocked',
			token_version = token_version + 1,
			updated_at = $2
		WHERE id = ANY($1)
		RETURNING id`
	return r.updateReturningIDs(ctx, "block users", query, ids)
}

// UnblockMany reactivates the given accounts. Token versions are left as is.
func (r *UserRepository) UnblockMany(ctx context.Context, ids []int) ([]int, error) {
	const query = `
		UPDATE users
		SET status = 'active',
			updated_at = $2
		WHERE id = ANY($1)
		RETURNING id`
	return r.updateReturningIDs(ctx, "unblock users", query, ids)
}

// DeleteMany removes the given accounts.
func (r *UserRepository) DeleteMany(ctx context.Context, ids []int) ([]int, error) {
	const query = `DELETE FROM users WHERE id = ANY($1) RETURNING id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(toInt64s(ids)))
	if err != nil {
		return nil, fmt.Errorf("delete users: %w", err)
	}
	return collectIDs(rows, "delete users")
}

func (r *UserRepository) updateReturningIDs(ctx context.Context, op, query string, ids []int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, query, pq.Array(toInt64s(ids)), time.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return collectIDs(rows, op)
}

func collectIDs(rows *sql.Rows, op string) ([]int, error) {
	defer rows.Close()

	affected := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		affected = append(affected, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return affected, nil
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
