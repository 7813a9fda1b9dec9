package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/adminpanel/apiserver/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"id", "name", "email", "role", "status", "password_hash", "token_version", "last_login", "created_at", "updated_at"}

func newUserRepoWithMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepository(db), mock
}

func TestUserRepository_GetByID_Found(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(7, "Alice", "alice@x.com", "admin", "active", "hash", 2, now, now, now)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).WithArgs(7).WillReturnRows(rows)

	user, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)
	assert.Equal(t, types.RoleAdmin, user.Role)
	assert.Equal(t, types.StatusActive, user.Status)
	assert.Equal(t, 2, user.TokenVersion)
	require.NotNil(t, user.LastLogin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).WithArgs(9).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_GetByID_UnknownRole(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(7, "Alice", "alice@x.com", "root", "active", "hash", 0, nil, now, now)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).WithArgs(7).WillReturnRows(rows)

	_, err := repo.GetByID(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown role "root"`)
}

func TestUserRepository_GetByEmail_Normalizes(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(3, "Alice", "alice@x.com", "user", "blocked", "hash", 1, nil, now, now)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE LOWER\(email\) = \$1`).WithArgs("alice@x.com").WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "  ALICE@x.com")
	require.NoError(t, err)
	assert.True(t, user.IsBlocked())
	assert.Nil(t, user.LastLogin)
}

func TestUserRepository_List(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	now := time.Now()

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(1, "A", "a@x.com", "admin", "active", "h", 0, now, now, now).
		AddRow(2, "B", "b@x.com", "user", "blocked", "h", 4, nil, now, now)
	mock.ExpectQuery(`SELECT .+ FROM users ORDER BY last_login DESC NULLS LAST, id`).WillReturnRows(rows)

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@x.com", users[0].Email)
	assert.Equal(t, types.StatusBlocked, users[1].Status)
}

func TestUserRepository_Create(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users .+ RETURNING id`).
		WithArgs("Alice", "alice@x.com", "user", "active", "hash", 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	user, err := repo.Create(context.Background(), types.User{
		Name:         "Alice",
		Email:        "Alice@X.com",
		Role:         types.RoleUser,
		Status:       types.StatusActive,
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, 11, user.ID)
	assert.Equal(t, "alice@x.com", user.Email)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestUserRepository_Create_Duplicate(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), types.User{Email: "alice@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepository_Create_DBError(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), types.User{Email: "alice@x.com"})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`create user: .*db down`), err.Error())
}

func TestUserRepository_BlockMany_BumpsTokenVersion(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)UPDATE users\s+SET status = 'blocked',\s+token_version = token_version \+ 1,.+WHERE id = ANY\(\$1\)\s+RETURNING id`).
		WithArgs(pq.Array([]int64{1, 2, 99}), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	affected, err := repo.BlockMany(context.Background(), []int{1, 2, 99})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UnblockMany(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`(?s)UPDATE users\s+SET status = 'active',\s+updated_at = \$2\s+WHERE id = ANY\(\$1\)`).
		WithArgs(pq.Array([]int64{5}), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	affected, err := repo.UnblockMany(context.Background(), []int{5})
	require.NoError(t, err)
	assert.Equal(t, []int{5}, affected)
}

func TestUserRepository_DeleteMany(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectQuery(`DELETE FROM users WHERE id = ANY\(\$1\) RETURNING id`).
		WithArgs(pq.Array([]int64{3, 4})).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	affected, err := repo.DeleteMany(context.Background(), []int{3, 4})
	require.NoError(t, err)
	assert.Empty(t, affected)
}

func TestUserRepository_TouchLastLogin(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)
	at := time.Now()

	mock.ExpectExec(`UPDATE users SET last_login = \$1, updated_at = \$1 WHERE id = \$2`).
		WithArgs(at, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET last_login`).
		WithArgs(at, 8).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.TouchLastLogin(context.Background(), 7, at))
	assert.ErrorIs(t, repo.TouchLastLogin(context.Background(), 8, at), ErrNotFound)
}

func TestUserRepository_SetRole(t *testing.T) {
	repo, mock := newUserRepoWithMock(t)

	mock.ExpectExec(`UPDATE users SET role = \$1, updated_at = \$2 WHERE LOWER\(email\) = \$3`).
		WithArgs("admin", sqlmock.AnyArg(), "alice@x.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetRole(context.Background(), "Alice@x.com", types.RoleAdmin))
}
