package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAttemptRepoWithMock(t *testing.T) (*LoginAttemptRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewLoginAttemptRepository(db), mock
}

func TestLoginAttemptRepository_Get(t *testing.T) {
	repo, mock := newAttemptRepoWithMock(t)
	now := time.Now()
	until := now.Add(15 * time.Minute)

	mock.ExpectQuery(`(?s)SELECT email, attempts, last_attempt, blocked_until\s+FROM login_attempts\s+WHERE email = \$1`).
		WithArgs("alice@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"email", "attempts", "last_attempt", "blocked_until"}).
			AddRow("alice@x.com", 5, now, until))

	attempt, err := repo.Get(context.Background(), "ALICE@x.com")
	require.NoError(t, err)
	assert.Equal(t, 5, attempt.Attempts)
	require.NotNil(t, attempt.BlockedUntil)
	assert.True(t, attempt.BlockedUntil.Equal(until))
}

func TestLoginAttemptRepository_Get_NotFound(t *testing.T) {
	repo, mock := newAttemptRepoWithMock(t)

	mock.ExpectQuery(`FROM login_attempts`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

// sqlmock only checks that RecordFailure issues one atomic upsert. The CASE
// branches (reset after an expired lock, lock at the threshold) run against
// Postgres in e2e.TestLockoutLifecycle, and against the memory store in
// TestMemoryLoginAttemptRepository_LockCycle.
func TestLoginAttemptRepository_RecordFailure_IsSingleUpsert(t *testing.T) {
	repo, mock := newAttemptRepoWithMock(t)
	at := time.Now()
	lockUntil := at.Add(15 * time.Minute)

	mock.ExpectQuery(`(?s)INSERT INTO login_attempts AS la .+ON CONFLICT \(email\) DO UPDATE SET.+attempts = CASE.+la\.attempts \+ 1.+RETURNING email, attempts, last_attempt, blocked_until`).
		WithArgs("alice@x.com", at, 5, lockUntil).
		WillReturnRows(sqlmock.NewRows([]string{"email", "attempts", "last_attempt", "blocked_until"}).
			AddRow("alice@x.com", 3, at, nil))

	attempt, err := repo.RecordFailure(context.Background(), "Alice@x.com", at, 5, lockUntil)
	require.NoError(t, err)
	assert.Equal(t, 3, attempt.Attempts)
	assert.Nil(t, attempt.BlockedUntil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginAttemptRepository_RecordFailure_DBError(t *testing.T) {
	repo, mock := newAttemptRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO login_attempts`).WillReturnError(errors.New("db down"))

	_, err := repo.RecordFailure(context.Background(), "alice@x.com", time.Now(), 5, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record login failure")
}

func TestLoginAttemptRepository_Clear(t *testing.T) {
	repo, mock := newAttemptRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM login_attempts WHERE email = \$1`).
		WithArgs("alice@x.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Clear(context.Background(), "alice@x.com"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
