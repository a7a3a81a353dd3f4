package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membergate/api/internal/user/domain"
)

const userCols = "id, email, email_verified, password_hash, role, membership_status, membership_tier, created_at, updated_at, last_login_at, deleted_at"

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func userRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "email_verified", "password_hash", "role",
		"membership_status", "membership_tier", "created_at", "updated_at",
		"last_login_at", "deleted_at",
	}).AddRow("user-1", "alice@example.com", true, "$2a$12$hash", "subscriber",
		"active", "pro", now, now, nil, nil)
}

func TestGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT ` + userCols + ` FROM users WHERE id`).
		WithArgs("user-1").
		WillReturnRows(userRows(now))

	got, err := repo.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, domain.RoleSubscriber, got.Role)
	assert.Equal(t, domain.MembershipActive, got.MembershipStatus)
	assert.Nil(t, got.LastLoginAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT ` + userCols + ` FROM users WHERE id`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmailCaseInsensitive(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT ` + userCols + ` FROM users WHERE LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("Alice@Example.COM").
		WillReturnRows(userRows(now))

	got, err := repo.GetByEmail(context.Background(), "Alice@Example.COM")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePasswordlessUser(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now().UTC()
	u := &domain.User{
		ID:               "user-2",
		Email:            "bob@example.com",
		EmailVerified:    true,
		Role:             domain.RoleSubscriber,
		MembershipStatus: domain.MembershipInactive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// Empty password hash is stored as NULL, not "".
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Email, true, nil, "subscriber", "inactive", "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordHash(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE users SET password_hash`).
		WithArgs("user-1", "$2a$12$newhash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdatePasswordHash(context.Background(), "user-1", "$2a$12$newhash")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLastLogin(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE users SET last_login_at`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateLastLogin(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetEmailVerified(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE users SET email_verified`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetEmailVerified(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
