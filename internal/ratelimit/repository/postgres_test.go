package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membergate/api/internal/ratelimit/domain"
)

func newMockRepo(t *testing.T, now time.Time) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewPostgresRepository(db).WithNow(func() time.Time { return now })
	return repo, mock
}

// upsertPattern pins the whole statement: one insert-or-update where both
// the count and the window start reset when the stored window has aged past
// the cutoff ($5), and increment in place otherwise.
const upsertPattern = `INSERT INTO rate_limits \(id, key, action, count, window_start, created_at, updated_at\)\s+` +
	`VALUES \(\$1, \$2, \$3, 1, \$4, \$4, \$4\)\s+` +
	`ON CONFLICT \(key, action\) DO UPDATE SET\s+` +
	`count = CASE WHEN rate_limits\.window_start < \$5 THEN 1 ELSE rate_limits\.count \+ 1 END,\s+` +
	`window_start = CASE WHEN rate_limits\.window_start < \$5 THEN \$4 ELSE rate_limits\.window_start END,\s+` +
	`updated_at = \$4\s+` +
	`RETURNING count`

func TestCheckAndIncrement(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	repo, mock := newMockRepo(t, now)

	mock.ExpectQuery(upsertPattern).
		WithArgs(sqlmock.AnyArg(), "203.0.113.9", "login", now, now.Add(-60*time.Second)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CheckAndIncrement(context.Background(), "203.0.113.9", domain.Login)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndIncrementResetsElapsedWindow(t *testing.T) {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := start
	repo := NewPostgresRepository(db).WithNow(func() time.Time { return now })

	// Sixth attempt inside the window: the row's window_start (start) is
	// not older than the cutoff (start-60s), so the count keeps growing
	// and the attempt is over the login limit.
	mock.ExpectQuery(upsertPattern).
		WithArgs(sqlmock.AnyArg(), "203.0.113.9", "login", start, start.Add(-60*time.Second)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))

	count, err := repo.CheckAndIncrement(context.Background(), "203.0.113.9", domain.Login)
	require.NoError(t, err)
	assert.Greater(t, count, domain.Login.MaxRequests)

	// 61s later the cutoff has moved past the stored window_start, so the
	// reset branch restarts the window: count 1, not flagged.
	now = start.Add(61 * time.Second)
	mock.ExpectQuery(upsertPattern).
		WithArgs(sqlmock.AnyArg(), "203.0.113.9", "login", now, now.Add(-60*time.Second)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err = repo.CheckAndIncrement(context.Background(), "203.0.113.9", domain.Login)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.LessOrEqual(t, count, domain.Login.MaxRequests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOverLimit(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	repo, mock := newMockRepo(t, now)

	mock.ExpectQuery(`SELECT count FROM rate_limits`).
		WithArgs("203.0.113.9", "login", now.Add(-60*time.Second)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	limited, err := repo.Check(context.Background(), "203.0.113.9", domain.Login)
	require.NoError(t, err)
	assert.True(t, limited)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckNoWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	repo, mock := newMockRepo(t, now)

	mock.ExpectQuery(`SELECT count FROM rate_limits`).
		WithArgs("203.0.113.9", "login", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}))

	limited, err := repo.Check(context.Background(), "203.0.113.9", domain.Login)
	require.NoError(t, err)
	assert.False(t, limited)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryAfterRoundsUp(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	repo, mock := newMockRepo(t, now)

	// Window opened 30.5s ago in a 60s window: 29.5s remain, reported as 30.
	start := now.Add(-30*time.Second - 500*time.Millisecond)
	mock.ExpectQuery(`SELECT window_start FROM rate_limits`).
		WithArgs("203.0.113.9", "login", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"window_start"}).AddRow(start))

	secs, err := repo.RetryAfter(context.Background(), "203.0.113.9", domain.Login)
	require.NoError(t, err)
	assert.Equal(t, int64(30), secs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryAfterNoWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	repo, mock := newMockRepo(t, now)

	mock.ExpectQuery(`SELECT window_start FROM rate_limits`).
		WithArgs("203.0.113.9", "login", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"window_start"}))

	secs, err := repo.RetryAfter(context.Background(), "203.0.113.9", domain.Login)
	require.NoError(t, err)
	assert.Zero(t, secs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReset(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	repo, mock := newMockRepo(t, now)

	mock.ExpectExec(`DELETE FROM rate_limits WHERE key = \$1 AND action = \$2`).
		WithArgs("203.0.113.9", "login").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reset(context.Background(), "203.0.113.9", "login"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupExpired(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	repo, mock := newMockRepo(t, now)

	mock.ExpectExec(`DELETE FROM rate_limits WHERE window_start <`).
		WithArgs(now.Add(-24 * time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
