package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"membergate/api/internal/ratelimit/domain"
)

// PostgresRepository implements fixed-window rate limiting over Postgres.
// The count lives in one row per (key, action); every mutation is a single
// upsert so concurrent requests from different instances serialize on the
// row and no attempt is lost.
type PostgresRepository struct {
	db *sql.DB

	now func() time.Time
}

// NewPostgresRepository returns a rate-limit repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// WithNow overrides the clock. Test use only.
func (r *PostgresRepository) WithNow(now func() time.Time) *PostgresRepository {
	r.now = now
	return r
}

// CheckAndIncrement counts one attempt and returns the resulting count for
// the window. When the stored window has aged out the upsert restarts it
// at count 1; otherwise it increments in place.
func (r *PostgresRepository) CheckAndIncrement(ctx context.Context, key string, cfg domain.Config) (int64, error) {
	now := r.now().UTC()
	cutoff := now.Add(-cfg.WindowDuration())

	var count int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO rate_limits (id, key, action, count, window_start, created_at, updated_at)
		 VALUES ($1, $2, $3, 1, $4, $4, $4)
		 ON CONFLICT (key, action) DO UPDATE SET
		   count = CASE WHEN rate_limits.window_start < $5 THEN 1 ELSE rate_limits.count + 1 END,
		   window_start = CASE WHEN rate_limits.window_start < $5 THEN $4 ELSE rate_limits.window_start END,
		   updated_at = $4
		 RETURNING count`,
		uuid.NewString(), key, cfg.Action, now, cutoff).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Check reports whether the pair is at or over its limit, without counting.
func (r *PostgresRepository) Check(ctx context.Context, key string, cfg domain.Config) (bool, error) {
	cutoff := r.now().UTC().Add(-cfg.WindowDuration())

	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT count FROM rate_limits
		 WHERE key = $1 AND action = $2 AND window_start >= $3`,
		key, cfg.Action, cutoff).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return count >= cfg.MaxRequests, nil
}

// RetryAfter returns seconds until the active window for the pair resets,
// or 0 when no active window exists.
func (r *PostgresRepository) RetryAfter(ctx context.Context, key string, cfg domain.Config) (int64, error) {
	now := r.now().UTC()
	cutoff := now.Add(-cfg.WindowDuration())

	var windowStart time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT window_start FROM rate_limits
		 WHERE key = $1 AND action = $2 AND window_start >= $3`,
		key, cfg.Action, cutoff).Scan(&windowStart)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	remaining := windowStart.Add(cfg.WindowDuration()).Sub(now)
	if remaining <= 0 {
		return 0, nil
	}
	secs := int64(remaining / time.Second)
	if remaining%time.Second != 0 {
		secs++
	}
	return secs, nil
}

// Reset deletes the window for the pair.
func (r *PostgresRepository) Reset(ctx context.Context, key, action string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM rate_limits WHERE key = $1 AND action = $2`, key, action)
	return err
}

// CleanupExpired removes windows untouched for more than a day.
func (r *PostgresRepository) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM rate_limits WHERE window_start < $1`,
		r.now().UTC().Add(-24*time.Hour))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
