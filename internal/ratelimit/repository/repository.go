package repository

import (
	"context"

	"membergate/api/internal/ratelimit/domain"
)

// Repository defines persistence-backed fixed-window rate limiting. Counts
// survive restarts and are shared across instances pointed at the same
// database.
type Repository interface {
	// CheckAndIncrement records one attempt against the (key, action)
	// window in a single atomic statement and returns the count after the
	// increment. The caller compares the result against the config's
	// MaxRequests; a count above the limit means the attempt is rejected
	// (the attempt is still counted, so hammering extends the rejection).
	CheckAndIncrement(ctx context.Context, key string, cfg domain.Config) (int64, error)
	// Check reports whether the (key, action) pair is currently at or over
	// its limit without counting an attempt.
	Check(ctx context.Context, key string, cfg domain.Config) (bool, error)
	// RetryAfter returns the seconds until the current window for the
	// (key, action) pair resets. Returns 0 when there is no active window.
	RetryAfter(ctx context.Context, key string, cfg domain.Config) (int64, error)
	// Reset clears the window for the (key, action) pair, e.g. after a
	// successful login.
	Reset(ctx context.Context, key, action string) error
	// CleanupExpired removes windows that ended more than a day ago and
	// returns the number of rows deleted.
	CleanupExpired(ctx context.Context) (int64, error)
}
