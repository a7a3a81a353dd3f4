package repository

import (
	"context"

	"membergate/api/internal/abuse/domain"
)

// Repository persists IP bans. The detector is the source of truth while
// running; the store only backs restarts and multi-instance sharing.
type Repository interface {
	// Upsert inserts or refreshes the ban for the address.
	Upsert(ctx context.Context, ban *domain.IPBan) error
	// ListActive returns all bans whose expiry is still in the future.
	ListActive(ctx context.Context) ([]*domain.IPBan, error)
	// DeleteExpired removes lapsed rows and returns how many were deleted.
	DeleteExpired(ctx context.Context) (int64, error)
}
