package repository

import (
	"context"
	"time"

	"membergate/api/internal/token/domain"
)

// Repository defines persistence for refresh, magic-link, and password-reset
// tokens. Consume operations are atomic lookup-and-mark-used statements so
// two concurrent callers presenting the same secret cannot both succeed.
type Repository interface {
	CreateRefreshToken(ctx context.Context, t *domain.RefreshToken) error
	// FindRefreshTokenByHash returns the active (unrevoked, unexpired)
	// record for the hash, or nil if none.
	FindRefreshTokenByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// ConsumeRefreshToken atomically marks the active record for the hash
	// as used (rotated away) and returns it. Returns nil if no active
	// record matched, which covers replay of an already-rotated secret.
	ConsumeRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error
	// RevokeAllUserRefreshTokens revokes every active record for the user.
	// Idempotent: a second call revokes zero additional records.
	RevokeAllUserRefreshTokens(ctx context.Context, userID string) error
	// ListUserSessions returns the user's active refresh-token records,
	// newest first, without token hashes.
	ListUserSessions(ctx context.Context, userID string) ([]*domain.SessionInfo, error)

	CreateMagicLinkToken(ctx context.Context, t *domain.MagicLinkToken) error
	// ConsumeMagicLinkToken atomically marks the unused, unexpired token
	// for the hash as used and returns it, or nil if none matched.
	ConsumeMagicLinkToken(ctx context.Context, tokenHash string) (*domain.MagicLinkToken, error)
	CountRecentMagicLinkTokens(ctx context.Context, email string, since time.Time) (int64, error)

	CreatePasswordResetToken(ctx context.Context, t *domain.PasswordResetToken) error
	// FindPasswordResetTokenByHash returns the unused, unexpired token for
	// the hash without consuming it (for check-only verification).
	FindPasswordResetTokenByHash(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error)
	ConsumePasswordResetToken(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error)
	CountRecentPasswordResetTokens(ctx context.Context, userID string, since time.Time) (int64, error)

	// DeleteExpiredTokens physically removes expired rows from all three
	// tables. Cleanup only; expiry is independently checked on every use.
	DeleteExpiredTokens(ctx context.Context) (int64, error)
}
