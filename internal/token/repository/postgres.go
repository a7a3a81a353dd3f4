package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"membergate/api/internal/token/domain"
)

const refreshColumns = `id, user_id, token_hash, device_info, ip_address, expires_at, created_at, last_used_at, revoked_at`

// PostgresRepository persists token records in Postgres. All state changes
// go through single-statement updates; the repository never reads a row
// into memory and writes it back.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a token repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateRefreshToken persists the refresh-token record. The record must
// have ID and TokenHash set.
func (r *PostgresRepository) CreateRefreshToken(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, device_info, ip_address, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.TokenHash,
		nullStr(t.DeviceInfo), nullStr(t.IPAddress), t.ExpiresAt, t.CreatedAt)
	return err
}

// FindRefreshTokenByHash returns the active record for the hash, or nil.
func (r *PostgresRepository) FindRefreshTokenByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens
		 WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()`,
		tokenHash)
	return scanRefreshToken(row)
}

// ConsumeRefreshToken atomically rotates away the active record for the
// hash. The WHERE clause and UPDATE run as one statement, so of two
// concurrent refresh calls presenting the same secret exactly one gets the
// row back; the other sees nil.
func (r *PostgresRepository) ConsumeRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE refresh_tokens
		 SET revoked_at = NOW(), last_used_at = NOW()
		 WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
		 RETURNING `+refreshColumns,
		tokenHash)
	return scanRefreshToken(row)
}

// RevokeRefreshTokenByHash revokes the record for the hash if still active.
func (r *PostgresRepository) RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW()
		 WHERE token_hash = $1 AND revoked_at IS NULL`,
		tokenHash)
	return err
}

// RevokeAllUserRefreshTokens revokes all active records for the user.
func (r *PostgresRepository) RevokeAllUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW()
		 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID)
	return err
}

// ListUserSessions returns the user's active sessions, newest first.
func (r *PostgresRepository) ListUserSessions(ctx context.Context, userID string) ([]*domain.SessionInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_info, ip_address, created_at, last_used_at
		 FROM refresh_tokens
		 WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()
		 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SessionInfo
	for rows.Next() {
		var (
			s          domain.SessionInfo
			deviceInfo sql.NullString
			ip         sql.NullString
			lastUsed   sql.NullTime
		)
		if err := rows.Scan(&s.ID, &deviceInfo, &ip, &s.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		s.DeviceInfo = deviceInfo.String
		s.IPAddress = ip.String
		s.LastUsedAt = nullTimeToPtr(lastUsed)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// CreateMagicLinkToken persists a magic-link token record.
func (r *PostgresRepository) CreateMagicLinkToken(ctx context.Context, t *domain.MagicLinkToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO magic_link_tokens (id, email, token_hash, expires_at, created_at, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Email, t.TokenHash, t.ExpiresAt, t.CreatedAt, nullStr(t.IPAddress))
	return err
}

// ConsumeMagicLinkToken atomically marks the token used and returns it, or
// nil when the hash is unknown, already consumed, or expired.
func (r *PostgresRepository) ConsumeMagicLinkToken(ctx context.Context, tokenHash string) (*domain.MagicLinkToken, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE magic_link_tokens SET used_at = NOW()
		 WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
		 RETURNING id, email, token_hash, expires_at, used_at, created_at, ip_address`,
		tokenHash)
	var (
		t      domain.MagicLinkToken
		usedAt sql.NullTime
		ip     sql.NullString
	)
	err := row.Scan(&t.ID, &t.Email, &t.TokenHash, &t.ExpiresAt, &usedAt, &t.CreatedAt, &ip)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.UsedAt = nullTimeToPtr(usedAt)
	t.IPAddress = ip.String
	return &t, nil
}

// CountRecentMagicLinkTokens counts tokens issued for the email since the
// given time, including consumed ones.
func (r *PostgresRepository) CountRecentMagicLinkTokens(ctx context.Context, email string, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM magic_link_tokens
		 WHERE LOWER(email) = LOWER($1) AND created_at > $2`,
		email, since).Scan(&count)
	return count, err
}

// CreatePasswordResetToken persists a password-reset token record.
func (r *PostgresRepository) CreatePasswordResetToken(ctx context.Context, t *domain.PasswordResetToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt, nullStr(t.IPAddress))
	return err
}

// FindPasswordResetTokenByHash returns the valid token for the hash without
// consuming it, or nil.
func (r *PostgresRepository) FindPasswordResetTokenByHash(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, used_at, created_at, ip_address
		 FROM password_reset_tokens
		 WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()`,
		tokenHash)
	return scanPasswordResetToken(row)
}

// ConsumePasswordResetToken atomically marks the token used and returns it,
// or nil when no valid token matched.
func (r *PostgresRepository) ConsumePasswordResetToken(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE password_reset_tokens SET used_at = NOW()
		 WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
		 RETURNING id, user_id, token_hash, expires_at, used_at, created_at, ip_address`,
		tokenHash)
	return scanPasswordResetToken(row)
}

// CountRecentPasswordResetTokens counts tokens issued for the user since
// the given time.
func (r *PostgresRepository) CountRecentPasswordResetTokens(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM password_reset_tokens
		 WHERE user_id = $1 AND created_at > $2`,
		userID, since).Scan(&count)
	return count, err
}

// DeleteExpiredTokens removes expired rows from all three token tables and
// returns the total rows deleted.
func (r *PostgresRepository) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	var total int64
	for _, table := range []string{"refresh_tokens", "magic_link_tokens", "password_reset_tokens"} {
		res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at < NOW()`)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRefreshToken(row rowScanner) (*domain.RefreshToken, error) {
	var (
		t          domain.RefreshToken
		deviceInfo sql.NullString
		ip         sql.NullString
		lastUsed   sql.NullTime
		revokedAt  sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &deviceInfo, &ip,
		&t.ExpiresAt, &t.CreatedAt, &lastUsed, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.DeviceInfo = deviceInfo.String
	t.IPAddress = ip.String
	t.LastUsedAt = nullTimeToPtr(lastUsed)
	t.RevokedAt = nullTimeToPtr(revokedAt)
	return &t, nil
}

func scanPasswordResetToken(row rowScanner) (*domain.PasswordResetToken, error) {
	var (
		t      domain.PasswordResetToken
		usedAt sql.NullTime
		ip     sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &usedAt, &t.CreatedAt, &ip)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.UsedAt = nullTimeToPtr(usedAt)
	t.IPAddress = ip.String
	return &t, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
