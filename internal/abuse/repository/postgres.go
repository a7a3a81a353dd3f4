package repository

import (
	"context"
	"database/sql"

	"membergate/api/internal/abuse/domain"
)

// PostgresRepository persists IP bans in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a ban repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts the ban or refreshes an existing row for the address.
func (r *PostgresRepository) Upsert(ctx context.Context, ban *domain.IPBan) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ip_bans (ip_address, reason, strikes, banned_at, expires_at)
		 VALUES ($1, $2, $3, NOW(), $4)
		 ON CONFLICT (ip_address) DO UPDATE SET
		   reason = EXCLUDED.reason,
		   strikes = EXCLUDED.strikes,
		   banned_at = NOW(),
		   expires_at = EXCLUDED.expires_at`,
		ban.IPAddress, ban.Reason, ban.Strikes, ban.ExpiresAt)
	return err
}

// ListActive returns unexpired bans.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]*domain.IPBan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ip_address, reason, strikes, banned_at, expires_at
		 FROM ip_bans WHERE expires_at > NOW()`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.IPBan
	for rows.Next() {
		var b domain.IPBan
		if err := rows.Scan(&b.IPAddress, &b.Reason, &b.Strikes, &b.BannedAt, &b.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// DeleteExpired removes lapsed rows.
func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ip_bans WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
