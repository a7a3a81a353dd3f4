package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"membergate/api/internal/user/domain"
)

const userColumns = `id, email, email_verified, password_hash, role, membership_status, membership_tier, created_at, updated_at, last_login_at, deleted_at`

// PostgresRepository persists users in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email (case-insensitive), or
// nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return scanUser(row)
}

// Create persists the user. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	ph := sql.NullString{String: u.PasswordHash, Valid: u.PasswordHash != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, email_verified, password_hash, role, membership_status, membership_tier, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.EmailVerified, ph, string(u.Role), string(u.MembershipStatus), u.MembershipTier, u.CreatedAt, u.UpdatedAt)
	return err
}

// UpdatePasswordHash sets a new password hash for the user.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	return err
}

// UpdateLastLogin stamps the user's last successful login.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

// SetEmailVerified marks the user's email as verified.
func (r *PostgresRepository) SetEmailVerified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u           domain.User
		ph          sql.NullString
		role        string
		status      string
		lastLoginAt sql.NullTime
		deletedAt   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.EmailVerified, &ph, &role, &status,
		&u.MembershipTier, &u.CreatedAt, &u.UpdatedAt, &lastLoginAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.PasswordHash = ph.String
	u.Role = domain.Role(role)
	u.MembershipStatus = domain.MembershipStatus(status)
	u.LastLoginAt = nullTimeToPtr(lastLoginAt)
	u.DeletedAt = nullTimeToPtr(deletedAt)
	return &u, nil
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
