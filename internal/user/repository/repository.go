package repository

import (
	"context"

	"membergate/api/internal/user/domain"
)

// Repository defines the user persistence the auth core consumes.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string) error
	SetEmailVerified(ctx context.Context, id string) error
}
