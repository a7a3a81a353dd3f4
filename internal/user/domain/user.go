package domain

import (
	"errors"
	"time"
)

// Role is the closed set of roles carried inside access-token claims.
// Callers switch on it exhaustively instead of comparing free-form strings.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSubscriber Role = "subscriber"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSubscriber:
		return true
	}
	return false
}

// MembershipStatus tags the account's subscription state. Carried into
// claims so access checks stay stateless.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipGrace    MembershipStatus = "grace"
	MembershipInactive MembershipStatus = "inactive"
)

// User is the account slice the auth core needs. Billing and profile
// fields live with their own collaborators.
type User struct {
	ID               string
	Email            string
	EmailVerified    bool
	PasswordHash     string // empty for passwordless (magic-link only) accounts
	Role             Role
	MembershipStatus MembershipStatus
	MembershipTier   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastLoginAt      *time.Time
	DeletedAt        *time.Time // nil unless soft-deleted
}

// IsDeleted reports whether the account has been soft-deleted. Deleted
// accounts behave like unknown identities everywhere.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// Validate validates the user for persistence.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Role == "" {
		u.Role = RoleSubscriber
	}
	if !u.Role.Valid() {
		return errors.New("unknown role")
	}
	if u.MembershipStatus == "" {
		u.MembershipStatus = MembershipInactive
	}
	return nil
}
