// Package domain holds the credential records whose validity depends on
// mutable persisted state: rotating refresh tokens and single-use ephemeral
// tokens (magic login links, password reset links).
package domain

import (
	"time"
	"unicode/utf8"
)

// DeviceInfoMaxLength bounds the stored client descriptor string.
const DeviceInfoMaxLength = 256

// RefreshToken is the persisted record behind a long-lived rotation token.
// Only the SHA-256 hash of the secret is stored. A record with RevokedAt
// set or ExpiresAt in the past is permanently unusable.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	DeviceInfo string
	IPAddress  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
}

// IsExpired reports whether the token's expiry has passed as of now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// IsRevoked reports whether the token has been revoked or rotated away.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsValid reports whether the token is usable: not expired and not revoked.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.IsExpired(now) && !t.IsRevoked()
}

// MagicLinkToken is a single-use passwordless-login token. It is keyed by
// email rather than user ID so a link can be issued for an address with no
// account yet. UsedAt, once set, is never cleared.
type MagicLinkToken struct {
	ID        string
	Email     string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
	IPAddress string
}

// IsValid reports whether the token is unconsumed and unexpired.
func (t *MagicLinkToken) IsValid(now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now)
}

// PasswordResetToken is a single-use reset token tied to an existing user.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
	IPAddress string
}

// IsValid reports whether the token is unconsumed and unexpired.
func (t *PasswordResetToken) IsValid(now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now)
}

// SessionInfo is the view of a refresh-token record shown to users when
// listing their active sessions. The hash never leaves the repository.
type SessionInfo struct {
	ID         string
	DeviceInfo string
	IPAddress  string
	CreatedAt  time.Time
	LastUsedAt *time.Time
	IsCurrent  bool
}

// TruncateDeviceInfo bounds a client-supplied descriptor to the stored
// maximum, cutting at a rune boundary so the result stays valid UTF-8.
func TruncateDeviceInfo(s string) string {
	if len(s) <= DeviceInfoMaxLength {
		return s
	}
	cut := DeviceInfoMaxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
