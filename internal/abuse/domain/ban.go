// Package domain defines the persisted IP ban record.
package domain

import "time"

// IPBan is a time-bounded block on a client address. Bans are enforced from
// an in-memory map; the persisted row exists so bans survive restarts.
type IPBan struct {
	IPAddress string
	Reason    string
	Strikes   int
	BannedAt  time.Time
	ExpiresAt time.Time
}

// IsActive reports whether the ban is still in force as of now.
func (b *IPBan) IsActive(now time.Time) bool {
	return b.ExpiresAt.After(now)
}
