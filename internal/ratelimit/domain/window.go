// Package domain defines fixed-window rate-limit records and the per-action
// limit configurations.
package domain

import "time"

// Window is one persisted counting window for a (key, action) pair. The key
// is a client IP or a user ID depending on the action.
type Window struct {
	ID          string
	Key         string
	Action      string
	Count       int64
	WindowStart time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Config is the limit applied to one action: at most MaxRequests per fixed
// window of WindowSecs seconds.
type Config struct {
	Action      string
	MaxRequests int64
	WindowSecs  int64
}

// WindowDuration returns the window length.
func (c Config) WindowDuration() time.Duration {
	return time.Duration(c.WindowSecs) * time.Second
}

// Preset limits. Login and the token-issuance flows are tight; the API
// limits are generous enough that legitimate clients never see them.
var (
	Login         = Config{Action: "login", MaxRequests: 5, WindowSecs: 60}
	MagicLink     = Config{Action: "magic_link", MaxRequests: 3, WindowSecs: 600}
	PasswordReset = Config{Action: "password_reset", MaxRequests: 3, WindowSecs: 3600}
	Registration  = Config{Action: "registration", MaxRequests: 3, WindowSecs: 3600}
	APIAuth       = Config{Action: "api_auth", MaxRequests: 100, WindowSecs: 60}
	APIUnauth     = Config{Action: "api_unauth", MaxRequests: 20, WindowSecs: 60}
)
