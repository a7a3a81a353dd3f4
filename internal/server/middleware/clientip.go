// Package middleware holds the HTTP middleware chain: request IDs,
// security headers, auto-ban, rate limiting, and bearer-token auth.
package middleware

import (
	"net"
	"net/http"
	"strings"

	tokendomain "membergate/api/internal/token/domain"
)

// ClientIP extracts the client address: first hop of X-Forwarded-For, then
// X-Real-IP, then the socket peer. The service is expected to sit behind a
// proxy that sets these honestly.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// DeviceInfo returns the client descriptor stored with refresh tokens,
// bounded to the persisted maximum.
func DeviceInfo(r *http.Request) string {
	return tokendomain.TruncateDeviceInfo(r.UserAgent())
}
