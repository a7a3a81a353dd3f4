package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"membergate/api/internal/apperr"
	"membergate/api/internal/security"
	userdomain "membergate/api/internal/user/domain"
)

const claimsKey contextKey = "access_claims"

// Authenticator validates a raw access token. Implemented by the auth
// service.
type Authenticator interface {
	Authenticate(rawAccess string) (*security.AccessClaims, error)
}

// RequireAuth validates the Bearer access token and stores its claims in
// the request context. Validation is purely stateless.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeAuthError(w, apperr.ErrUnauthorized)
				return
			}
			claims, err := auth.Authenticate(raw)
			if err != nil {
				writeAuthError(w, apperr.FromError(err))
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects authenticated requests whose role is not admin. Must
// run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaims(r.Context())
		if !ok {
			writeAuthError(w, apperr.ErrUnauthorized)
			return
		}
		if userdomain.Role(claims.Role) != userdomain.RoleAdmin {
			writeAuthError(w, apperr.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClaims returns the access claims stored by RequireAuth.
func GetClaims(ctx context.Context) (*security.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*security.AccessClaims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, e *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    e.Code,
			"message": e.Message,
		},
	})
}
