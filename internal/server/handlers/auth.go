package handlers

import (
	"net/http"
	"time"

	"membergate/api/internal/apperr"
	authservice "membergate/api/internal/auth/service"
	"membergate/api/internal/observability"
	"membergate/api/internal/server/middleware"
	tokendomain "membergate/api/internal/token/domain"
	userdomain "membergate/api/internal/user/domain"
)

// AuthHandler exposes the auth flows over HTTP.
type AuthHandler struct {
	auth    *authservice.AuthService
	metrics *observability.Metrics
}

// NewAuthHandler returns the handler for /v1/auth routes.
func NewAuthHandler(auth *authservice.AuthService, metrics *observability.Metrics) *AuthHandler {
	return &AuthHandler{auth: auth, metrics: metrics}
}

// countAuth records the outcome of one credential-bearing attempt. Requests
// rejected before reaching the service (malformed bodies) are not counted.
func (h *AuthHandler) countAuth(flow string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	h.metrics.AuthAttempts.WithLabelValues(flow, outcome).Inc()
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type userResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailVerified    bool       `json:"email_verified"`
	Role             string     `json:"role"`
	MembershipStatus string     `json:"membership_status"`
	MembershipTier   string     `json:"membership_tier,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

type authResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
}

type sessionResponse struct {
	ID         string     `json:"id"`
	DeviceInfo string     `json:"device_info,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func toUserResponse(u *userdomain.User) userResponse {
	return userResponse{
		ID:               u.ID,
		Email:            u.Email,
		EmailVerified:    u.EmailVerified,
		Role:             string(u.Role),
		MembershipStatus: string(u.MembershipStatus),
		MembershipTier:   u.MembershipTier,
		CreatedAt:        u.CreatedAt,
		LastLoginAt:      u.LastLoginAt,
	}
}

func toAuthResponse(pair *authservice.TokenPair, u *userdomain.User) authResponse {
	return authResponse{
		User:         toUserResponse(u),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}
}

func toSessionResponses(sessions []*tokendomain.SessionInfo) []sessionResponse {
	out := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		out[i] = sessionResponse{
			ID:         s.ID,
			DeviceInfo: s.DeviceInfo,
			IPAddress:  s.IPAddress,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
		}
	}
	return out
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.auth.Register(r.Context(), req.Email, req.Password, middleware.ClientIP(r))
	h.countAuth("register", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusCreated, toUserResponse(user))
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pair, user, err := h.auth.Login(r.Context(), req.Email, req.Password, middleware.DeviceInfo(r), middleware.ClientIP(r))
	h.countAuth("login", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, toAuthResponse(pair, user))
}

// Refresh handles POST /v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken, middleware.DeviceInfo(r), middleware.ClientIP(r))
	h.countAuth("refresh", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
	})
}

// Logout handles POST /v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.auth.Logout(r.Context(), req.RefreshToken, middleware.ClientIP(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]string{"message": "logged out"})
}

// LogoutAll handles POST /v1/auth/logout-all. Requires auth.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		writeError(w, r, apperr.ErrUnauthorized)
		return
	}
	if err := h.auth.LogoutAll(r.Context(), claims.Subject, middleware.ClientIP(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]string{"message": "logged out of all sessions"})
}

// Sessions handles GET /v1/auth/sessions. Requires auth.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		writeError(w, r, apperr.ErrUnauthorized)
		return
	}
	sessions, err := h.auth.ListSessions(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, toSessionResponses(sessions))
}

// Me handles GET /v1/auth/me. Claims only, no store lookup.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		writeError(w, r, apperr.ErrUnauthorized)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]string{
		"id":                claims.Subject,
		"email":             claims.Email,
		"role":              claims.Role,
		"membership_status": claims.MembershipStatus,
		"membership_tier":   claims.MembershipTier,
	})
}

// RequestMagicLink handles POST /v1/auth/magic-link.
func (h *AuthHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.auth.RequestMagicLink(r.Context(), req.Email, middleware.ClientIP(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]string{"message": "if the address exists, a login link has been sent"})
}

// VerifyMagicLink handles POST /v1/auth/magic-link/verify.
func (h *AuthHandler) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	var req verifyTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pair, user, err := h.auth.VerifyMagicLink(r.Context(), req.Token, middleware.DeviceInfo(r), middleware.ClientIP(r))
	h.countAuth("magic_link", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, toAuthResponse(pair, user))
}

// RequestPasswordReset handles POST /v1/auth/password-reset.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.auth.RequestPasswordReset(r.Context(), req.Email, middleware.ClientIP(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]string{"message": "if the address exists, a reset link has been sent"})
}

// VerifyResetToken handles POST /v1/auth/password-reset/verify.
func (h *AuthHandler) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	var req verifyTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.auth.VerifyResetToken(r.Context(), req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]bool{"valid": true})
}

// CompletePasswordReset handles POST /v1/auth/password-reset/confirm.
func (h *AuthHandler) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := h.auth.CompletePasswordReset(r.Context(), req.Token, req.NewPassword, middleware.ClientIP(r))
	h.countAuth("password_reset", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]string{"message": "password has been reset"})
}

// ChangePassword handles POST /v1/auth/change-password. Requires auth.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		writeError(w, r, apperr.ErrUnauthorized)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), claims.Subject, req.CurrentPassword, req.NewPassword, middleware.ClientIP(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]string{"message": "password changed"})
}
