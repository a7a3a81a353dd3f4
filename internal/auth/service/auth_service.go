// Package service holds the auth coordinator: the single entry point for
// login, token rotation, passwordless login, and password lifecycle flows.
package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"membergate/api/internal/apperr"
	"membergate/api/internal/audit"
	"membergate/api/internal/security"
	tokendomain "membergate/api/internal/token/domain"
	userdomain "membergate/api/internal/user/domain"
)

const (
	magicLinkTTL = 15 * time.Minute
	resetTTL     = time.Hour

	// Issuance throttles applied on top of the per-IP request rate limits.
	magicLinkMaxPerWindow = 3
	magicLinkWindow       = 10 * time.Minute
	resetMaxPerWindow     = 3
	resetWindow           = time.Hour
)

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access token lifetime in seconds
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string) error
	SetEmailVerified(ctx context.Context, id string) error
}

// TokenRepo is the minimal token repository needed by the auth service.
type TokenRepo interface {
	CreateRefreshToken(ctx context.Context, t *tokendomain.RefreshToken) error
	ConsumeRefreshToken(ctx context.Context, tokenHash string) (*tokendomain.RefreshToken, error)
	RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error
	RevokeAllUserRefreshTokens(ctx context.Context, userID string) error
	ListUserSessions(ctx context.Context, userID string) ([]*tokendomain.SessionInfo, error)
	CreateMagicLinkToken(ctx context.Context, t *tokendomain.MagicLinkToken) error
	ConsumeMagicLinkToken(ctx context.Context, tokenHash string) (*tokendomain.MagicLinkToken, error)
	CountRecentMagicLinkTokens(ctx context.Context, email string, since time.Time) (int64, error)
	CreatePasswordResetToken(ctx context.Context, t *tokendomain.PasswordResetToken) error
	FindPasswordResetTokenByHash(ctx context.Context, tokenHash string) (*tokendomain.PasswordResetToken, error)
	ConsumePasswordResetToken(ctx context.Context, tokenHash string) (*tokendomain.PasswordResetToken, error)
	CountRecentPasswordResetTokens(ctx context.Context, userID string, since time.Time) (int64, error)
}

// Mailer delivers tokens out-of-band. Implementations must not log the raw
// token.
type Mailer interface {
	SendMagicLink(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// AuthService composes credential checks, token issuance, and persistence
// into the auth flows. Every flow that issues a refresh token persists its
// record before returning: a session that was never durably recorded never
// hands out tokens.
type AuthService struct {
	userRepo  UserRepo
	tokenRepo TokenRepo
	hasher    *security.Hasher
	tokens    *security.TokenProvider
	mailer    Mailer
	audit     audit.AuditLogger
	log       *logrus.Logger

	now func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	userRepo UserRepo,
	tokenRepo TokenRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	mailer Mailer,
	auditLog audit.AuditLogger,
	log *logrus.Logger,
) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		hasher:    hasher,
		tokens:    tokens,
		mailer:    mailer,
		audit:     auditLog,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the service clock. Test use only.
func (s *AuthService) WithNow(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Register creates a password-bearing account.
func (s *AuthService) Register(ctx context.Context, email, password, ip string) (*userdomain.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := security.ValidatePasswordStrength(password); err != nil {
		return nil, err
	}
	if err := security.ValidatePasswordNotContainsEmail(password, email); err != nil {
		return nil, err
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.FromError(err)
	}
	if existing != nil {
		return nil, apperr.Conflict("email already registered")
	}
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, apperr.FromError(err)
	}
	now := s.now()
	u := &userdomain.User{
		ID:               uuid.New().String(),
		Email:            email,
		PasswordHash:     hash,
		Role:             userdomain.RoleSubscriber,
		MembershipStatus: userdomain.MembershipInactive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := u.Validate(); err != nil {
		return nil, apperr.Validation("email", err.Error())
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, apperr.FromError(err)
	}
	s.audit.LogEvent(ctx, u.ID, audit.ActionRegister, audit.ResourceAuth, ip, "")
	return u, nil
}

// Login authenticates with email/password and returns a token pair. Unknown
// email, deleted account, passwordless account, and wrong password are all
// reported identically as invalid credentials.
func (s *AuthService) Login(ctx context.Context, email, password, deviceInfo, ip string) (*TokenPair, *userdomain.User, error) {
	email = normalizeEmail(email)
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, apperr.FromError(err)
	}
	if user == nil || user.IsDeleted() || user.PasswordHash == "" {
		s.audit.LogEvent(ctx, "", audit.ActionLoginFailure, audit.ResourceAuth, ip, "")
		return nil, nil, apperr.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		s.audit.LogEvent(ctx, user.ID, audit.ActionLoginFailure, audit.ResourceAuth, ip, "")
		return nil, nil, apperr.ErrInvalidCredentials
	}
	pair, err := s.issueTokens(ctx, user, deviceInfo, ip)
	if err != nil {
		return nil, nil, err
	}
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("failed to update last login")
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionLoginSuccess, audit.ResourceAuth, ip, "")
	return pair, user, nil
}

// Refresh rotates a refresh token: the presented secret is consumed in a
// single atomic statement, so of two concurrent refreshes with the same
// secret exactly one succeeds. A secret that was already rotated away reads
// as invalid credentials, never as a second success.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh, deviceInfo, ip string) (*TokenPair, error) {
	claims, err := s.tokens.ValidateRefresh(rawRefresh)
	if err != nil {
		return nil, err
	}
	stored, err := s.tokenRepo.ConsumeRefreshToken(ctx, security.HashToken(rawRefresh))
	if err != nil {
		return nil, apperr.FromError(err)
	}
	if stored == nil {
		s.audit.LogEvent(ctx, claims.Subject, audit.ActionTokenReplay, audit.ResourceAuth, ip, "")
		return nil, apperr.ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, apperr.FromError(err)
	}
	if user == nil || user.IsDeleted() {
		return nil, apperr.ErrInvalidCredentials
	}
	pair, err := s.issueTokens(ctx, user, deviceInfo, ip)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionTokenRefresh, audit.ResourceAuth, ip, "")
	return pair, nil
}

// Logout revokes the presented refresh token. Unknown or already-revoked
// secrets are a no-op, not an error.
func (s *AuthService) Logout(ctx context.Context, rawRefresh, ip string) error {
	if err := s.tokenRepo.RevokeRefreshTokenByHash(ctx, security.HashToken(rawRefresh)); err != nil {
		return apperr.FromError(err)
	}
	userID := ""
	if claims, err := s.tokens.ValidateRefresh(rawRefresh); err == nil {
		userID = claims.Subject
	}
	s.audit.LogEvent(ctx, userID, audit.ActionLogout, audit.ResourceAuth, ip, "")
	return nil
}

// LogoutAll revokes every active session of the user. Idempotent.
func (s *AuthService) LogoutAll(ctx context.Context, userID, ip string) error {
	if err := s.tokenRepo.RevokeAllUserRefreshTokens(ctx, userID); err != nil {
		return apperr.FromError(err)
	}
	s.audit.LogEvent(ctx, userID, audit.ActionLogoutAll, audit.ResourceAuth, ip, "")
	return nil
}

// ListSessions returns the user's active sessions, newest first.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*tokendomain.SessionInfo, error) {
	sessions, err := s.tokenRepo.ListUserSessions(ctx, userID)
	if err != nil {
		return nil, apperr.FromError(err)
	}
	return sessions, nil
}

// RequestMagicLink issues a passwordless login token for the address and
// mails it. It always reports success to the caller so the response does
// not disclose whether an account exists; over-quota requests and delivery
// failures are swallowed after logging.
func (s *AuthService) RequestMagicLink(ctx context.Context, email, ip string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	count, err := s.tokenRepo.CountRecentMagicLinkTokens(ctx, email, s.now().Add(-magicLinkWindow))
	if err != nil {
		return apperr.FromError(err)
	}
	if count >= magicLinkMaxPerWindow {
		s.log.WithField("email", email).Warn("magic link issuance throttled")
		return nil
	}
	raw, err := security.GenerateOpaqueToken()
	if err != nil {
		return apperr.FromError(err)
	}
	now := s.now()
	rec := &tokendomain.MagicLinkToken{
		ID:        uuid.New().String(),
		Email:     email,
		TokenHash: security.HashToken(raw),
		ExpiresAt: now.Add(magicLinkTTL),
		CreatedAt: now,
		IPAddress: ip,
	}
	if err := s.tokenRepo.CreateMagicLinkToken(ctx, rec); err != nil {
		return apperr.FromError(err)
	}
	if err := s.mailer.SendMagicLink(ctx, email, raw); err != nil {
		s.log.WithError(err).Error("failed to send magic link email")
	}
	s.audit.LogEvent(ctx, "", audit.ActionMagicLinkSent, audit.ResourceAuth, ip, "")
	return nil
}

// VerifyMagicLink consumes a magic-link token and logs the address in,
// creating a passwordless account on first use. The consume is atomic, so
// a link clicked twice concurrently logs in exactly once.
func (s *AuthService) VerifyMagicLink(ctx context.Context, rawToken, deviceInfo, ip string) (*TokenPair, *userdomain.User, error) {
	rec, err := s.tokenRepo.ConsumeMagicLinkToken(ctx, security.HashToken(rawToken))
	if err != nil {
		return nil, nil, apperr.FromError(err)
	}
	if rec == nil {
		return nil, nil, apperr.ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByEmail(ctx, rec.Email)
	if err != nil {
		return nil, nil, apperr.FromError(err)
	}
	switch {
	case user == nil:
		now := s.now()
		user = &userdomain.User{
			ID:               uuid.New().String(),
			Email:            rec.Email,
			EmailVerified:    true,
			Role:             userdomain.RoleSubscriber,
			MembershipStatus: userdomain.MembershipInactive,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, nil, apperr.FromError(err)
		}
	case user.IsDeleted():
		return nil, nil, apperr.ErrInvalidCredentials
	case !user.EmailVerified:
		// Completing a magic-link login proves control of the mailbox.
		if err := s.userRepo.SetEmailVerified(ctx, user.ID); err != nil {
			return nil, nil, apperr.FromError(err)
		}
		user.EmailVerified = true
	}
	pair, err := s.issueTokens(ctx, user, deviceInfo, ip)
	if err != nil {
		return nil, nil, err
	}
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("failed to update last login")
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionMagicLinkLogin, audit.ResourceAuth, ip, "")
	return pair, user, nil
}

// RequestPasswordReset issues a reset token for password-bearing accounts
// and mails it. Like RequestMagicLink it always reports success, whether or
// not the address has an account.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, ip string) error {
	email = normalizeEmail(email)
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return apperr.FromError(err)
	}
	if user == nil || user.IsDeleted() || user.PasswordHash == "" {
		return nil
	}
	count, err := s.tokenRepo.CountRecentPasswordResetTokens(ctx, user.ID, s.now().Add(-resetWindow))
	if err != nil {
		return apperr.FromError(err)
	}
	if count >= resetMaxPerWindow {
		s.log.WithField("user_id", user.ID).Warn("password reset issuance throttled")
		return nil
	}
	raw, err := security.GenerateOpaqueToken()
	if err != nil {
		return apperr.FromError(err)
	}
	now := s.now()
	rec := &tokendomain.PasswordResetToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		ExpiresAt: now.Add(resetTTL),
		CreatedAt: now,
		IPAddress: ip,
	}
	if err := s.tokenRepo.CreatePasswordResetToken(ctx, rec); err != nil {
		return apperr.FromError(err)
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, raw); err != nil {
		s.log.WithError(err).Error("failed to send password reset email")
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionResetRequested, audit.ResourceAuth, ip, "")
	return nil
}

// VerifyResetToken checks a reset token without consuming it, so a reset
// form can validate its link before the user types a new password.
func (s *AuthService) VerifyResetToken(ctx context.Context, rawToken string) (string, error) {
	rec, err := s.tokenRepo.FindPasswordResetTokenByHash(ctx, security.HashToken(rawToken))
	if err != nil {
		return "", apperr.FromError(err)
	}
	if rec == nil {
		return "", apperr.ErrInvalidCredentials
	}
	return rec.UserID, nil
}

// CompletePasswordReset sets a new password via a reset token and revokes
// every session of the account. The new password is fully validated before
// the token is consumed, so a rejected password does not burn the link.
func (s *AuthService) CompletePasswordReset(ctx context.Context, rawToken, newPassword, ip string) error {
	if err := security.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}
	tokenHash := security.HashToken(rawToken)
	rec, err := s.tokenRepo.FindPasswordResetTokenByHash(ctx, tokenHash)
	if err != nil {
		return apperr.FromError(err)
	}
	if rec == nil {
		return apperr.ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByID(ctx, rec.UserID)
	if err != nil {
		return apperr.FromError(err)
	}
	if user == nil || user.IsDeleted() {
		return apperr.NotFound("user")
	}
	if err := security.ValidatePasswordNotContainsEmail(newPassword, user.Email); err != nil {
		return err
	}
	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return apperr.FromError(err)
	}
	// Consume last: of two concurrent completes with the same link, only
	// the one that wins this statement updates the password.
	consumed, err := s.tokenRepo.ConsumePasswordResetToken(ctx, tokenHash)
	if err != nil {
		return apperr.FromError(err)
	}
	if consumed == nil {
		return apperr.ErrInvalidCredentials
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return apperr.FromError(err)
	}
	if err := s.tokenRepo.RevokeAllUserRefreshTokens(ctx, user.ID); err != nil {
		return apperr.FromError(err)
	}
	s.audit.LogEvent(ctx, user.ID, audit.ActionResetCompleted, audit.ResourceAuth, ip, "")
	return nil
}

// ChangePassword replaces the password of a logged-in user after verifying
// the current one, then revokes all sessions so stolen refresh tokens die
// with the old password.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, ip string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return apperr.FromError(err)
	}
	if user == nil || user.IsDeleted() {
		return apperr.NotFound("user")
	}
	if user.PasswordHash == "" {
		return apperr.Validation("password", "no password set for this account")
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(currentPassword)); err != nil {
		return apperr.Validation("current_password", "current password is incorrect")
	}
	if err := security.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}
	if err := security.ValidatePasswordNotContainsEmail(newPassword, user.Email); err != nil {
		return err
	}
	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return apperr.FromError(err)
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return apperr.FromError(err)
	}
	if err := s.tokenRepo.RevokeAllUserRefreshTokens(ctx, userID); err != nil {
		return apperr.FromError(err)
	}
	s.audit.LogEvent(ctx, userID, audit.ActionPasswordChanged, audit.ResourceAuth, ip, "")
	return nil
}

// Authenticate validates an access token statelessly and returns its claims.
// No store access happens here; revocation only affects refresh.
func (s *AuthService) Authenticate(rawAccess string) (*security.AccessClaims, error) {
	return s.tokens.ValidateAccess(rawAccess)
}

// issueTokens builds the access/refresh pair for the user and persists the
// refresh record. If the persistence write fails no tokens are returned.
func (s *AuthService) issueTokens(ctx context.Context, user *userdomain.User, deviceInfo, ip string) (*TokenPair, error) {
	profile := security.AccessProfile{
		UserID:           user.ID,
		Email:            user.Email,
		Role:             string(user.Role),
		MembershipStatus: string(user.MembershipStatus),
		MembershipTier:   user.MembershipTier,
	}
	accessToken, _, err := s.tokens.IssueAccess(profile)
	if err != nil {
		return nil, apperr.FromError(err)
	}
	refreshToken, tokenHash, expiresAt, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, apperr.FromError(err)
	}
	rec := &tokendomain.RefreshToken{
		ID:         uuid.New().String(),
		UserID:     user.ID,
		TokenHash:  tokenHash,
		DeviceInfo: tokendomain.TruncateDeviceInfo(deviceInfo),
		IPAddress:  ip,
		ExpiresAt:  expiresAt,
		CreatedAt:  s.now(),
	}
	if err := s.tokenRepo.CreateRefreshToken(ctx, rec); err != nil {
		return nil, apperr.FromError(err)
	}
	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email", "email is required")
	}
	if !emailPattern.MatchString(email) {
		return apperr.Validation("email", "invalid email format")
	}
	return nil
}
