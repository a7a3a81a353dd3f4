package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"membergate/api/internal/apperr"
)

// AccessClaims holds JWT claims for the access token. Everything a caller
// needs to authorize a request is embedded here; validity is never looked
// up server-side.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email            string `json:"email"`
	Role             string `json:"role"`
	MembershipStatus string `json:"membership_status"`
	MembershipTier   string `json:"membership_tier"`
}

// RefreshClaims holds JWT claims for the refresh token. The signature is
// necessary but not sufficient: the persisted record's state is also checked
// on refresh, because signature validity does not reflect revocation.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// AccessProfile is the identity snapshot embedded into an access token.
type AccessProfile struct {
	UserID           string
	Email            string
	Role             string
	MembershipStatus string
	MembershipTier   string
}

// TokenProvider issues and validates HS256-signed access and refresh tokens.
type TokenProvider struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider signing with the given secret.
// issuer is set on claims and validated on verification.
func NewTokenProvider(secret []byte, issuer string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		secret:     secret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the provider's clock. For tests.
func (p *TokenProvider) WithNow(now func() time.Time) *TokenProvider {
	p.now = now
	return p
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess issues a short-lived access JWT carrying the profile.
// Returns the signed token and its expiration time.
func (p *TokenProvider) IssueAccess(profile AccessProfile) (token string, expiresAt time.Time, err error) {
	now := p.now()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "at_" + uuid.New().String(),
			Subject:   profile.UserID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:            profile.Email,
		Role:             profile.Role,
		MembershipStatus: profile.MembershipStatus,
		MembershipTier:   profile.MembershipTier,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT for the user. Returns the
// token, the SHA-256 hash to persist (the raw token is never stored), and
// the expiration time.
func (p *TokenProvider) IssueRefresh(userID string) (token, tokenHash string, expiresAt time.Time, err error) {
	now := p.now()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "rt_" + uuid.New().String(),
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, HashToken(token), expiresAt, nil
}

// ValidateAccess parses and validates an access token (signature, exp, iss).
// Fails closed: any mismatch yields apperr.ErrInvalidCredentials; a valid
// signature past its expiry yields apperr.ErrTokenExpired.
func (p *TokenProvider) ValidateAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateRefresh parses and validates a refresh token (signature, exp, iss).
func (p *TokenProvider) ValidateRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (p *TokenProvider) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, apperr.ErrInvalidCredentials
			}
			return p.secret, nil
		},
		jwt.WithIssuer(p.issuer),
		jwt.WithTimeFunc(p.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return apperr.ErrTokenExpired
		}
		return apperr.ErrInvalidCredentials
	}
	if !token.Valid {
		return apperr.ErrInvalidCredentials
	}
	return nil
}
