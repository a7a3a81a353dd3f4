package security

import (
	"errors"
	"testing"
	"time"

	"membergate/api/internal/apperr"
)

func newTestProvider() *TokenProvider {
	return NewTokenProvider([]byte("test-secret-key-12345"), "membergate", 15*time.Minute, 30*24*time.Hour)
}

func testProfile() AccessProfile {
	return AccessProfile{
		UserID:           "u1",
		Email:            "test@example.com",
		Role:             "subscriber",
		MembershipStatus: "active",
		MembershipTier:   "personal",
	}
}

func TestTokenProvider_IssueAndValidateAccess(t *testing.T) {
	p := newTestProvider()

	token, exp, err := p.IssueAccess(testProfile())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" {
		t.Fatal("access token empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	claims, err := p.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "test@example.com" || claims.Role != "subscriber" {
		t.Errorf("ValidateAccess: got sub=%q email=%q role=%q", claims.Subject, claims.Email, claims.Role)
	}
	if claims.Issuer != "membergate" {
		t.Errorf("issuer: got %q", claims.Issuer)
	}
}

func TestTokenProvider_IssueRefreshReturnsHash(t *testing.T) {
	p := newTestProvider()

	token, hash, exp, err := p.IssueRefresh("u1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if token == "" || hash == "" {
		t.Fatal("refresh token or hash empty")
	}
	if hash != HashToken(token) {
		t.Error("returned hash does not match HashToken of the raw token")
	}
	if exp.Before(time.Now().Add(29 * 24 * time.Hour)) {
		t.Error("refresh expiry shorter than configured TTL")
	}

	claims, err := p.ValidateRefresh(token)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("subject: got %q", claims.Subject)
	}
}

func TestTokenProvider_ValidateInvalid(t *testing.T) {
	p := newTestProvider()

	if _, err := p.ValidateAccess("not-a-token"); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("malformed token: want ErrInvalidCredentials, got %v", err)
	}

	other := NewTokenProvider([]byte("a-different-secret"), "membergate", time.Minute, time.Hour)
	token, _, err := other.IssueAccess(testProfile())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.ValidateAccess(token); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("wrong key: want ErrInvalidCredentials, got %v", err)
	}
}

func TestTokenProvider_ValidateWrongIssuer(t *testing.T) {
	p := newTestProvider()
	other := NewTokenProvider([]byte("test-secret-key-12345"), "someone-else", time.Minute, time.Hour)

	token, _, err := other.IssueAccess(testProfile())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.ValidateAccess(token); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("issuer mismatch: want ErrInvalidCredentials, got %v", err)
	}
}

func TestTokenProvider_ValidateExpired(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProvider().WithNow(func() time.Time { return base })

	token, _, err := p.IssueAccess(testProfile())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	p.WithNow(func() time.Time { return base.Add(16 * time.Minute) })
	if _, err := p.ValidateAccess(token); !errors.Is(err, apperr.ErrTokenExpired) {
		t.Errorf("expired token: want ErrTokenExpired, got %v", err)
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("some-token")
	h2 := HashToken("some-token")
	if h1 != h2 {
		t.Error("hash is not deterministic")
	}
	if h1 == "some-token" || len(h1) != 64 {
		t.Errorf("unexpected hash %q", h1)
	}
	if !TokenHashEqual("some-token", h1) {
		t.Error("TokenHashEqual: want match")
	}
	if TokenHashEqual("other-token", h1) {
		t.Error("TokenHashEqual: want mismatch")
	}
}

func TestGenerateOpaqueToken(t *testing.T) {
	t1, err := GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("GenerateOpaqueToken: %v", err)
	}
	t2, err := GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("GenerateOpaqueToken: %v", err)
	}
	if t1 == t2 {
		t.Error("two generated tokens are identical")
	}
	if len(t1) < 40 {
		t.Errorf("token too short: %d", len(t1))
	}
}
