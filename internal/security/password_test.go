package security

import (
	"errors"
	"testing"

	"membergate/api/internal/apperr"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4) // min cost to keep the test fast
	hash, err := h.Hash([]byte("SecurePassword123!"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := h.Compare(hash, []byte("SecurePassword123!")); err != nil {
		t.Errorf("Compare matching password: %v", err)
	}
	if err := h.Compare(hash, []byte("wrong-password")); err == nil {
		t.Error("Compare wrong password: want error")
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "SecurePass123!", true},
		{"too short", "Short1!", false},
		{"no uppercase", "lowercasepass123!", false},
		{"no lowercase", "UPPERCASEPASS123!", false},
		{"no digit", "NoDigitsInHere!!", false},
		{"no special", "NoSpecial12345", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tc.password)
			if tc.ok && err != nil {
				t.Errorf("want ok, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("want error, got nil")
				}
				var appErr *apperr.Error
				if !errors.As(err, &appErr) || appErr.Code != apperr.CodeValidation {
					t.Errorf("want validation error, got %v", err)
				}
			}
		})
	}
}

func TestValidatePasswordNotContainsEmail(t *testing.T) {
	if err := ValidatePasswordNotContainsEmail("JohnDoe123!pass", "johndoe@example.com"); err == nil {
		t.Error("password containing email local part: want error")
	}
	if err := ValidatePasswordNotContainsEmail("SecurePass123!", "johndoe@example.com"); err != nil {
		t.Errorf("clean password: %v", err)
	}
	// Short local parts are not checked to avoid false positives.
	if err := ValidatePasswordNotContainsEmail("abSecurePass123!", "ab@example.com"); err != nil {
		t.Errorf("short local part: %v", err)
	}
}
