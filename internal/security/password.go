package security

import (
	"strings"
	"unicode"

	"membergate/api/internal/apperr"
)

const (
	passwordMinLength = 12
	passwordMaxLength = 128
)

// ValidatePasswordStrength checks length and character-class requirements.
// Returns a validation error naming the failed rule.
func ValidatePasswordStrength(password string) error {
	if len(password) < passwordMinLength {
		return apperr.Validation("password", "password must be at least 12 characters")
	}
	if len(password) > passwordMaxLength {
		return apperr.Validation("password", "password must be at most 128 characters")
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasUpper {
		return apperr.Validation("password", "password must contain at least one uppercase letter")
	}
	if !hasLower {
		return apperr.Validation("password", "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		return apperr.Validation("password", "password must contain at least one number")
	}
	if !hasSpecial {
		return apperr.Validation("password", "password must contain at least one special character")
	}
	return nil
}

// ValidatePasswordNotContainsEmail rejects passwords containing the local
// part of the user's email (4+ characters, case-insensitive).
func ValidatePasswordNotContainsEmail(password, email string) error {
	local, _, _ := strings.Cut(email, "@")
	if len(local) >= 4 && strings.Contains(strings.ToLower(password), strings.ToLower(local)) {
		return apperr.Validation("password", "password cannot contain your email address")
	}
	return nil
}
