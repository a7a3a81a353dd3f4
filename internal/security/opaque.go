package security

import (
	"crypto/rand"
	"encoding/base64"
)

// OpaqueTokenLength is the number of random bytes in a generated opaque
// token (32 bytes = 256 bits).
const OpaqueTokenLength = 32

// GenerateOpaqueToken returns a URL-safe random token for single-use links
// (magic login, password reset). Only its SHA-256 hash is ever persisted.
func GenerateOpaqueToken() (string, error) {
	b := make([]byte, OpaqueTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
