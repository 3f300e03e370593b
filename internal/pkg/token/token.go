package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// verificationTokenLen is the hex length of an email verification token:
// 32 random bytes, 256 bits of entropy. There is no attempt limit on email
// verification, so the token itself must resist offline guessing.
const verificationTokenLen = 64

// NewRefreshToken generates a cryptographically random 64-character hex token.
func NewRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewVerificationToken generates an email verification token.
func NewVerificationToken() (string, error) {
	b := make([]byte, verificationTokenLen/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IsWellFormed reports whether s has the shape of a verification token.
// Malformed input is rejected before any store lookup.
func IsWellFormed(s string) bool {
	if len(s) != verificationTokenLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
