// Package code generates short numeric one-time codes.
package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var ten = big.NewInt(10)

// Numeric returns a code of n digits, each drawn uniformly from 0-9.
// Codes are not unique across identifiers; collisions between different
// phone numbers are expected and harmless since records are keyed by phone.
func Numeric(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code digit: %w", err)
		}
		b[i] = '0' + byte(d.Int64())
	}
	return string(b), nil
}

// IsNumeric reports whether s is exactly n ASCII digits.
func IsNumeric(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
