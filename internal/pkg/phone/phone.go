// Package phone normalizes and validates phone numbers.
package phone

import (
	"context"
	"strings"
)

// Checker validates a phone number and returns its canonical form.
// Production deployments back this with a carrier lookup service; the
// engine only normalizes and forwards.
type Checker interface {
	Check(ctx context.Context, phone string) (valid bool, canonical string, err error)
}

// Normalize strips formatting characters (spaces, dashes, parentheses)
// so that differently formatted submissions of the same number collapse
// to one store key.
func Normalize(p string) string {
	r := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	return r.Replace(p)
}

// StaticChecker validates shape only: an optional leading +, then 7-15
// digits (E.164 bounds). It performs no carrier lookup.
type StaticChecker struct{}

func (StaticChecker) Check(_ context.Context, p string) (bool, string, error) {
	c := Normalize(p)
	digits := c
	if strings.HasPrefix(digits, "+") {
		digits = digits[1:]
	}
	if len(digits) < 7 || len(digits) > 15 {
		return false, "", nil
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false, "", nil
		}
	}
	return true, c, nil
}
