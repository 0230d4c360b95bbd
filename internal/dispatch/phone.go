package dispatch

import (
	"fmt"
	"strings"
)

// NormalizePhone canonicalizes a recipient phone number.
//
// This is a regional business rule for Indian mobile numbers, not a general
// phone-number library: a bare 10-digit number with a 6-9 leading digit gets
// the "91" country code, a 0-prefixed 11-digit number has the trunk zero
// replaced by "91", and anything longer than 10 digits is assumed to be
// internationally formatted already.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n := digits.String()

	if len(n) < 10 || len(n) > 15 {
		return "", fmt.Errorf("invalid phone number %q: expected 10-15 digits, got %d", raw, len(n))
	}
	if len(n) > 11 {
		return n, nil
	}
	if len(n) == 11 {
		if n[0] == '0' {
			return "91" + n[1:], nil
		}
		return n, nil
	}
	// Exactly 10 digits.
	switch n[0] {
	case '6', '7', '8', '9':
		return "91" + n, nil
	}
	return n, nil
}
