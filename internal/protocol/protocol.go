// Package protocol holds the token validation rules shared by the socket
// grammars. Subpackages implement one vendor grammar each.
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/motorsim/motorsim/internal/dispatcher"
)

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsNumber reports whether s is an integer with an optional leading '-'.
func IsNumber(s string) bool {
	return IsDigits(strings.TrimPrefix(s, "-"))
}

// Int parses an integer token. Tokens failing IsNumber are rejected with
// dispatcher.ErrNonNumericParameter.
func Int(s string) (int, error) {
	if !IsNumber(s) {
		return 0, fmt.Errorf("%w: %q", dispatcher.ErrNonNumericParameter, s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", dispatcher.ErrNonNumericParameter, s)
	}
	return n, nil
}

// Unsigned parses a digits-only token.
func Unsigned(s string) (int, error) {
	if !IsDigits(s) {
		return 0, fmt.Errorf("%w: %q", dispatcher.ErrNonNumericParameter, s)
	}
	return Int(s)
}

// FormatPosition renders a position the way the controllers print it: the
// shortest decimal form, with no exponent.
func FormatPosition(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
