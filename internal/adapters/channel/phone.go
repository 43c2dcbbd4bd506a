package channel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPhone is returned when a destination cannot be normalised to E.164.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone converts raw to +<country><national>.
//
// Separators (space, dash, dot, parentheses) are stripped. A leading 00 is an
// international prefix. A leading 0 is a national trunk prefix and is replaced
// by defaultCountry. Bare numbers of national length get defaultCountry too.
func NormalizePhone(raw, defaultCountry string) (string, error) {
	cc := strings.TrimPrefix(strings.TrimSpace(defaultCountry), "+")

	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
		}
	}
	s := b.String()

	var digits string
	switch {
	case strings.HasPrefix(s, "+"):
		digits = s[1:]
	case strings.HasPrefix(s, "00"):
		digits = s[2:]
	case strings.HasPrefix(s, "0"):
		digits = cc + s[1:]
	case len(s) <= nationalMaxDigits:
		digits = cc + s
	default:
		digits = s
	}

	if len(digits) < 8 || len(digits) > 15 || strings.HasPrefix(digits, "0") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return "+" + digits, nil
}

// nationalMaxDigits is the longest number treated as lacking a country code.
const nationalMaxDigits = 10
