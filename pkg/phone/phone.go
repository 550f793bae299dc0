package phone

import (
	"errors"
	"strings"
	"unicode"
)

const (
	minDigits = 10
	maxDigits = 15
)

var ErrInvalidPhone = errors.New("invalid phone number")

// Canonicalize turns user input such as "8 (999) 123-45-67" into the stored
// form "+79991234567". Russian trunk prefixes are rewritten to country code 7:
// eleven digits starting with 8 become 7..., and a bare ten digit national
// number gets 7 prepended.
func Canonicalize(input string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(input) {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 11 && digits[0] == '8':
		digits = "7" + digits[1:]
	case len(digits) == 10:
		digits = "7" + digits
	}

	if len(digits) < minDigits || len(digits) > maxDigits || digits[0] == '0' {
		return "", ErrInvalidPhone
	}
	return "+" + digits, nil
}

// Mask hides all but the last four digits for logging.
func Mask(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
