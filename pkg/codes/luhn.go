package codes

import (
	"errors"
	"strings"
)

const (
	// ClaimCodeLength is the number of digits printed on an item tag,
	// check digit included.
	ClaimCodeLength = 10
	claimBaseLength = ClaimCodeLength - 1
)

var ErrInvalidFormat = errors.New("invalid format")

// LuhnCheckDigit returns the digit that completes base into a Luhn-valid
// claim code. base must be exactly nine decimal digits.
func LuhnCheckDigit(base string) (byte, error) {
	if len(base) != claimBaseLength || !allDigits(base) {
		return 0, ErrInvalidFormat
	}
	// The check digit will sit to the right of base, so the rightmost base
	// digit is the first one doubled.
	sum := luhnSum(base, true)
	return byte('0' + (10-sum%10)%10), nil
}

// LuhnValid reports whether code satisfies the Luhn relation. Input that is
// not exactly ten decimal digits yields ErrInvalidFormat; a well-formed code
// with a bad check digit is simply false.
func LuhnValid(code string) (bool, error) {
	if len(code) != ClaimCodeLength || !allDigits(code) {
		return false, ErrInvalidFormat
	}
	return luhnSum(code, false)%10 == 0, nil
}

func luhnSum(digits string, doubleRightmost bool) int {
	sum := 0
	double := doubleRightmost
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum
}

// Digits drops every non-digit rune from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
