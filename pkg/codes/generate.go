package codes

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewNumeric returns a uniformly random string of length decimal digits.
// Leading zeros are kept, so "0042" is a valid four digit code.
func NewNumeric(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}
	buf := make([]byte, length)
	ten := big.NewInt(10)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to read random digit: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

// NewClaimCode returns a random ten digit code whose last digit is the Luhn
// check digit of the first nine.
func NewClaimCode() (string, error) {
	base, err := NewNumeric(claimBaseLength)
	if err != nil {
		return "", err
	}
	check, err := LuhnCheckDigit(base)
	if err != nil {
		return "", err
	}
	return base + string(check), nil
}
