package codes

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	// sha256("1234")
	assert.Equal(t, "03ac674216f3e15c761ee1a5e255f067953623c8b388b4459e13f978d7c846f4", Hash("1234"))
	assert.Len(t, Hash(""), 64)
	assert.NotEqual(t, Hash("1234"), Hash("1235"))
}

func TestMatches(t *testing.T) {
	digest := Hash("0042")
	assert.True(t, Matches("0042", digest))
	assert.False(t, Matches("42", digest))
	assert.False(t, Equal(digest, digest[:63]))
}

func TestLuhnCheckDigit(t *testing.T) {
	d, err := LuhnCheckDigit("123456789")
	require.NoError(t, err)
	assert.Equal(t, byte('7'), d)

	d, err = LuhnCheckDigit("000000000")
	require.NoError(t, err)
	assert.Equal(t, byte('0'), d)

	for _, bad := range []string{"", "12345678", "1234567890", "12345678a"} {
		_, err := LuhnCheckDigit(bad)
		assert.ErrorIs(t, err, ErrInvalidFormat, bad)
	}
}

func TestLuhnValid(t *testing.T) {
	ok, err := LuhnValid("1234567897")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = LuhnValid("1234567890")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, bad := range []string{"123456789", "12345678901", "12345-6789", "abcdefghij"} {
		_, err := LuhnValid(bad)
		assert.ErrorIs(t, err, ErrInvalidFormat, bad)
	}
}

func TestLuhnRoundTripAndSingleDigitDetection(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewClaimCode()
		require.NoError(t, err)
		require.Len(t, code, ClaimCodeLength)

		ok, err := LuhnValid(code)
		require.NoError(t, err)
		require.True(t, ok, code)

		// Every single-digit substitution must be caught.
		for pos := 0; pos < len(code); pos++ {
			for digit := byte('0'); digit <= '9'; digit++ {
				if code[pos] == digit {
					continue
				}
				corrupted := code[:pos] + string(digit) + code[pos+1:]
				ok, err := LuhnValid(corrupted)
				require.NoError(t, err)
				require.False(t, ok, fmt.Sprintf("%s -> %s", code, corrupted))
			}
		}
	}
}

func TestExhaustiveSmallBases(t *testing.T) {
	for n := 0; n < 5000; n++ {
		base := fmt.Sprintf("%09d", n*199999%1000000000)
		d, err := LuhnCheckDigit(base)
		require.NoError(t, err)
		ok, err := LuhnValid(base + string(d))
		require.NoError(t, err)
		require.True(t, ok, base)
	}
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "1234567897", Digits(" 1234-5678 97 "))
	assert.Equal(t, "", Digits("abc"))
	assert.Equal(t, "79991234567", Digits("+7 (999) 123-45-67"))
}

func TestNewNumeric(t *testing.T) {
	for _, length := range []int{4, 5, 6} {
		code, err := NewNumeric(length)
		require.NoError(t, err)
		assert.Len(t, code, length)
		assert.Empty(t, strings.Trim(code, "0123456789"))
	}

	_, err := NewNumeric(0)
	assert.Error(t, err)
}
