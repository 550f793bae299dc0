// Package codes holds the secret-handling primitives shared by the OTP and
// claim-code flows: digesting, constant-time comparison, Luhn checksums and
// random numeric code generation.
package codes

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Hash returns the lowercase hex SHA-256 digest of plaintext.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Equal compares two digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Matches reports whether plaintext hashes to digest.
func Matches(plaintext, digest string) bool {
	return Equal(Hash(plaintext), digest)
}
