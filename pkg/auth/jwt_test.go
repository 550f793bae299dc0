package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "unit-test-secret"

func TestServiceTokenRoundTrip(t *testing.T) {
	token, err := NewServiceToken("ops@cloudmarket", []string{ScopeMint, "items:read"}, secret, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "ops@cloudmarket", claims.Subject)
	assert.True(t, claims.HasScope(ScopeMint))
	assert.True(t, claims.HasScope("items:read"))
	assert.False(t, claims.HasScope("items"))
}

func TestParseRejects(t *testing.T) {
	expired, err := NewServiceToken("ops", []string{ScopeMint}, secret, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	valid, err := NewServiceToken("ops", []string{ScopeMint}, secret, time.Hour)
	require.NoError(t, err)
	_, err = Parse(valid, "other-secret")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	wrongAud := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Scope: ScopeMint,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  []string{"someone-else"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := wrongAud.SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = Parse(signed, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)

	_, err = Parse("garbage", secret)
	assert.Error(t, err)
}
