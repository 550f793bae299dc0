// Package session issues and verifies the opaque bearer tokens handed to a
// browser after a successful login.
//
// A token is base64url(JSON payload) + "." + base64url(HMAC-SHA256 over the
// encoded payload). Rotating the secret invalidates every outstanding token.
package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const separator = "."

// Strict decoding rejects non-zero trailing bits, so two different
// signature strings never decode to the same bytes.
var encoding = base64.RawURLEncoding.Strict()

var ErrEmptySecret = errors.New("session secret must not be empty")

type Payload struct {
	AccountID   int64  `json:"uid"`
	DisplayName string `json:"u,omitempty"`
	IssuedAt    int64  `json:"iat,omitempty"`
	// ExpiresAt is a unix timestamp. Zero means the token never expires.
	ExpiresAt int64 `json:"exp,omitempty"`
}

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source. Intended for tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

func (s *Signer) TTL() time.Duration { return s.ttl }

// Issue stamps iat and, when the signer has a TTL, exp before signing.
func (s *Signer) Issue(accountID int64, displayName string) (string, Payload, error) {
	now := s.now()
	p := Payload{
		AccountID:   accountID,
		DisplayName: displayName,
		IssuedAt:    now.Unix(),
	}
	if s.ttl > 0 {
		p.ExpiresAt = now.Add(s.ttl).Unix()
	}
	token, err := s.Sign(p)
	if err != nil {
		return "", Payload{}, err
	}
	return token, p, nil
}

// Sign encodes p exactly as given.
func (s *Signer) Sign(p Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode session payload: %w", err)
	}
	encoded := encoding.EncodeToString(raw)

	sig, err := jwt.SigningMethodHS256.Sign(encoded, s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session payload: %w", err)
	}
	return encoded + separator + encoding.EncodeToString(sig), nil
}

// Verify returns the payload of a well-signed, unexpired token. Any other
// input, including the empty string, yields false.
func (s *Signer) Verify(token string) (Payload, bool) {
	encoded, encodedSig, ok := strings.Cut(token, separator)
	if !ok || encoded == "" || encodedSig == "" || strings.Contains(encodedSig, separator) {
		return Payload{}, false
	}
	sig, err := encoding.DecodeString(encodedSig)
	if err != nil {
		return Payload{}, false
	}
	// HMAC comparison inside Verify is constant time.
	if err := jwt.SigningMethodHS256.Verify(encoded, sig, s.secret); err != nil {
		return Payload{}, false
	}

	raw, err := encoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, false
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, false
	}
	if p.ExpiresAt != 0 && s.now().Unix() >= p.ExpiresAt {
		return Payload{}, false
	}
	return p, true
}
