package domain

import (
	"strings"
	"time"
)

// Challenge is an issued OTP awaiting verification. Only the hash of the
// code is ever stored.
type Challenge struct {
	ID         int64      `json:"id"`
	Phone      string     `json:"phone"`
	CodeHash   string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Consumed   bool       `json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// Expired reports whether now is past the expiry instant. A code presented
// exactly at ExpiresAt is still accepted.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

type OTPRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
}

type OTPVerify struct {
	Phone string `json:"phone" validate:"required,max=32"`
	Code  string `json:"code" validate:"required,numeric,max=6"`
}

func (r *OTPRequest) Normalize() {
	r.Phone = strings.TrimSpace(r.Phone)
}

func (r *OTPVerify) Normalize() {
	r.Phone = strings.TrimSpace(r.Phone)
	r.Code = strings.TrimSpace(r.Code)
}
