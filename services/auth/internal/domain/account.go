package domain

import (
	"github.com/cloudmarket/backend/pkg/accounts"
	"github.com/cloudmarket/backend/pkg/session"
)

// AccountProfile is what the storefront sees about the logged in account.
type AccountProfile struct {
	ID             int64  `json:"id"`
	DisplayName    string `json:"display_name"`
	Username       string `json:"username,omitempty"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	PhotoURL       string `json:"photo_url,omitempty"`
	Phone          string `json:"phone,omitempty"`
	TelegramLinked bool   `json:"telegram_linked"`
}

func NewAccountProfile(a *accounts.Account) *AccountProfile {
	if a == nil {
		return nil
	}
	return &AccountProfile{
		ID:             a.ID,
		DisplayName:    a.DisplayName(),
		Username:       deref(a.Username),
		FirstName:      deref(a.FirstName),
		LastName:       deref(a.LastName),
		PhotoURL:       deref(a.PhotoURL),
		Phone:          deref(a.Phone),
		TelegramLinked: a.TelegramID != nil,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// LoginResult is returned by every successful login path. Account is nil
// when an OTP was verified for a phone with no account and provisioning is
// disabled; SessionToken is empty in that case.
type LoginResult struct {
	Account      *AccountProfile
	SessionToken string
	Session      session.Payload
	Provisioned  bool
}

type LoginResponse struct {
	OK           bool            `json:"ok"`
	SessionToken string          `json:"session_token"`
	ExpiresIn    int64           `json:"expires_in"`
	Account      *AccountProfile `json:"account"`
}
