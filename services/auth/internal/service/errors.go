package service

import "errors"

var (
	ErrInvalidPhone   = errors.New("invalid phone number")
	ErrInvalidPayload = errors.New("phone and code are required")
	ErrCodeNotFound   = errors.New("no pending code for this phone")
	ErrWrongCode      = errors.New("wrong code")
	ErrCodeExpired    = errors.New("code expired")
	ErrRateLimited    = errors.New("too many attempts")

	ErrInvalidTelegramLogin = errors.New("invalid telegram login")
	ErrTelegramLoginExpired = errors.New("telegram login expired")
	ErrAccountNotFound      = errors.New("account not found")
)
