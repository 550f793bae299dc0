package messenger

import (
	"context"
	"errors"
	"time"
)

var ErrNoChatHandle = errors.New("recipient has no linked chat")

type Recipient struct {
	Phone      string
	ChatHandle string
}

type Service interface {
	SendLoginCode(ctx context.Context, to Recipient, code string, ttl time.Duration) error
}
