package messenger

import (
	"context"
	"time"

	"github.com/cloudmarket/backend/pkg/logger"
	"github.com/cloudmarket/backend/pkg/phone"
)

// DevMessenger logs login codes instead of sending them. Use it only where
// operators are allowed to read codes from logs.
type DevMessenger struct{}

func NewDevMessenger() *DevMessenger {
	return &DevMessenger{}
}

func (d *DevMessenger) SendLoginCode(ctx context.Context, to Recipient, code string, ttl time.Duration) error {
	logger.WarnContext(ctx, "[DEV MESSENGER] login code",
		"phone", phone.Mask(to.Phone),
		"chat", to.ChatHandle,
		"code", code,
		"ttl", ttl.String(),
	)
	return nil
}
