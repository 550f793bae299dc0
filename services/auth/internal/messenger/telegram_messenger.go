package messenger

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudmarket/backend/pkg/telegram"
)

type TelegramMessenger struct {
	client *telegram.Client
}

func NewTelegramMessenger(client *telegram.Client) *TelegramMessenger {
	return &TelegramMessenger{client: client}
}

func (m *TelegramMessenger) SendLoginCode(ctx context.Context, to Recipient, code string, ttl time.Duration) error {
	if to.ChatHandle == "" {
		return ErrNoChatHandle
	}
	_, err := m.client.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:    to.ChatHandle,
		Text:      loginCodeText(code, ttl),
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("failed to send login code: %w", err)
	}
	return nil
}

func loginCodeText(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your login code: *%s*\nIt is valid for %d minutes. If you did not request it, ignore this message.",
		code, int(ttl.Minutes()))
}
