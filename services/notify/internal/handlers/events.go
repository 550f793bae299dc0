package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudmarket/backend/pkg/events"
	"github.com/cloudmarket/backend/pkg/logger"
	"github.com/cloudmarket/backend/pkg/telegram"
)

const queueGroup = "notify"

type Sender interface {
	SendMessage(ctx context.Context, p telegram.SendMessageParams) (*telegram.Message, error)
}

type ChatResolver interface {
	ChatHandleForAccount(ctx context.Context, accountID int64) (string, error)
}

// EventHandlers turns domain events into chat messages. A nil sender logs
// the message instead of sending it.
type EventHandlers struct {
	chats   ChatResolver
	sender  Sender
	timeout time.Duration
}

func New(chats ChatResolver, sender Sender, timeout time.Duration) *EventHandlers {
	return &EventHandlers{chats: chats, sender: sender, timeout: timeout}
}

func (h *EventHandlers) Register(sub events.Subscriber) error {
	if err := sub.QueueSubscribe(events.ItemClaimed, queueGroup, h.ItemClaimed); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.ItemClaimed, err)
	}
	if err := sub.QueueSubscribe(events.AccountLoggedIn, queueGroup, h.AccountLoggedIn); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.AccountLoggedIn, err)
	}
	if err := sub.QueueSubscribe(events.ItemMinted, queueGroup, h.ItemMinted); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.ItemMinted, err)
	}
	return nil
}

func (h *EventHandlers) ItemClaimed(msg *events.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var evt events.ItemClaimedEvent
	if err := msg.Decode(&evt); err != nil {
		logger.Error("Dropping malformed event", "error", err, "msg_id", msg.ID)
		return
	}

	chat, err := h.chats.ChatHandleForAccount(ctx, evt.AccountID)
	if err != nil {
		logger.Error("Failed to resolve chat", "error", err, "account_id", evt.AccountID)
		return
	}
	if chat == "" {
		logger.Debug("Account has no linked chat", "account_id", evt.AccountID)
		return
	}

	text := claimText(evt)
	if h.sender == nil {
		logger.Info("Telegram disabled, not sending", "chat_id", chat, "text", text)
		return
	}

	if _, err := h.sender.SendMessage(ctx, telegram.SendMessageParams{ChatID: chat, Text: text}); err != nil {
		logger.Error("Failed to send claim confirmation", "error", err, "account_id", evt.AccountID)
		return
	}
	logger.Info("Claim confirmation sent", "account_id", evt.AccountID, "item_id", evt.ItemID)
}

func (h *EventHandlers) AccountLoggedIn(msg *events.Message) {
	var evt events.AccountLoggedInEvent
	if err := msg.Decode(&evt); err != nil {
		logger.Error("Dropping malformed event", "error", err, "msg_id", msg.ID)
		return
	}
	logger.Info("Account logged in",
		"account_id", evt.AccountID,
		"method", evt.Method,
		"provisioned", evt.Provisioned,
		"at", evt.At,
	)
}

func (h *EventHandlers) ItemMinted(msg *events.Message) {
	var evt events.ItemMintedEvent
	if err := msg.Decode(&evt); err != nil {
		logger.Error("Dropping malformed event", "error", err, "msg_id", msg.ID)
		return
	}
	logger.Info("Mint batch recorded",
		"product_id", evt.ProductID,
		"size", evt.Size,
		"minted", evt.Minted,
		"rotated", evt.Rotated,
		"skipped", evt.Skipped,
		"failed", evt.Failed,
	)
}

func claimText(evt events.ItemClaimedEvent) string {
	return fmt.Sprintf("Item added to your collection.\nItem ID: %s\nClaimed at %s UTC",
		evt.ItemID, evt.ClaimedAt.UTC().Format("2006-01-02 15:04"))
}
