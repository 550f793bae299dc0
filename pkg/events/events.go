package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/cloudmarket/backend/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
}

type Subscriber interface {
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
}

type EventBus interface {
	Publisher
	Subscriber
	Close() error
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

// Decode unmarshals the JSON body of msg into v.
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", m.Subject, err)
	}
	return nil
}

const msgIDHeader = "Nats-Msg-Id"

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(msgIDHeader, uuid.NewString())

	logger.DebugContext(ctx, "Publishing event", "subject", subject)
	return n.conn.PublishMsg(msg)
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		id := msg.Header.Get(msgIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        id,
		})
	})
	return err
}

// Close drains pending messages before closing the connection.
func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

const (
	AccountLoggedIn = "auth.login"
	ItemMinted      = "items.minted"
	ItemClaimed     = "items.claimed"
)

const (
	LoginMethodOTP      = "otp"
	LoginMethodTelegram = "telegram"
)

type AccountLoggedInEvent struct {
	AccountID   int64     `json:"account_id"`
	Method      string    `json:"method"`
	Provisioned bool      `json:"provisioned"`
	At          time.Time `json:"at"`
}

type ItemMintedEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	Size      string    `json:"size"`
	Minted    int       `json:"minted"`
	Rotated   int       `json:"rotated"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	At        time.Time `json:"at"`
}

type ItemClaimedEvent struct {
	ItemID    uuid.UUID `json:"item_id"`
	AccountID int64     `json:"account_id"`
	ClaimedAt time.Time `json:"claimed_at"`
}
