// Package notify broadcasts state changes to event subscribers. Delivery
// is fire-and-forget: the core never waits on or orders notifications.
// The Redis implementation bridges worker processes to the API server's
// WebSocket hub.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Channel is the pub/sub channel shared by all processes.
const Channel = "community_capital:notifications"

// Message types, mirrored by WebSocket clients.
const (
	TypeEventCreated        = "eventCreated"
	TypeParticipantJoined   = "participantJoined"
	TypeItemsClaimed        = "itemsClaimed"
	TypePaymentProcessing   = "paymentProcessing"
	TypePaymentCompleted    = "paymentCompleted"
	TypePaymentFailed       = "paymentFailed"
	TypeSettlementCompleted = "settlementCompleted"
	TypeSettlementFailed    = "settlementFailed"
)

// Message is one broadcast. EventID routes to everyone subscribed to the
// event; UserID (when set) routes to that user only.
type Message struct {
	Type    string                 `json:"type"`
	EventID uint                   `json:"event_id,omitempty"`
	UserID  uint                   `json:"user_id,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Notifier publishes messages. Implementations must never block the
// caller on subscriber delivery.
type Notifier interface {
	Publish(ctx context.Context, msg Message) error
}

// RedisNotifier publishes over Redis pub/sub.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, Channel, data).Err()
}

// Subscribe returns a channel of decoded messages. It closes when the
// context is canceled.
func Subscribe(ctx context.Context, client *redis.Client) <-chan Message {
	sub := client.Subscribe(ctx, Channel)
	out := make(chan Message, 64)

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case raw, ok := <-sub.Channel():
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					slog.Warn("dropping malformed notification", "error", err)
					continue
				}
				select {
				case out <- msg:
				default:
					slog.Warn("notification subscriber lagging, dropping message", "type", msg.Type)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
