package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	userChannelPrefix = "notify:user:"
	broadcastChannel  = "notify:broadcast"
)

// backplaneFrame carries one push event across instances.
type backplaneFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Backplane routes push events between gateway instances over redis
// pub/sub, so a fan-out processed on one instance reaches connections held
// by another.
type Backplane struct {
	rdb    *redis.Client
	hub    *Hub
	logger *zap.Logger
}

func NewBackplane(rdb *redis.Client, hub *Hub, logger *zap.Logger) *Backplane {
	return &Backplane{rdb: rdb, hub: hub, logger: logger}
}

// EmitToUser publishes the event to the user channel. Every instance,
// including this one, picks it up via the subscription.
func (b *Backplane) EmitToUser(userID string, event string, payload interface{}) {
	b.publish(context.Background(), userChannelPrefix+userID, event, payload)
}

func (b *Backplane) Broadcast(event string, payload interface{}) {
	b.publish(context.Background(), broadcastChannel, event, payload)
}

func (b *Backplane) publish(ctx context.Context, channel, event string, payload interface{}) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("Failed to marshal backplane payload", zap.String("event", event), zap.Error(err))
		return
	}
	frame, err := json.Marshal(backplaneFrame{Event: event, Payload: payloadJSON})
	if err != nil {
		b.logger.Error("Failed to marshal backplane frame", zap.String("event", event), zap.Error(err))
		return
	}

	if err := b.rdb.Publish(ctx, channel, frame).Err(); err != nil {
		b.logger.Error("Failed to publish backplane frame",
			zap.String("channel", channel),
			zap.Error(err),
		)
	}
}

// Listen subscribes to the user channel pattern and the broadcast channel
// and forwards frames to the local hub. Blocks until ctx is cancelled.
func (b *Backplane) Listen(ctx context.Context) error {
	pubsub := b.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	defer pubsub.Close()

	if err := pubsub.Subscribe(ctx, broadcastChannel); err != nil {
		return fmt.Errorf("failed to subscribe to broadcast channel: %w", err)
	}

	b.logger.Info("Backplane listening",
		zap.String("pattern", userChannelPrefix+"*"),
		zap.String("broadcast", broadcastChannel),
	)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(msg)
		}
	}
}

func (b *Backplane) dispatch(msg *redis.Message) {
	var frame backplaneFrame
	if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
		b.logger.Warn("Dropping malformed backplane frame",
			zap.String("channel", msg.Channel),
			zap.Error(err),
		)
		return
	}

	if msg.Channel == broadcastChannel {
		b.hub.Broadcast(frame.Event, frame.Payload)
		return
	}

	userID := strings.TrimPrefix(msg.Channel, userChannelPrefix)
	if userID == "" || userID == msg.Channel {
		return
	}
	b.hub.EmitToUser(userID, frame.Event, frame.Payload)
}
