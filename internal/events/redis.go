package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"plan-chat-backend/internal/models"
)

// RedisBus shares chat events between server processes over Redis pub/sub.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, event models.ChatEvent) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, Topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan models.ChatEvent, error) {
	pubsub := b.client.Subscribe(ctx, Topic)
	// Wait for the subscription to be confirmed so no event published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Topic, err)
	}

	out := make(chan models.ChatEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				event, err := decode([]byte(msg.Payload))
				if err != nil {
					log.Warn().Err(err).Msg("dropping malformed chat event")
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBus) Close() error {
	return nil
}

var _ Bus = (*RedisBus)(nil)
