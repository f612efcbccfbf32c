package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"

	"plan-chat-backend/internal/models"
)

const subscriberBuffer = 64

// ChannelBus is an in-process Bus backed by a watermill Go channel pub/sub.
// Publish returns once every subscriber has buffered the event, which keeps
// events in publish order. A subscriber that stops reading applies
// backpressure: once its buffer is full, Publish blocks until it drains or
// its subscription ends. Events published while nobody is subscribed are
// dropped.
type ChannelBus struct {
	pubSub *gochannel.GoChannel
}

func NewChannelBus() *ChannelBus {
	return &ChannelBus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            subscriberBuffer,
			BlockPublishUntilSubscriberAck: true,
		}, newZerologAdapter(log.Logger)),
	}
}

func (b *ChannelBus) Publish(ctx context.Context, event models.ChatEvent) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return b.pubSub.Publish(Topic, msg)
}

func (b *ChannelBus) Subscribe(ctx context.Context) (<-chan models.ChatEvent, error) {
	messages, err := b.pubSub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, err
	}

	out := make(chan models.ChatEvent, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range messages {
			event, err := decode(msg.Payload)
			if err != nil {
				msg.Ack()
				log.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed chat event")
				continue
			}

			// Ack only once the event is handed over so a full buffer
			// holds the publisher back.
			select {
			case out <- event:
				msg.Ack()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *ChannelBus) Close() error {
	return b.pubSub.Close()
}

var _ Bus = (*ChannelBus)(nil)
