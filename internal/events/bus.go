// Package events carries chat lifecycle notifications from the orchestrator
// to live listeners such as the websocket hub.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"plan-chat-backend/internal/models"
)

// Topic is the channel name chat events are published on.
const Topic = "chat_events"

type Bus interface {
	Publish(ctx context.Context, event models.ChatEvent) error
	// Subscribe streams events until ctx is cancelled or the bus is closed.
	Subscribe(ctx context.Context) (<-chan models.ChatEvent, error)
	Close() error
}

func encode(event models.ChatEvent) ([]byte, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}
	return b, nil
}

func decode(payload []byte) (models.ChatEvent, error) {
	var event models.ChatEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return models.ChatEvent{}, fmt.Errorf("failed to decode chat event: %w", err)
	}
	return event, nil
}

// zerologAdapter routes watermill's internal logging into zerolog.
type zerologAdapter struct {
	logger zerolog.Logger
}

func newZerologAdapter(logger zerolog.Logger) watermill.LoggerAdapter {
	return &zerologAdapter{logger: logger}
}

func (a *zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error().Fields(map[string]interface{}(fields)).Err(err).Msg(msg)
}

// Info is mapped to debug; watermill is chatty.
func (a *zerologAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a *zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a *zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (a *zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zerologAdapter{logger: a.logger.With().Fields(map[string]interface{}(fields)).Logger()}
}
