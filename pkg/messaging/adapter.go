package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/slotbook/booking-api/internal/model"
)

const DefaultChannelPrefix = "booking"

// Envelope is what subscribers receive for every outbox event.
type Envelope struct {
	ID      uuid.UUID       `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EventPublisher publishes outbox events on "<prefix>.<event type>".
type EventPublisher struct {
	broker Broker
	prefix string
}

func NewEventPublisher(broker Broker, prefix string) *EventPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &EventPublisher{broker: broker, prefix: prefix}
}

func (p *EventPublisher) Channel(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *EventPublisher) PublishEvent(ctx context.Context, event *model.OutboxEvent) error {
	body, err := json.Marshal(Envelope{
		ID:      event.ID,
		Type:    event.EventType,
		Payload: event.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return p.broker.Publish(ctx, p.Channel(event.EventType), body)
}

// Subscribe decodes envelopes for eventType and hands them to handler until
// ctx is done. Undecodable messages and handler errors go to onError.
func (p *EventPublisher) Subscribe(ctx context.Context, eventType string, handler func(Envelope) error, onError func(error)) error {
	msgs, err := p.broker.Subscribe(ctx, p.Channel(eventType))
	if err != nil {
		return err
	}
	if onError == nil {
		onError = func(error) {}
	}

	go func() {
		for msg := range msgs {
			var env Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				onError(fmt.Errorf("failed to decode envelope: %w", err))
				continue
			}
			if err := handler(env); err != nil {
				onError(err)
			}
		}
	}()
	return nil
}

func (p *EventPublisher) Close() error {
	return p.broker.Close()
}
