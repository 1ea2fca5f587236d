package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/booking-api/internal/model"
)

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestPublishEventUsesPrefixedChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewMemoryBroker()
	pub := NewEventPublisher(broker, "")
	assert.Equal(t, "booking.booking.created", pub.Channel(model.EventBookingCreated))

	ch, err := broker.Subscribe(ctx, "booking.booking.created")
	require.NoError(t, err)

	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: model.EventBookingCreated,
		Payload:   json.RawMessage(`{"booking_id":7}`),
	}
	require.NoError(t, pub.PublishEvent(ctx, event))

	var env Envelope
	require.NoError(t, json.Unmarshal(receive(t, ch), &env))
	assert.Equal(t, event.ID, env.ID)
	assert.Equal(t, model.EventBookingCreated, env.Type)
	assert.JSONEq(t, `{"booking_id":7}`, string(env.Payload))
}

func TestSubscribeDecodesEnvelopes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := NewEventPublisher(NewMemoryBroker(), "test")
	got := make(chan Envelope, 1)
	errs := make(chan error, 1)
	require.NoError(t, pub.Subscribe(ctx, model.EventBookingCancelled, func(env Envelope) error {
		got <- env
		return nil
	}, func(err error) { errs <- err }))

	require.NoError(t, pub.broker.Publish(ctx, "test.booking.cancelled", []byte("not json")))
	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "decode")
	case <-time.After(time.Second):
		t.Fatal("expected decode error")
	}

	require.NoError(t, pub.PublishEvent(ctx, &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: model.EventBookingCancelled,
		Payload:   json.RawMessage(`{}`),
	}))
	select {
	case env := <-got:
		assert.Equal(t, model.EventBookingCancelled, env.Type)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}

func TestMemoryBrokerLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	broker := NewMemoryBroker()

	ch, err := broker.Subscribe(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, broker.Publish(context.Background(), "b", []byte("other")))
	require.NoError(t, broker.Publish(context.Background(), "a", []byte("hello")))
	assert.Equal(t, []byte("hello"), receive(t, ch))

	cancel()
	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed on cancel")
	}

	require.NoError(t, broker.Close())
	require.NoError(t, broker.Close())
	assert.ErrorIs(t, broker.Publish(context.Background(), "a", nil), ErrClosed)
	_, err = broker.Subscribe(context.Background(), "a")
	assert.ErrorIs(t, err, ErrClosed)
}
