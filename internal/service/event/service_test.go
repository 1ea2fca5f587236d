package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
	"github.com/slotbook/booking-api/internal/repository/memory"
	"github.com/slotbook/booking-api/pkg/logger"
)

func TestEmitCommitsWithTransaction(t *testing.T) {
	store := memory.NewStore()
	s := NewEventService(store.Outbox(), logger.Nop())
	ctx := context.Background()
	slotID := int64(3)

	err := store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return s.Emit(ctx, tx, model.EventBookingCreated, model.BookingEvent{
			BookingID: 1, CustomerID: 2, ServiceID: 4, AvailabilityID: &slotID,
		})
	})
	require.NoError(t, err)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventBookingCreated, events[0].EventType)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)

	var payload model.BookingEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, int64(1), payload.BookingID)
	require.NotNil(t, payload.AvailabilityID)
	assert.Equal(t, slotID, *payload.AvailabilityID)
	assert.False(t, payload.OccurredAt.IsZero())
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	store := memory.NewStore()
	s := NewEventService(store.Outbox(), logger.Nop())

	err := store.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if err := s.Emit(ctx, tx, model.EventBookingCancelled, model.BookingEvent{BookingID: 1}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Empty(t, store.Events())
}

func TestCleanupProcessedEvents(t *testing.T) {
	store := memory.NewStore()
	s := NewEventService(store.Outbox(), logger.Nop())
	ctx := context.Background()

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for i := 0; i < 2; i++ {
			if err := s.Emit(ctx, tx, model.EventBookingCreated, model.BookingEvent{BookingID: int64(i)}); err != nil {
				return err
			}
		}
		return nil
	}))

	claimed, err := store.Outbox().GetPendingEvents(ctx, 1, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, store.Outbox().MarkEventProcessed(ctx, claimed[0].ID))

	// nothing is old enough yet
	n, err := s.CleanupProcessedEvents(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	s.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	n, err = s.CleanupProcessedEvents(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, store.Events(), 1)
}
