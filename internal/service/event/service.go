package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
	"github.com/slotbook/booking-api/pkg/logger"
)

const defaultRetention = 7 * 24 * time.Hour

// EventService writes booking events to the outbox and prunes old ones.
// Delivery is the outbox processor's job.
type EventService struct {
	outboxRepo repository.OutboxRepository
	log        *logger.Logger
	now        func() time.Time
}

func NewEventService(outboxRepo repository.OutboxRepository, log *logger.Logger) *EventService {
	return &EventService{
		outboxRepo: outboxRepo,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Emit records an event inside tx, so it commits or rolls back with the
// booking change that caused it.
func (s *EventService) Emit(ctx context.Context, tx repository.OutboxTx, eventType string, payload model.BookingEvent) error {
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = s.now()
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payloadJSON,
	}
	if err := tx.AddOutboxEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// CleanupProcessedEvents deletes processed events older than retention.
func (s *EventService) CleanupProcessedEvents(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = defaultRetention
	}
	cutoff := s.now().Add(-retention)
	count, err := s.outboxRepo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup events: %w", err)
	}
	if count > 0 {
		s.log.Info("purged processed outbox events", "deleted_count", count, "cutoff", cutoff)
	}
	return count, nil
}
