package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
)

const (
	slotColumns    = `id, service_id, provider_id, date, start_time, end_time, is_available, created_at`
	bookingColumns = `id, customer_id, service_id, availability_id, date, status, created_at, updated_at`
)

// txRepository implements repository.Tx over one open transaction.
type txRepository struct {
	tx *sqlx.Tx
}

var _ repository.Tx = (*txRepository)(nil)

func (r *txRepository) LockSlot(ctx context.Context, id int64) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability WHERE id = $1 FOR UPDATE`

	var slot model.Slot
	if err := r.tx.GetContext(ctx, &slot, query, id); err != nil {
		return nil, fmt.Errorf("failed to lock slot %d: %w", id, mapError(err))
	}
	return &slot, nil
}

// FindBookedSlotID resolves the slot of a booking without availability_id.
// Slots referenced by another booking are never candidates.
func (r *txRepository) FindBookedSlotID(ctx context.Context, serviceID int64, date model.Date) (int64, error) {
	query := `
		SELECT a.id FROM availability a
		WHERE a.service_id = $1 AND a.date = $2 AND a.is_available = false
			AND NOT EXISTS (SELECT 1 FROM bookings bk WHERE bk.availability_id = a.id)
		ORDER BY a.id
		LIMIT 1
	`

	var id int64
	if err := r.tx.GetContext(ctx, &id, query, serviceID, date); err != nil {
		return 0, fmt.Errorf("failed to find booked slot: %w", mapError(err))
	}
	return id, nil
}

func (r *txRepository) SetSlotAvailable(ctx context.Context, id int64, available bool) error {
	query := `UPDATE availability SET is_available = $1 WHERE id = $2`

	result, err := r.tx.ExecContext(ctx, query, available, id)
	if err != nil {
		return fmt.Errorf("failed to update slot %d: %w", id, mapError(err))
	}
	return checkRowsAffected(result, "slot")
}

func (r *txRepository) LockCustomerBooking(ctx context.Context, id, customerID int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 AND customer_id = $2 FOR UPDATE`

	var booking model.Booking
	if err := r.tx.GetContext(ctx, &booking, query, id, customerID); err != nil {
		return nil, fmt.Errorf("failed to lock booking %d: %w", id, mapError(err))
	}
	return &booking, nil
}

func (r *txRepository) CreateBooking(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (customer_id, service_id, availability_id, date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	if booking.Status == "" {
		booking.Status = model.BookingStatusConfirmed
	}

	err := r.tx.QueryRowxContext(ctx, query,
		booking.CustomerID,
		booking.ServiceID,
		booking.AvailabilityID,
		booking.Date,
		booking.Status,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", mapError(err))
	}
	return nil
}

func (r *txRepository) MoveBooking(ctx context.Context, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET date = $1, availability_id = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`

	err := r.tx.QueryRowxContext(ctx, query, booking.Date, booking.AvailabilityID, booking.ID).
		Scan(&booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to move booking %d: %w", booking.ID, mapError(err))
	}
	return nil
}

func (r *txRepository) DeleteBooking(ctx context.Context, id int64) error {
	result, err := r.tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking %d: %w", id, mapError(err))
	}
	return checkRowsAffected(result, "booking")
}

func (r *txRepository) AddOutboxEvent(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now().UTC()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = now
	event.UpdatedAt = now

	_, err := r.tx.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", mapError(err))
	}
	return nil
}
