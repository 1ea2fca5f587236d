package postgres

import (
	"context"
	"fmt"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
)

// bookingSlotJoin resolves a booking's slot by availability_id, falling back to
// service and date for rows written before that column existed.
const bookingSlotJoin = `
	LEFT JOIN LATERAL (
		SELECT sl.start_time, sl.end_time
		FROM availability sl
		WHERE sl.id = b.availability_id
			OR (b.availability_id IS NULL AND sl.service_id = b.service_id
				AND sl.date = b.date AND sl.is_available = false
				AND NOT EXISTS (SELECT 1 FROM bookings bk WHERE bk.availability_id = sl.id))
		ORDER BY sl.id
		LIMIT 1
	) a ON true
`

type bookingRepository struct {
	BaseRepository
}

func NewBookingRepository(base BaseRepository) repository.BookingRepository {
	return &bookingRepository{base}
}

func (r *bookingRepository) Get(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var booking model.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", mapError(err))
	}
	return &booking, nil
}

func (r *bookingRepository) ListByCustomer(ctx context.Context, customerID int64) ([]*model.CustomerBookingView, error) {
	query := `
		SELECT b.id, b.customer_id, b.service_id, b.availability_id, b.date, b.status,
			b.created_at, b.updated_at,
			s.name AS service_name, s.description, s.price,
			a.start_time, a.end_time, u.name AS provider_name
		FROM bookings b
		JOIN services s ON b.service_id = s.id
		JOIN users u ON s.provider_id = u.id
	` + bookingSlotJoin + `
		WHERE b.customer_id = $1
		ORDER BY b.date DESC, b.created_at DESC
	`

	var bookings []*model.CustomerBookingView
	if err := r.db.SelectContext(ctx, &bookings, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to list customer bookings: %w", mapError(err))
	}
	return bookings, nil
}

func (r *bookingRepository) ListByProvider(ctx context.Context, providerID int64) ([]*model.AppointmentView, error) {
	query := `
		SELECT b.id, b.customer_id, b.service_id, b.availability_id, b.date, b.status,
			b.created_at, b.updated_at,
			s.name AS service_name, s.price,
			a.start_time, a.end_time,
			u.name AS customer_name, u.email AS customer_email
		FROM bookings b
		JOIN services s ON b.service_id = s.id
		JOIN users u ON b.customer_id = u.id
	` + bookingSlotJoin + `
		WHERE s.provider_id = $1
		ORDER BY b.date DESC, a.start_time DESC NULLS LAST
	`

	var appointments []*model.AppointmentView
	if err := r.db.SelectContext(ctx, &appointments, query, providerID); err != nil {
		return nil, fmt.Errorf("failed to list provider appointments: %w", mapError(err))
	}
	return appointments, nil
}
