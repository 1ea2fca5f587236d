package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
)

type slotRepository struct {
	BaseRepository
}

func NewSlotRepository(base BaseRepository) repository.SlotRepository {
	return &slotRepository{base}
}

func (r *slotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO availability (service_id, provider_id, date, start_time, end_time, is_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		slot.ServiceID,
		slot.ProviderID,
		slot.Date,
		slot.StartTime,
		slot.EndTime,
		slot.IsAvailable,
	).Scan(&slot.ID, &slot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", mapError(err))
	}
	return nil
}

func (r *slotRepository) Get(ctx context.Context, id int64) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability WHERE id = $1`

	var slot model.Slot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", mapError(err))
	}
	return &slot, nil
}

func (r *slotRepository) ListByProvider(ctx context.Context, providerID int64) ([]*model.ProviderSlotView, error) {
	query := `
		SELECT a.id, a.service_id, a.provider_id, a.date, a.start_time, a.end_time,
			a.is_available, a.created_at, s.name AS service_name, s.price
		FROM availability a
		JOIN services s ON a.service_id = s.id
		WHERE a.provider_id = $1
		ORDER BY a.date, a.start_time, a.id
	`

	var slots []*model.ProviderSlotView
	if err := r.db.SelectContext(ctx, &slots, query, providerID); err != nil {
		return nil, fmt.Errorf("failed to list provider slots: %w", mapError(err))
	}
	return slots, nil
}

func (r *slotRepository) ListAvailable(ctx context.Context, filter model.SlotFilter) ([]*model.PublicSlotView, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT a.id, a.service_id, a.provider_id, a.date, a.start_time, a.end_time,
			a.is_available, a.created_at,
			s.name AS service_name, s.description, s.price, u.name AS provider_name
		FROM availability a
		JOIN services s ON a.service_id = s.id
		JOIN users u ON s.provider_id = u.id
		WHERE a.is_available = true`)

	var args []interface{}
	if filter.ServiceID != nil {
		args = append(args, *filter.ServiceID)
		fmt.Fprintf(&b, " AND a.service_id = $%d", len(args))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		fmt.Fprintf(&b, " AND a.date = $%d", len(args))
	}
	b.WriteString(" ORDER BY a.date, a.start_time, a.id")

	var slots []*model.PublicSlotView
	if err := r.db.SelectContext(ctx, &slots, b.String(), args...); err != nil {
		return nil, fmt.Errorf("failed to list available slots: %w", mapError(err))
	}
	return slots, nil
}
