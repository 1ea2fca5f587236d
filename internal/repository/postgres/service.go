package postgres

import (
	"context"
	"fmt"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
)

const serviceViewSelect = `
	SELECT s.id, s.provider_id, s.location_id, s.name, s.description, s.price, s.created_at,
		u.name AS provider_name, l.name AS location_name
	FROM services s
	LEFT JOIN users u ON s.provider_id = u.id
	LEFT JOIN locations l ON s.location_id = l.id
`

type serviceRepository struct {
	BaseRepository
}

func NewServiceRepository(base BaseRepository) repository.ServiceRepository {
	return &serviceRepository{base}
}

func (r *serviceRepository) Create(ctx context.Context, service *model.Service) error {
	query := `
		INSERT INTO services (provider_id, location_id, name, description, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		service.ProviderID,
		service.LocationID,
		service.Name,
		service.Description,
		service.Price,
	).Scan(&service.ID, &service.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", mapError(err))
	}
	return nil
}

func (r *serviceRepository) Get(ctx context.Context, id int64) (*model.Service, error) {
	query := `
		SELECT id, provider_id, location_id, name, description, price, created_at
		FROM services WHERE id = $1
	`

	var service model.Service
	if err := r.db.GetContext(ctx, &service, query, id); err != nil {
		return nil, fmt.Errorf("failed to get service: %w", mapError(err))
	}
	return &service, nil
}

func (r *serviceRepository) List(ctx context.Context) ([]*model.ServiceView, error) {
	query := serviceViewSelect + ` ORDER BY s.name, s.id`

	var services []*model.ServiceView
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", mapError(err))
	}
	return services, nil
}

func (r *serviceRepository) ListByProvider(ctx context.Context, providerID int64) ([]*model.ServiceView, error) {
	query := serviceViewSelect + ` WHERE s.provider_id = $1 ORDER BY s.name, s.id`

	var services []*model.ServiceView
	if err := r.db.SelectContext(ctx, &services, query, providerID); err != nil {
		return nil, fmt.Errorf("failed to list provider services: %w", mapError(err))
	}
	return services, nil
}
