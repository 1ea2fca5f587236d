package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
	"github.com/slotbook/booking-api/internal/service"
	apperrors "github.com/slotbook/booking-api/pkg/errors"
	"github.com/slotbook/booking-api/pkg/logger"
)

type Service struct {
	repo repository.ServiceRepository
	log  *logger.Logger
}

func NewService(repo repository.ServiceRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) CreateService(ctx context.Context, identity model.Identity, req model.CreateServiceRequest) (*model.Service, error) {
	if !identity.IsProvider() {
		return nil, apperrors.Forbidden("Only providers can create services")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || req.Price == nil {
		return nil, apperrors.Validation("Service name and price are required")
	}
	if *req.Price < 0 {
		return nil, apperrors.Validation("Price cannot be negative")
	}

	svc := &model.Service{
		ProviderID:  identity.UserID,
		LocationID:  req.LocationID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       *req.Price,
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Validation("Location does not exist")
		}
		return nil, service.StoreError("Server error", err)
	}

	s.log.Info("service created", "service_id", svc.ID, "provider_id", svc.ProviderID)
	return svc, nil
}

func (s *Service) ListServices(ctx context.Context) ([]*model.ServiceView, error) {
	services, err := s.repo.List(ctx)
	if err != nil {
		return nil, service.StoreError("Server error", err)
	}
	return services, nil
}

func (s *Service) ListOwnServices(ctx context.Context, identity model.Identity) ([]*model.ServiceView, error) {
	if !identity.IsProvider() {
		return nil, apperrors.Forbidden("Only providers can view their services")
	}
	services, err := s.repo.ListByProvider(ctx, identity.UserID)
	if err != nil {
		return nil, service.StoreError("Server error", err)
	}
	return services, nil
}
