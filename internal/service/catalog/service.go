// Package catalog manages the services a clinic offers.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Service struct {
	repo repository.ServiceRepository
}

func NewService(repo repository.ServiceRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, clinicID uuid.UUID, req *model.CreateServiceRequest) (*model.Service, error) {
	if req.DurationMinutes <= 0 {
		return nil, apperrors.NewBadRequest("duration_minutes must be positive", nil)
	}
	if req.Price.IsNegative() {
		return nil, apperrors.NewBadRequest("price must not be negative", nil)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	svc := &model.Service{
		ClinicID:        clinicID,
		Name:            req.Name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Active:          active,
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, nil
}

func (s *Service) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Service, error) {
	svc, err := s.repo.Get(ctx, clinicID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("service", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return svc, nil
}

func (s *Service) List(ctx context.Context, clinicID uuid.UUID, activeOnly bool) ([]*model.Service, error) {
	services, err := s.repo.List(ctx, clinicID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}
