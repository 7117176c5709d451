package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

func (r *serviceRepository) Create(ctx context.Context, service *model.Service) error {
	query := `
		INSERT INTO clinic_services (
			id, clinic_id, name, description, duration_minutes, price, active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	service.ID = uuid.New()
	service.CreatedAt = time.Now()
	service.UpdatedAt = service.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		service.ID,
		service.ClinicID,
		service.Name,
		service.Description,
		service.DurationMinutes,
		service.Price,
		service.Active,
		service.CreatedAt,
		service.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

func (r *serviceRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Service, error) {
	query := `
		SELECT id, clinic_id, name, description, duration_minutes, price, active,
			   created_at, updated_at
		FROM clinic_services
		WHERE clinic_id = $1 AND id = $2
	`
	var service model.Service
	if err := r.db.GetContext(ctx, &service, query, clinicID, id); err != nil {
		return nil, notFound(err, "get service")
	}
	return &service, nil
}

func (r *serviceRepository) List(ctx context.Context, clinicID uuid.UUID, activeOnly bool) ([]*model.Service, error) {
	query := `
		SELECT id, clinic_id, name, description, duration_minutes, price, active,
			   created_at, updated_at
		FROM clinic_services
		WHERE clinic_id = $1
	`
	if activeOnly {
		query += " AND active = TRUE"
	}
	query += " ORDER BY name ASC"

	var services []*model.Service
	if err := r.db.SelectContext(ctx, &services, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}
