package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultServiceDurationMinutes is the slot length when no service is chosen.
const DefaultServiceDurationMinutes = 60

type Service struct {
	Base
	ClinicID        uuid.UUID       `db:"clinic_id" json:"clinic_id"`
	Name            string          `db:"name" json:"name"`
	Description     *string         `db:"description" json:"description,omitempty"`
	DurationMinutes int             `db:"duration_minutes" json:"duration_minutes"`
	Price           decimal.Decimal `db:"price" json:"price"`
	Active          bool            `db:"active" json:"active"`
}

func (s *Service) Summary() *ServiceSummary {
	return &ServiceSummary{
		ID:              s.ID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price,
	}
}

type CreateServiceRequest struct {
	Name            string          `json:"name" binding:"required,max=200"`
	Description     *string         `json:"description" binding:"omitempty,max=1000"`
	DurationMinutes int             `json:"duration_minutes" binding:"required,min=5,max=720"`
	Price           decimal.Decimal `json:"price"`
	Active          *bool           `json:"active"`
}
