package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DateRange is the optional [StartDate, EndDate] filter shared by list calls.
type DateRange struct {
	StartDate *time.Time
	EndDate   *time.Time
}
