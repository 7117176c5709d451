package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

var (
	// ErrNotFound is returned when a lookup matches no row for the clinic.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file. Every method is scoped by clinic.
type (
	ScheduleRepository interface {
		ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.ScheduleDay, error)
		GetDay(ctx context.Context, clinicID uuid.UUID, weekday model.Weekday) (*model.ScheduleDay, error)
		UpsertDays(ctx context.Context, clinicID uuid.UUID, days []*model.ScheduleDay) error
		DeleteDay(ctx context.Context, clinicID uuid.UUID, weekday model.Weekday) error
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Appointment, error)
		// Update writes every field except status, which only UpdateStatus
		// changes.
		Update(ctx context.Context, appointment *model.Appointment) error
		UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, status model.AppointmentStatus) error
		Delete(ctx context.Context, clinicID, id uuid.UUID) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// FindOverlapping returns non-canceled appointments intersecting
		// [start, end), ordered by start time.
		FindOverlapping(ctx context.Context, clinicID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error)
		// WithClinicLock runs fn with a repository whose calls are serialized
		// against every other WithClinicLock call for the same clinic.
		WithClinicLock(ctx context.Context, clinicID uuid.UUID, fn func(repo AppointmentRepository) error) error
	}

	ServiceRepository interface {
		Create(ctx context.Context, service *model.Service) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Service, error)
		List(ctx context.Context, clinicID uuid.UUID, activeOnly bool) ([]*model.Service, error)
	}

	// BillRepository stores one kind of bill (payable or receivable).
	BillRepository interface {
		Kind() model.BillKind
		Create(ctx context.Context, bill *model.Bill) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Bill, error)
		// Update leaves status and settled_date untouched.
		Update(ctx context.Context, bill *model.Bill) error
		UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, status model.BillStatus, settledDate *timeslot.Date) error
		Delete(ctx context.Context, clinicID, id uuid.UUID) error
		List(ctx context.Context, filters *model.BillFilters) ([]*model.Bill, error)
		Statistics(ctx context.Context, clinicID uuid.UUID) (*model.BillStatistics, error)
	}

	TransactionRepository interface {
		// Create returns ErrDuplicate when a row with the same
		// (clinic, origin, origin_id) already exists.
		Create(ctx context.Context, tx *model.Transaction) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Transaction, error)
		Update(ctx context.Context, tx *model.Transaction) error
		Delete(ctx context.Context, clinicID, id uuid.UUID) error
		List(ctx context.Context, filters *model.TransactionFilters) ([]*model.Transaction, error)
		FindByOrigin(ctx context.Context, clinicID uuid.UUID, origin model.TransactionOrigin, originID uuid.UUID) (*model.Transaction, error)
		// DeleteByOrigin reports whether a row was removed.
		DeleteByOrigin(ctx context.Context, clinicID uuid.UUID, origin model.TransactionOrigin, originID uuid.UUID) (bool, error)
		// Totals sums rows dated in [from, to).
		Totals(ctx context.Context, clinicID uuid.UUID, from, to timeslot.Date) (*model.TransactionTotals, error)
	}

	// LedgerGapRepository finds entities whose ledger state disagrees with
	// their status.
	LedgerGapRepository interface {
		// MissingTransactions lists realized entities with no ledger row.
		MissingTransactions(ctx context.Context, limit int) ([]model.LedgerGap, error)
		// StaleTransactions lists system-origin ledger rows whose entity
		// still exists but is no longer realized.
		StaleTransactions(ctx context.Context, limit int) ([]model.LedgerGap, error)
	}
)
