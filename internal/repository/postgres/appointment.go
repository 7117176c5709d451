package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const appointmentSelect = `
	SELECT a.id, a.clinic_id, a.service_id, a.patient_cpf, a.patient_name,
		   a.patient_phone, a.start_time, a.end_time, a.status,
		   a.created_at, a.updated_at,
		   s.name AS service_name,
		   s.duration_minutes AS service_duration_minutes,
		   s.price AS service_price
	FROM appointments a
	LEFT JOIN clinic_services s ON s.id = a.service_id`

// appointmentRow carries the joined service columns alongside the appointment.
type appointmentRow struct {
	model.Appointment
	ServiceName     sql.NullString      `db:"service_name"`
	ServiceDuration sql.NullInt64       `db:"service_duration_minutes"`
	ServicePrice    decimal.NullDecimal `db:"service_price"`
}

func (row *appointmentRow) toModel() *model.Appointment {
	a := row.Appointment
	if row.ServiceName.Valid {
		a.Service = &model.ServiceSummary{
			ID:              a.ServiceID,
			Name:            row.ServiceName.String,
			DurationMinutes: int(row.ServiceDuration.Int64),
			Price:           row.ServicePrice.Decimal,
		}
	}
	return &a
}

func toAppointments(rows []appointmentRow) []*model.Appointment {
	out := make([]*model.Appointment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, clinic_id, service_id, patient_cpf, patient_name,
			patient_phone, start_time, end_time, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	appointment.ID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt

	_, err := r.q.ExecContext(ctx, query,
		appointment.ID,
		appointment.ClinicID,
		appointment.ServiceID,
		appointment.PatientCPF,
		appointment.PatientName,
		appointment.PatientPhone,
		appointment.StartTime.UTC(),
		appointment.EndTime.UTC(),
		appointment.Status,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Appointment, error) {
	query := appointmentSelect + ` WHERE a.clinic_id = $1 AND a.id = $2`

	var row appointmentRow
	if err := r.q.GetContext(ctx, &row, query, clinicID, id); err != nil {
		return nil, notFound(err, "get appointment")
	}
	return row.toModel(), nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET service_id = $1, patient_cpf = $2, patient_name = $3, patient_phone = $4,
			start_time = $5, end_time = $6, updated_at = $7
		WHERE clinic_id = $8 AND id = $9
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.q.ExecContext(ctx, query,
		appointment.ServiceID,
		appointment.PatientCPF,
		appointment.PatientName,
		appointment.PatientPhone,
		appointment.StartTime.UTC(),
		appointment.EndTime.UTC(),
		appointment.UpdatedAt,
		appointment.ClinicID,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	return expectAffected(result, "update appointment")
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, status model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE clinic_id = $3 AND id = $4
	`
	result, err := r.q.ExecContext(ctx, query, status, time.Now(), clinicID, id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	return expectAffected(result, "update appointment status")
}

func (r *appointmentRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	query := `DELETE FROM appointments WHERE clinic_id = $1 AND id = $2`

	result, err := r.q.ExecContext(ctx, query, clinicID, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return expectAffected(result, "delete appointment")
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	var b filterBuilder
	b.add("a.clinic_id = $%d", filters.ClinicID)
	if filters.ServiceID != nil {
		b.add("a.service_id = $%d", *filters.ServiceID)
	}
	if filters.Status != "" {
		b.add("a.status = $%d", filters.Status)
	}
	if filters.PatientCPF != "" {
		b.add("a.patient_cpf = $%d", filters.PatientCPF)
	}
	if filters.StartDate != nil {
		b.add("a.start_time >= $%d", filters.StartDate.UTC())
	}
	if filters.EndDate != nil {
		b.add("a.start_time < $%d", filters.EndDate.UTC())
	}

	query := appointmentSelect + b.where() + ` ORDER BY a.start_time ASC`

	var rows []appointmentRow
	if err := r.q.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return toAppointments(rows), nil
}

func (r *appointmentRepository) FindOverlapping(ctx context.Context, clinicID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	var b filterBuilder
	b.add("a.clinic_id = $%d", clinicID)
	b.add("a.status <> $%d", model.AppointmentStatusCanceled)
	b.add("a.start_time < $%d", end.UTC())
	b.add("a.end_time > $%d", start.UTC())
	if excludeID != nil {
		b.add("a.id <> $%d", *excludeID)
	}

	query := appointmentSelect + b.where() + ` ORDER BY a.start_time ASC`

	var rows []appointmentRow
	if err := r.q.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, fmt.Errorf("failed to find overlapping appointments: %w", err)
	}
	return toAppointments(rows), nil
}

// WithClinicLock takes a transaction-scoped advisory lock keyed on the clinic
// and runs fn against the same transaction. The lock is released on commit
// or rollback.
func (r *appointmentRepository) WithClinicLock(ctx context.Context, clinicID uuid.UUID, fn func(repo repository.AppointmentRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, clinicID.String()); err != nil {
			return fmt.Errorf("failed to lock clinic schedule: %w", err)
		}
		return fn(&appointmentRepository{BaseRepository: r.BaseRepository, q: tx, inTx: true})
	})
}
