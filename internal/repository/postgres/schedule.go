package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const scheduleColumns = `
	id, clinic_id, weekday, is_active, work_start, work_end,
	has_lunch_break, lunch_start, lunch_end, slot_interval_minutes,
	created_at, updated_at`

func (r *scheduleRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.ScheduleDay, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM clinic_schedules
		WHERE clinic_id = $1`

	var days []*model.ScheduleDay
	if err := r.db.SelectContext(ctx, &days, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list schedule: %w", err)
	}
	sortByWeekday(days)
	return days, nil
}

func (r *scheduleRepository) GetDay(ctx context.Context, clinicID uuid.UUID, weekday model.Weekday) (*model.ScheduleDay, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM clinic_schedules
		WHERE clinic_id = $1 AND weekday = $2`

	var day model.ScheduleDay
	if err := r.db.GetContext(ctx, &day, query, clinicID, weekday); err != nil {
		return nil, notFound(err, "get schedule day")
	}
	return &day, nil
}

// UpsertDays replaces each given day, keyed on (clinic_id, weekday).
func (r *scheduleRepository) UpsertDays(ctx context.Context, clinicID uuid.UUID, days []*model.ScheduleDay) error {
	query := `
		INSERT INTO clinic_schedules (
			id, clinic_id, weekday, is_active, work_start, work_end,
			has_lunch_break, lunch_start, lunch_end, slot_interval_minutes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (clinic_id, weekday) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			work_start = EXCLUDED.work_start,
			work_end = EXCLUDED.work_end,
			has_lunch_break = EXCLUDED.has_lunch_break,
			lunch_start = EXCLUDED.lunch_start,
			lunch_end = EXCLUDED.lunch_end,
			slot_interval_minutes = EXCLUDED.slot_interval_minutes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	now := time.Now()
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, day := range days {
			day.ClinicID = clinicID
			if day.ID == uuid.Nil {
				day.ID = uuid.New()
			}
			day.CreatedAt = now
			day.UpdatedAt = now

			row := tx.QueryRowxContext(ctx, query,
				day.ID,
				day.ClinicID,
				day.Weekday,
				day.IsActive,
				day.WorkStart,
				day.WorkEnd,
				day.HasLunchBreak,
				day.LunchStart,
				day.LunchEnd,
				day.SlotIntervalMinutes,
				day.CreatedAt,
				day.UpdatedAt,
			)
			if err := row.Scan(&day.ID, &day.CreatedAt); err != nil {
				return fmt.Errorf("failed to upsert schedule day %s: %w", day.Weekday, err)
			}
		}
		return nil
	})
}

func (r *scheduleRepository) DeleteDay(ctx context.Context, clinicID uuid.UUID, weekday model.Weekday) error {
	query := `DELETE FROM clinic_schedules WHERE clinic_id = $1 AND weekday = $2`

	result, err := r.db.ExecContext(ctx, query, clinicID, weekday)
	if err != nil {
		return fmt.Errorf("failed to delete schedule day: %w", err)
	}
	return expectAffected(result, "delete schedule day")
}

func sortByWeekday(days []*model.ScheduleDay) {
	sort.Slice(days, func(i, j int) bool { return days[i].Weekday < days[j].Weekday })
}
