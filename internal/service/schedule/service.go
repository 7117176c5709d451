// Package schedule manages each clinic's weekly availability template.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

type Service struct {
	repo            repository.ScheduleRepository
	defaultInterval int
	log             *logger.Logger
}

func NewService(repo repository.ScheduleRepository, defaultInterval int, log *logger.Logger) *Service {
	if defaultInterval <= 0 {
		defaultInterval = model.DefaultSlotIntervalMinutes
	}
	return &Service{
		repo:            repo,
		defaultInterval: defaultInterval,
		log:             log.With("component", "schedules"),
	}
}

func (s *Service) GetWeek(ctx context.Context, clinicID uuid.UUID) ([]*model.ScheduleDay, error) {
	days, err := s.repo.ListByClinic(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	return days, nil
}

func (s *Service) GetDay(ctx context.Context, clinicID uuid.UUID, weekday model.Weekday) (*model.ScheduleDay, error) {
	day, err := s.repo.GetDay(ctx, clinicID, weekday)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound(fmt.Sprintf("schedule for %s", weekday), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule day: %w", err)
	}
	return day, nil
}

// UpsertWeek replaces the given days of the template. Days not listed are
// left as they are.
func (s *Service) UpsertWeek(ctx context.Context, clinicID uuid.UUID, inputs []model.ScheduleDayInput) ([]*model.ScheduleDay, error) {
	if len(inputs) == 0 {
		return nil, apperrors.NewBadRequest("at least one day is required", nil)
	}

	seen := make(map[model.Weekday]bool, len(inputs))
	days := make([]*model.ScheduleDay, 0, len(inputs))
	for _, in := range inputs {
		if seen[in.Weekday] {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("%s is listed more than once", in.Weekday), nil)
		}
		seen[in.Weekday] = true

		day := &model.ScheduleDay{
			ClinicID:            clinicID,
			Weekday:             in.Weekday,
			IsActive:            in.IsActive,
			WorkStart:           in.WorkStart,
			WorkEnd:             in.WorkEnd,
			HasLunchBreak:       in.HasLunchBreak,
			LunchStart:          in.LunchStart,
			LunchEnd:            in.LunchEnd,
			SlotIntervalMinutes: in.SlotIntervalMinutes,
		}
		if err := s.prepare(day); err != nil {
			return nil, err
		}
		days = append(days, day)
	}

	if err := s.repo.UpsertDays(ctx, clinicID, days); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}
	s.log.Info("schedule updated", "clinic_id", clinicID.String(), "days", len(days))
	return s.GetWeek(ctx, clinicID)
}

// UpdateDay patches one configured day.
func (s *Service) UpdateDay(ctx context.Context, clinicID uuid.UUID, weekday model.Weekday, req *model.UpdateScheduleDayRequest) (*model.ScheduleDay, error) {
	day, err := s.GetDay(ctx, clinicID, weekday)
	if err != nil {
		return nil, err
	}

	if req.IsActive != nil {
		day.IsActive = *req.IsActive
	}
	if req.WorkStart != nil {
		day.WorkStart = *req.WorkStart
	}
	if req.WorkEnd != nil {
		day.WorkEnd = *req.WorkEnd
	}
	if req.HasLunchBreak != nil {
		day.HasLunchBreak = *req.HasLunchBreak
	}
	if req.LunchStart != nil {
		day.LunchStart = req.LunchStart
	}
	if req.LunchEnd != nil {
		day.LunchEnd = req.LunchEnd
	}
	if req.SlotIntervalMinutes != nil {
		day.SlotIntervalMinutes = *req.SlotIntervalMinutes
	}
	if err := s.prepare(day); err != nil {
		return nil, err
	}

	if err := s.repo.UpsertDays(ctx, clinicID, []*model.ScheduleDay{day}); err != nil {
		return nil, fmt.Errorf("failed to save schedule day: %w", err)
	}
	return day, nil
}

func (s *Service) DeleteDay(ctx context.Context, clinicID uuid.UUID, weekday model.Weekday) error {
	err := s.repo.DeleteDay(ctx, clinicID, weekday)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(fmt.Sprintf("schedule for %s", weekday), err)
	}
	if err != nil {
		return fmt.Errorf("failed to delete schedule day: %w", err)
	}
	return nil
}

// prepare fills defaults and checks the write-time rules.
func (s *Service) prepare(day *model.ScheduleDay) error {
	if day.SlotIntervalMinutes == 0 {
		day.SlotIntervalMinutes = s.defaultInterval
	}
	if !day.HasLunchBreak {
		day.LunchStart, day.LunchEnd = nil, nil
	}
	if err := day.Validate(); err != nil {
		return apperrors.NewBadRequest(err.Error(), nil)
	}
	return nil
}
