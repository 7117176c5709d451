package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

// Conflicts returns the appointments of the clinic that overlap [start, end),
// ignoring canceled ones and excludeID.
func (s *Service) Conflicts(ctx context.Context, clinicID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	if !start.Before(end) {
		return nil, apperrors.NewBadRequest("start_time must be before end_time", nil)
	}
	conflicts, err := findConflicts(ctx, s.repo, clinicID, start, end, excludeID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return conflicts, nil
}

// HasConflict reports whether [start, end) overlaps a booking of the clinic.
func (s *Service) HasConflict(ctx context.Context, clinicID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	if !start.Before(end) {
		return false, apperrors.NewBadRequest("start_time must be before end_time", nil)
	}
	conflicts, err := findConflicts(ctx, s.repo, clinicID, start, end, excludeID, true)
	if err != nil {
		return false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return len(conflicts) > 0, nil
}

// findConflicts filters the store's candidates with the half-open overlap
// test. With firstOnly it stops at the first hit.
func findConflicts(ctx context.Context, repo repository.AppointmentRepository, clinicID uuid.UUID, start, end time.Time, excludeID *uuid.UUID, firstOnly bool) ([]*model.Appointment, error) {
	candidates, err := repo.FindOverlapping(ctx, clinicID, start, end, excludeID)
	if err != nil {
		return nil, err
	}

	var out []*model.Appointment
	for _, a := range candidates {
		if !a.Status.OccupiesTime() {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if !timeslot.Overlaps(start, end, a.StartTime, a.EndTime) {
			continue
		}
		out = append(out, a)
		if firstOnly {
			break
		}
	}
	return out, nil
}
