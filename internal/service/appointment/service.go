package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/ledger"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

type Service struct {
	repo      repository.AppointmentRepository
	services  repository.ServiceRepository
	ledger    *ledger.Coordinator
	publisher messaging.Publisher
	loc       *time.Location
	now       func() time.Time
	log       *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	repo repository.AppointmentRepository,
	services repository.ServiceRepository,
	coordinator *ledger.Coordinator,
	publisher messaging.Publisher,
	loc *time.Location,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:      repo,
		services:  services,
		ledger:    coordinator,
		publisher: publisher,
		loc:       loc,
		now:       time.Now,
		log:       log.With("component", "appointments"),
		metrics:   m,
	}
}

// StatusChange is returned by SetStatus: the appointment as stored afterwards
// and what happened to its ledger row.
type StatusChange struct {
	Appointment     *model.Appointment `json:"appointment"`
	TransactionInfo ledger.Info        `json:"transaction_info"`
}

func (s *Service) newAppointment(ctx context.Context, clinicID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, *model.Service, error) {
	if !req.StartTime.Before(req.EndTime) {
		return nil, nil, apperrors.NewBadRequest("start_time must be before end_time", nil)
	}
	svc, err := s.service(ctx, clinicID, req.ServiceID)
	if err != nil {
		return nil, nil, err
	}
	return &model.Appointment{
		ClinicID:     clinicID,
		ServiceID:    req.ServiceID,
		PatientCPF:   req.PatientCPF,
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		StartTime:    req.StartTime.UTC(),
		EndTime:      req.EndTime.UTC(),
		Status:       model.AppointmentStatusPending,
	}, svc, nil
}

// Create books an appointment only if its window is free. The check and the
// insert run under the clinic lock so two requests cannot take one slot.
func (s *Service) Create(ctx context.Context, clinicID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	apt, svc, err := s.newAppointment(ctx, clinicID, req)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithClinicLock(ctx, clinicID, func(repo repository.AppointmentRepository) error {
		conflicts, err := findConflicts(ctx, repo, clinicID, apt.StartTime, apt.EndTime, nil, true)
		if err != nil {
			return fmt.Errorf("failed to check conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			s.metrics.ConflictsDetected.WithLabelValues("create").Inc()
			return apperrors.NewConflict("the requested time overlaps an existing appointment")
		}
		return repo.Create(ctx, apt)
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	apt.Service = svc.Summary()
	return apt, nil
}

// CreateAllowingConflicts always books and reports whether the window was
// already taken.
func (s *Service) CreateAllowingConflicts(ctx context.Context, clinicID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, bool, error) {
	apt, svc, err := s.newAppointment(ctx, clinicID, req)
	if err != nil {
		return nil, false, err
	}

	conflicts, err := findConflicts(ctx, s.repo, clinicID, apt.StartTime, apt.EndTime, nil, true)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	hasConflicts := len(conflicts) > 0
	if hasConflicts {
		s.metrics.ConflictsDetected.WithLabelValues("create_allowing_conflicts").Inc()
	}

	if err := s.repo.Create(ctx, apt); err != nil {
		return nil, false, fmt.Errorf("failed to create appointment: %w", err)
	}
	apt.Service = svc.Summary()
	return apt, hasConflicts, nil
}

func (s *Service) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, clinicID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid status %q", filters.Status), nil)
	}
	apts, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return apts, nil
}

// Update patches an appointment. A new time range is checked against the
// other bookings of the clinic. A status in the request is applied through
// SetStatus, whose result is returned as the second value, also when the
// ledger write fails and the status is rolled back.
func (s *Service) Update(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, *ledger.Info, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, nil, apperrors.NewBadRequest(fmt.Sprintf("invalid status %q", *req.Status), nil)
	}
	apt, err := s.Get(ctx, clinicID, id)
	if err != nil {
		return nil, nil, err
	}

	if req.ServiceID != nil && *req.ServiceID != apt.ServiceID {
		if _, err := s.service(ctx, clinicID, *req.ServiceID); err != nil {
			return nil, nil, err
		}
		apt.ServiceID = *req.ServiceID
	}
	if req.PatientCPF != nil {
		apt.PatientCPF = *req.PatientCPF
	}
	if req.PatientName != nil {
		apt.PatientName = *req.PatientName
	}
	if req.PatientPhone != nil {
		apt.PatientPhone = req.PatientPhone
	}

	if req.StartTime != nil || req.EndTime != nil {
		if req.StartTime != nil {
			apt.StartTime = req.StartTime.UTC()
		}
		if req.EndTime != nil {
			apt.EndTime = req.EndTime.UTC()
		}
		conflict, err := s.HasConflict(ctx, clinicID, apt.StartTime, apt.EndTime, &apt.ID)
		if err != nil {
			return nil, nil, err
		}
		if conflict {
			s.metrics.ConflictsDetected.WithLabelValues("update").Inc()
			return nil, nil, apperrors.NewConflict("the requested time overlaps an existing appointment")
		}
	}

	if err := s.repo.Update(ctx, apt); err != nil {
		return nil, nil, fmt.Errorf("failed to update appointment: %w", err)
	}

	if req.Status != nil && *req.Status != apt.Status {
		change, err := s.SetStatus(ctx, clinicID, id, *req.Status)
		if err != nil {
			if change != nil {
				return change.Appointment, &change.TransactionInfo, err
			}
			return nil, nil, err
		}
		return change.Appointment, &change.TransactionInfo, nil
	}

	updated, err := s.Get(ctx, clinicID, id)
	if err != nil {
		return nil, nil, err
	}
	return updated, nil, nil
}

// SetStatus changes the status and brings the ledger in line with it. When
// the new status is completed and the ledger row cannot be written, the
// status is put back and a compensation error is returned together with the
// restored appointment.
func (s *Service) SetStatus(ctx context.Context, clinicID, id uuid.UUID, status model.AppointmentStatus) (*StatusChange, error) {
	if !status.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid status %q", status), nil)
	}
	apt, err := s.Get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	previous := apt.Status

	if err := s.repo.UpdateStatus(ctx, clinicID, id, status); err != nil {
		return nil, fmt.Errorf("failed to update appointment status: %w", err)
	}
	apt.Status = status

	var result ledger.Result
	if status.IsRealized() {
		result = s.realize(ctx, apt)
		if result.Err != nil {
			return s.compensate(ctx, apt, previous, result.Err)
		}
	} else {
		result = s.ledger.Unrealize(ctx, clinicID, model.OriginAppointment, id)
	}

	if previous != status {
		s.publishStatusChange(ctx, apt, previous)
	}
	return &StatusChange{Appointment: apt, TransactionInfo: result.Info()}, nil
}

func (s *Service) realize(ctx context.Context, apt *model.Appointment) ledger.Result {
	svc, err := s.services.Get(ctx, apt.ClinicID, apt.ServiceID)
	if err != nil {
		return ledger.Result{Action: ledger.ActionNone, Err: fmt.Errorf("failed to load service %s: %w", apt.ServiceID, err)}
	}
	today := timeslot.DateOf(s.now().In(s.loc))
	return s.ledger.Realize(ctx, ledger.ForAppointment(apt, svc, today))
}

func (s *Service) compensate(ctx context.Context, apt *model.Appointment, previous model.AppointmentStatus, cause error) (*StatusChange, error) {
	if err := s.repo.UpdateStatus(ctx, apt.ClinicID, apt.ID, previous); err != nil {
		s.log.Error(err, "failed to roll back appointment status",
			"appointment_id", apt.ID.String(), "status", string(previous))
		return nil, fmt.Errorf("failed to roll back appointment status after ledger error %v: %w", cause, err)
	}
	apt.Status = previous
	s.ledger.RecordCompensation(model.OriginAppointment, apt.ID, cause)

	change := &StatusChange{
		Appointment: apt,
		TransactionInfo: ledger.Info{
			Action:     ledger.ActionNone,
			Error:      cause.Error(),
			RolledBack: true,
		},
	}
	return change, apperrors.NewCompensation("appointment status was reverted because the transaction could not be created", cause)
}

func (s *Service) publishStatusChange(ctx context.Context, apt *model.Appointment, previous model.AppointmentStatus) {
	payload := map[string]interface{}{
		"appointment_id": apt.ID,
		"from":           previous,
		"to":             apt.Status,
	}
	if err := s.publisher.Publish(ctx, messaging.EventAppointmentStatusChanged, apt.ClinicID, payload); err != nil {
		s.log.Warn(err, "failed to publish status change", "appointment_id", apt.ID.String())
	}
}

// Delete removes the appointment. A ledger row it produced stays as history.
func (s *Service) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	err := s.repo.Delete(ctx, clinicID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("appointment", err)
	}
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}

func (s *Service) service(ctx context.Context, clinicID, serviceID uuid.UUID) (*model.Service, error) {
	svc, err := s.services.Get(ctx, clinicID, serviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewBadRequest("service_id does not match a service of this clinic", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}
	return svc, nil
}
