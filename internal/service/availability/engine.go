// Package availability computes the bookable windows of a clinic day from
// its weekly schedule and the bookings already on it.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

// Error reports that slots could not be computed because a store failed.
// It is distinct from an empty result, which means nothing is bookable.
type Error struct {
	ClinicID uuid.UUID
	Date     string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("availability for %s on %s: %s: %v", e.ClinicID, e.Date, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type ScheduleSource interface {
	GetDay(ctx context.Context, clinicID uuid.UUID, weekday model.Weekday) (*model.ScheduleDay, error)
}

type ServiceSource interface {
	Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Service, error)
}

type BookingSource interface {
	FindOverlapping(ctx context.Context, clinicID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error)
}

type Config struct {
	// Location is the clinic timezone that calendar dates are read in.
	Location               *time.Location
	DefaultDurationMinutes int
	DefaultIntervalMinutes int
}

type Engine struct {
	schedules ScheduleSource
	services  ServiceSource
	bookings  BookingSource
	cfg       Config
	log       *logger.Logger
	metrics   *metrics.Metrics
}

func NewEngine(schedules ScheduleSource, services ServiceSource, bookings BookingSource, cfg Config, log *logger.Logger, m *metrics.Metrics) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = model.DefaultServiceDurationMinutes
	}
	if cfg.DefaultIntervalMinutes <= 0 {
		cfg.DefaultIntervalMinutes = model.DefaultSlotIntervalMinutes
	}
	return &Engine{
		schedules: schedules,
		services:  services,
		bookings:  bookings,
		cfg:       cfg,
		log:       log.With("component", "availability"),
		metrics:   m,
	}
}

// Location returns the clinic timezone.
func (e *Engine) Location() *time.Location {
	return e.cfg.Location
}

// ComputeAvailableSlots returns the free windows of date (YYYY-MM-DD) in
// generation order. A day without an active schedule yields an empty list.
func (e *Engine) ComputeAvailableSlots(ctx context.Context, clinicID uuid.UUID, date string, serviceID *uuid.UUID) ([]model.TimeSlot, error) {
	start := time.Now()
	defer func() {
		e.metrics.AvailabilityDuration.Observe(time.Since(start).Seconds())
	}()

	day, err := timeslot.ParseDate(date, e.cfg.Location)
	if err != nil {
		return nil, apperrors.NewBadRequest("date must be YYYY-MM-DD", err)
	}
	weekday := model.Weekday(day.Weekday())

	schedule, err := e.schedules.GetDay(ctx, clinicID, weekday)
	if errors.Is(err, repository.ErrNotFound) {
		return []model.TimeSlot{}, nil
	}
	if err != nil {
		return nil, e.fail(clinicID, date, "load schedule", err)
	}
	if !schedule.IsActive {
		return []model.TimeSlot{}, nil
	}

	duration, err := e.duration(ctx, clinicID, serviceID)
	if err != nil {
		return nil, e.fail(clinicID, date, "load service", err)
	}

	dayStart, dayEnd := timeslot.DayBounds(day)
	booked, err := e.bookings.FindOverlapping(ctx, clinicID, dayStart, dayEnd, nil)
	if err != nil {
		return nil, e.fail(clinicID, date, "load appointments", err)
	}

	slots := GenerateSlots(day, schedule, duration, e.interval(schedule), booked)
	e.metrics.SlotsComputed.Add(float64(len(slots)))
	return slots, nil
}

func (e *Engine) duration(ctx context.Context, clinicID uuid.UUID, serviceID *uuid.UUID) (time.Duration, error) {
	def := time.Duration(e.cfg.DefaultDurationMinutes) * time.Minute
	if serviceID == nil {
		return def, nil
	}
	svc, err := e.services.Get(ctx, clinicID, *serviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	if svc.DurationMinutes <= 0 {
		return def, nil
	}
	return time.Duration(svc.DurationMinutes) * time.Minute, nil
}

func (e *Engine) interval(day *model.ScheduleDay) time.Duration {
	if day.SlotIntervalMinutes > 0 {
		return time.Duration(day.SlotIntervalMinutes) * time.Minute
	}
	return time.Duration(e.cfg.DefaultIntervalMinutes) * time.Minute
}

func (e *Engine) fail(clinicID uuid.UUID, date, op string, err error) error {
	e.metrics.AvailabilityErrors.Inc()
	e.log.Error(err, "failed to compute available slots",
		"clinic_id", clinicID.String(), "date", date, "op", op)
	return &Error{ClinicID: clinicID, Date: date, Op: op, Err: err}
}

// GenerateSlots walks the work window of day in steps of interval and keeps
// every candidate of the given duration that fits before work end and
// overlaps neither the lunch break nor any booking. Canceled bookings are
// ignored. Malformed windows produce no slots (work) or no exclusion (lunch).
func GenerateSlots(day time.Time, schedule *model.ScheduleDay, duration, interval time.Duration, booked []*model.Appointment) []model.TimeSlot {
	slots := []model.TimeSlot{}
	if duration <= 0 || interval <= 0 {
		return slots
	}

	workStart := schedule.WorkStart.On(day)
	workEnd := schedule.WorkEnd.On(day)

	var lunch *timeslot.Interval
	if ls, le, ok := schedule.LunchWindow(); ok {
		lunch = &timeslot.Interval{Start: ls.On(day), End: le.On(day)}
	}

	for s := workStart; !s.Add(duration).After(workEnd); s = s.Add(interval) {
		candidate := timeslot.Interval{Start: s, End: s.Add(duration)}
		if lunch != nil && candidate.Overlaps(*lunch) {
			continue
		}
		if overlapsAny(candidate, booked) {
			continue
		}
		slots = append(slots, candidate)
	}
	return slots
}

func overlapsAny(candidate timeslot.Interval, booked []*model.Appointment) bool {
	for _, a := range booked {
		if !a.Status.OccupiesTime() {
			continue
		}
		if candidate.Overlaps(a.Interval()) {
			return true
		}
	}
	return false
}
