// Package memory is an in-process implementation of the repository
// interfaces. It backs the API when database.driver is "memory" and is the
// store used by service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Store holds every table. Repositories returned by its constructors share
// the same data and lock.
type Store struct {
	mu           sync.RWMutex
	schedules    map[uuid.UUID]map[model.Weekday]*model.ScheduleDay
	appointments map[uuid.UUID]*model.Appointment
	services     map[uuid.UUID]*model.Service
	bills        map[model.BillKind]map[uuid.UUID]*model.Bill
	transactions map[uuid.UUID]*model.Transaction

	clinicLocks sync.Map // clinic id -> *sync.Mutex
}

func NewStore() *Store {
	return &Store{
		schedules:    make(map[uuid.UUID]map[model.Weekday]*model.ScheduleDay),
		appointments: make(map[uuid.UUID]*model.Appointment),
		services:     make(map[uuid.UUID]*model.Service),
		bills: map[model.BillKind]map[uuid.UUID]*model.Bill{
			model.BillKindPayable:    {},
			model.BillKindReceivable: {},
		},
		transactions: make(map[uuid.UUID]*model.Transaction),
	}
}

func (s *Store) Schedules() repository.ScheduleRepository       { return &scheduleRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository { return &appointmentRepo{s} }
func (s *Store) Services() repository.ServiceRepository         { return &serviceRepo{s} }
func (s *Store) Transactions() repository.TransactionRepository { return &transactionRepo{s} }
func (s *Store) LedgerGaps() repository.LedgerGapRepository     { return &ledgerGapRepo{s} }

func (s *Store) Bills(kind model.BillKind) repository.BillRepository {
	return &billRepo{s: s, kind: kind}
}

func inRange(t time.Time, r model.DateRange, endInclusive bool) bool {
	if r.StartDate != nil && t.Before(*r.StartDate) {
		return false
	}
	if r.EndDate != nil {
		if endInclusive && t.After(*r.EndDate) {
			return false
		}
		if !endInclusive && !t.Before(*r.EndDate) {
			return false
		}
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// --- schedules ---

type scheduleRepo struct{ s *Store }

func (r *scheduleRepo) ListByClinic(_ context.Context, clinicID uuid.UUID) ([]*model.ScheduleDay, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	days := make([]*model.ScheduleDay, 0, 7)
	for _, d := range r.s.schedules[clinicID] {
		cp := *d
		days = append(days, &cp)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Weekday < days[j].Weekday })
	return days, nil
}

func (r *scheduleRepo) GetDay(_ context.Context, clinicID uuid.UUID, weekday model.Weekday) (*model.ScheduleDay, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.schedules[clinicID][weekday]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *scheduleRepo) UpsertDays(_ context.Context, clinicID uuid.UUID, days []*model.ScheduleDay) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	week, ok := r.s.schedules[clinicID]
	if !ok {
		week = make(map[model.Weekday]*model.ScheduleDay)
		r.s.schedules[clinicID] = week
	}
	now := time.Now()
	for _, d := range days {
		d.ClinicID = clinicID
		if existing, ok := week[d.Weekday]; ok {
			d.ID = existing.ID
			d.CreatedAt = existing.CreatedAt
		} else {
			d.ID = uuid.New()
			d.CreatedAt = now
		}
		d.UpdatedAt = now
		cp := *d
		week[d.Weekday] = &cp
	}
	return nil
}

func (r *scheduleRepo) DeleteDay(_ context.Context, clinicID uuid.UUID, weekday model.Weekday) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.schedules[clinicID][weekday]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.schedules[clinicID], weekday)
	return nil
}

// --- services ---

type serviceRepo struct{ s *Store }

func (r *serviceRepo) Create(_ context.Context, svc *model.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	svc.ID = uuid.New()
	svc.CreatedAt = time.Now()
	svc.UpdatedAt = svc.CreatedAt
	cp := *svc
	r.s.services[svc.ID] = &cp
	return nil
}

func (r *serviceRepo) Get(_ context.Context, clinicID, id uuid.UUID) (*model.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.service(clinicID, id)
}

func (s *Store) service(clinicID, id uuid.UUID) (*model.Service, error) {
	svc, ok := s.services[id]
	if !ok || svc.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	cp := *svc
	return &cp, nil
}

func (r *serviceRepo) List(_ context.Context, clinicID uuid.UUID, activeOnly bool) ([]*model.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Service{}
	for _, svc := range r.s.services {
		if svc.ClinicID != clinicID || (activeOnly && !svc.Active) {
			continue
		}
		cp := *svc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Ping always succeeds; it lets the store stand in for the database in
// readiness checks.
func (s *Store) Ping(context.Context) error { return nil }
