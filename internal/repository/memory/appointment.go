package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type appointmentRepo struct{ s *Store }

// withService attaches the service summary the way the SQL join does.
func (s *Store) withService(a *model.Appointment) *model.Appointment {
	cp := *a
	if svc, ok := s.services[a.ServiceID]; ok {
		cp.Service = svc.Summary()
	}
	return &cp
}

func (r *appointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	cp.Service = nil
	r.s.appointments[a.ID] = &cp
	return nil
}

func (r *appointmentRepo) Get(_ context.Context, clinicID, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.appointments[id]
	if !ok || a.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	return r.s.withService(a), nil
}

func (r *appointmentRepo) Update(_ context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.appointments[a.ID]
	if !ok || existing.ClinicID != a.ClinicID {
		return repository.ErrNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now()
	cp := *a
	cp.Service = nil
	cp.Status = existing.Status
	r.s.appointments[a.ID] = &cp
	return nil
}

func (r *appointmentRepo) UpdateStatus(_ context.Context, clinicID, id uuid.UUID, status model.AppointmentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.appointments[id]
	if !ok || a.ClinicID != clinicID {
		return repository.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	return nil
}

func (r *appointmentRepo) Delete(_ context.Context, clinicID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.appointments[id]
	if !ok || a.ClinicID != clinicID {
		return repository.ErrNotFound
	}
	delete(r.s.appointments, id)
	return nil
}

func (r *appointmentRepo) List(_ context.Context, f *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		if a.ClinicID != f.ClinicID {
			continue
		}
		if f.ServiceID != nil && a.ServiceID != *f.ServiceID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.PatientCPF != "" && a.PatientCPF != f.PatientCPF {
			continue
		}
		if !inRange(a.StartTime, f.DateRange, false) {
			continue
		}
		out = append(out, r.s.withService(a))
	}
	sortByStart(out)
	return out, nil
}

func (r *appointmentRepo) FindOverlapping(_ context.Context, clinicID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		if a.ClinicID != clinicID || !a.Status.OccupiesTime() {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.StartTime.Before(end) && a.EndTime.After(start) {
			out = append(out, r.s.withService(a))
		}
	}
	sortByStart(out)
	return out, nil
}

// WithClinicLock serializes callers per clinic with a mutex, mirroring the
// advisory lock of the SQL store.
func (r *appointmentRepo) WithClinicLock(_ context.Context, clinicID uuid.UUID, fn func(repo repository.AppointmentRepository) error) error {
	m, _ := r.s.clinicLocks.LoadOrStore(clinicID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn(r)
}

func sortByStart(as []*model.Appointment) {
	sort.Slice(as, func(i, j int) bool { return as[i].StartTime.Before(as[j].StartTime) })
}
