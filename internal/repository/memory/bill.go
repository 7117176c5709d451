package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

type billRepo struct {
	s    *Store
	kind model.BillKind
}

func (r *billRepo) table() map[uuid.UUID]*model.Bill {
	return r.s.bills[r.kind]
}

func (r *billRepo) Kind() model.BillKind {
	return r.kind
}

func (r *billRepo) Create(_ context.Context, b *model.Bill) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b.ID = uuid.New()
	b.Kind = r.kind
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	r.table()[b.ID] = &cp
	return nil
}

func (r *billRepo) Get(_ context.Context, clinicID, id uuid.UUID) (*model.Bill, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.table()[id]
	if !ok || b.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *billRepo) Update(_ context.Context, b *model.Bill) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.table()[b.ID]
	if !ok || existing.ClinicID != b.ClinicID {
		return repository.ErrNotFound
	}
	b.Kind = r.kind
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now()
	cp := *b
	cp.Status = existing.Status
	cp.SettledDate = existing.SettledDate
	r.table()[b.ID] = &cp
	return nil
}

func (r *billRepo) UpdateStatus(_ context.Context, clinicID, id uuid.UUID, status model.BillStatus, settledDate *timeslot.Date) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.table()[id]
	if !ok || b.ClinicID != clinicID {
		return repository.ErrNotFound
	}
	b.Status = status
	b.SettledDate = settledDate
	b.UpdatedAt = time.Now()
	return nil
}

func (r *billRepo) Delete(_ context.Context, clinicID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.table()[id]
	if !ok || b.ClinicID != clinicID {
		return repository.ErrNotFound
	}
	delete(r.table(), id)
	return nil
}

func (r *billRepo) List(_ context.Context, f *model.BillFilters) ([]*model.Bill, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Bill{}
	for _, b := range r.table() {
		if b.ClinicID != f.ClinicID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.Category != "" && (b.Category == nil || *b.Category != f.Category) {
			continue
		}
		if f.Name != "" && !containsFold(b.Name, f.Name) {
			continue
		}
		if f.MinAmount != nil && b.Amount.LessThan(*f.MinAmount) {
			continue
		}
		if f.MaxAmount != nil && b.Amount.GreaterThan(*f.MaxAmount) {
			continue
		}
		if !inRange(b.DueDate.Time, f.DateRange, true) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate.Time) })
	return out, nil
}

func (r *billRepo) Statistics(_ context.Context, clinicID uuid.UUID) (*model.BillStatistics, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := &model.BillStatistics{Total: decimal.Zero, Settled: decimal.Zero, Pending: decimal.Zero}
	for _, b := range r.table() {
		if b.ClinicID != clinicID {
			continue
		}
		stats.Count++
		stats.Total = stats.Total.Add(b.Amount)
		switch {
		case b.IsSettled():
			stats.Settled = stats.Settled.Add(b.Amount)
		case b.Status == model.BillStatusPending:
			stats.Pending = stats.Pending.Add(b.Amount)
		}
	}
	return stats, nil
}
