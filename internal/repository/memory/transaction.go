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

type transactionRepo struct{ s *Store }

func (r *transactionRepo) Create(_ context.Context, tx *model.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// Same rule as the partial unique index on (clinic_id, origin, origin_id).
	if tx.OriginID != nil {
		if _, ok := r.s.byOrigin(tx.ClinicID, tx.Origin, *tx.OriginID); ok {
			return repository.ErrDuplicate
		}
	}
	tx.ID = uuid.New()
	tx.CreatedAt = time.Now()
	cp := *tx
	r.s.transactions[tx.ID] = &cp
	return nil
}

func (s *Store) byOrigin(clinicID uuid.UUID, origin model.TransactionOrigin, originID uuid.UUID) (*model.Transaction, bool) {
	for _, t := range s.transactions {
		if t.ClinicID == clinicID && t.Origin == origin && t.OriginID != nil && *t.OriginID == originID {
			return t, true
		}
	}
	return nil, false
}

func (r *transactionRepo) Get(_ context.Context, clinicID, id uuid.UUID) (*model.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.transactions[id]
	if !ok || t.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *transactionRepo) Update(_ context.Context, tx *model.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.transactions[tx.ID]
	if !ok || t.ClinicID != tx.ClinicID {
		return repository.ErrNotFound
	}
	t.Date = tx.Date
	t.Type = tx.Type
	t.Description = tx.Description
	t.Amount = tx.Amount
	return nil
}

func (r *transactionRepo) Delete(_ context.Context, clinicID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.transactions[id]
	if !ok || t.ClinicID != clinicID {
		return repository.ErrNotFound
	}
	delete(r.s.transactions, id)
	return nil
}

func (r *transactionRepo) List(_ context.Context, f *model.TransactionFilters) ([]*model.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Transaction{}
	for _, t := range r.s.transactions {
		if t.ClinicID != f.ClinicID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Origin != "" && t.Origin != f.Origin {
			continue
		}
		if f.Query != "" && !containsFold(t.Description, f.Query) {
			continue
		}
		if !inRange(t.Date.Time, f.DateRange, true) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date.Time) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Date.After(out[j].Date.Time)
	})
	return out, nil
}

func (r *transactionRepo) FindByOrigin(_ context.Context, clinicID uuid.UUID, origin model.TransactionOrigin, originID uuid.UUID) (*model.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.byOrigin(clinicID, origin, originID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *transactionRepo) DeleteByOrigin(_ context.Context, clinicID uuid.UUID, origin model.TransactionOrigin, originID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.byOrigin(clinicID, origin, originID)
	if !ok {
		return false, nil
	}
	delete(r.s.transactions, t.ID)
	return true, nil
}

func (r *transactionRepo) Totals(_ context.Context, clinicID uuid.UUID, from, to timeslot.Date) (*model.TransactionTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	totals := &model.TransactionTotals{Revenue: decimal.Zero, Expenses: decimal.Zero}
	for _, t := range r.s.transactions {
		if t.ClinicID != clinicID || t.Date.Before(from.Time) || !t.Date.Before(to.Time) {
			continue
		}
		totals.Count++
		if t.Type == model.TransactionTypeIncome {
			totals.Revenue = totals.Revenue.Add(t.Amount)
			totals.IncomeCount++
		} else {
			totals.Expenses = totals.Expenses.Add(t.Amount)
		}
	}
	return totals, nil
}

type ledgerGapRepo struct{ s *Store }

func (r *ledgerGapRepo) MissingTransactions(_ context.Context, limit int) ([]model.LedgerGap, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var gaps []model.LedgerGap
	add := func(clinicID uuid.UUID, origin model.TransactionOrigin, id uuid.UUID) {
		if len(gaps) >= limit {
			return
		}
		if _, ok := r.s.byOrigin(clinicID, origin, id); !ok {
			gaps = append(gaps, model.LedgerGap{ClinicID: clinicID, Origin: origin, OriginID: id})
		}
	}
	for _, a := range r.s.appointments {
		if a.Status.IsRealized() {
			add(a.ClinicID, model.OriginAppointment, a.ID)
		}
	}
	for kind, table := range r.s.bills {
		for _, b := range table {
			if b.Status == kind.SettledStatus() {
				add(b.ClinicID, kind.Origin(), b.ID)
			}
		}
	}
	return gaps, nil
}

func (r *ledgerGapRepo) StaleTransactions(_ context.Context, limit int) ([]model.LedgerGap, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var gaps []model.LedgerGap
	for _, t := range r.s.transactions {
		if len(gaps) >= limit {
			break
		}
		if t.OriginID == nil {
			continue
		}
		if r.s.entityUnrealized(t) {
			gaps = append(gaps, model.LedgerGap{ClinicID: t.ClinicID, Origin: t.Origin, OriginID: *t.OriginID})
		}
	}
	return gaps, nil
}

// entityUnrealized reports whether t's entity still exists and is not in its
// realized state. Missing entities are not stale.
func (s *Store) entityUnrealized(t *model.Transaction) bool {
	switch t.Origin {
	case model.OriginAppointment:
		a, ok := s.appointments[*t.OriginID]
		return ok && a.ClinicID == t.ClinicID && !a.Status.IsRealized()
	case model.OriginAccountPayable, model.OriginAccountReceivable:
		kind := model.BillKindPayable
		if t.Origin == model.OriginAccountReceivable {
			kind = model.BillKindReceivable
		}
		b, ok := s.bills[kind][*t.OriginID]
		return ok && b.ClinicID == t.ClinicID && b.Status != kind.SettledStatus()
	}
	return false
}
