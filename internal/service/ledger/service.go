package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

const maxHistoryMonths = 24

// Service manages hand-entered transactions and ledger reporting.
type Service struct {
	repo repository.TransactionRepository
	loc  *time.Location
	now  func() time.Time
	log  *logger.Logger
}

func NewService(repo repository.TransactionRepository, loc *time.Location, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		loc:  loc,
		now:  time.Now,
		log:  log.With("component", "transactions"),
	}
}

// Today returns the current calendar date in the clinic timezone.
func (s *Service) Today() timeslot.Date {
	return timeslot.DateOf(s.now().In(s.loc))
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.NewBadRequest("amount must be greater than zero", nil)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, clinicID uuid.UUID, req *model.CreateTransactionRequest) (*model.Transaction, error) {
	if !req.Type.Valid() {
		return nil, apperrors.NewBadRequest("type must be entrada or saida", nil)
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	date := req.Date
	if date.IsZero() {
		date = s.Today()
	}

	tx := &model.Transaction{
		ClinicID:    clinicID,
		Date:        date,
		Type:        req.Type,
		Origin:      model.OriginManual,
		Description: req.Description,
		Amount:      req.Amount,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

func (s *Service) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Transaction, error) {
	tx, err := s.repo.Get(ctx, clinicID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("transaction", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// editable loads a transaction and refuses rows owned by a status change.
func (s *Service) editable(ctx context.Context, clinicID, id uuid.UUID) (*model.Transaction, error) {
	tx, err := s.Get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if tx.Origin.SystemManaged() {
		return nil, apperrors.Forbidden(fmt.Sprintf("transactions with origin %s are managed by their source record", tx.Origin))
	}
	return tx, nil
}

func (s *Service) Update(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateTransactionRequest) (*model.Transaction, error) {
	tx, err := s.editable(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}

	if req.Date != nil {
		tx.Date = *req.Date
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			return nil, apperrors.NewBadRequest("type must be entrada or saida", nil)
		}
		tx.Type = *req.Type
	}
	if req.Description != nil {
		tx.Description = *req.Description
	}
	if req.Amount != nil {
		if err := validateAmount(*req.Amount); err != nil {
			return nil, err
		}
		tx.Amount = *req.Amount
	}

	if err := s.repo.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	return tx, nil
}

func (s *Service) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	if _, err := s.editable(ctx, clinicID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, clinicID, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, filters *model.TransactionFilters) ([]*model.Transaction, error) {
	if filters.Type != "" && !filters.Type.Valid() {
		return nil, apperrors.NewBadRequest("invalid type filter", nil)
	}
	if filters.Origin != "" && !filters.Origin.Valid() {
		return nil, apperrors.NewBadRequest("invalid origin filter", nil)
	}
	txs, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// Summary reports this month against the previous one plus today's income.
func (s *Service) Summary(ctx context.Context, clinicID uuid.UUID) (*model.TransactionSummary, error) {
	today := s.Today()
	monthStart := timeslot.NewDate(today.Year(), today.Month(), 1)
	prevStart := monthStart.AddMonths(-1)
	nextStart := monthStart.AddMonths(1)

	current, err := s.repo.Totals(ctx, clinicID, monthStart, nextStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load current month totals: %w", err)
	}
	previous, err := s.repo.Totals(ctx, clinicID, prevStart, monthStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous month totals: %w", err)
	}
	todays, err := s.repo.Totals(ctx, clinicID, today, timeslot.DateOf(today.AddDate(0, 0, 1)))
	if err != nil {
		return nil, fmt.Errorf("failed to load today's totals: %w", err)
	}

	return &model.TransactionSummary{
		CurrentMonth:     model.NewPeriodSummary(monthStart.Format("2006-01"), *current),
		PreviousMonth:    model.NewPeriodSummary(prevStart.Format("2006-01"), *previous),
		TodayRevenue:     todays.Revenue,
		TodayIncomeCount: todays.IncomeCount,
		RevenueChange:    percentChange(current.Revenue, previous.Revenue),
		ExpenseChange:    percentChange(current.Expenses, previous.Expenses),
		ProfitChange:     percentChange(current.Profit(), previous.Profit()),
	}, nil
}

// History returns one summary per month, oldest first, ending with the
// current month.
func (s *Service) History(ctx context.Context, clinicID uuid.UUID, months int) ([]model.PeriodSummary, error) {
	if months <= 0 || months > maxHistoryMonths {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("months must be between 1 and %d", maxHistoryMonths), nil)
	}
	today := s.Today()
	monthStart := timeslot.NewDate(today.Year(), today.Month(), 1)

	out := make([]model.PeriodSummary, 0, months)
	for i := months - 1; i >= 0; i-- {
		from := monthStart.AddMonths(-i)
		totals, err := s.repo.Totals(ctx, clinicID, from, from.AddMonths(1))
		if err != nil {
			return nil, fmt.Errorf("failed to load totals for %s: %w", from.Format("2006-01"), err)
		}
		out = append(out, model.NewPeriodSummary(from.Format("2006-01"), *totals))
	}
	return out, nil
}

// percentChange is (cur-prev)/|prev| in percent, or nil when prev is zero.
func percentChange(cur, prev decimal.Decimal) *decimal.Decimal {
	if prev.IsZero() {
		return nil
	}
	v := cur.Sub(prev).Div(prev.Abs()).Mul(decimal.NewFromInt(100)).Round(2)
	return &v
}
