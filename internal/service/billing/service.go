// Package billing manages accounts payable and receivable. One Service is
// built per kind; the settled status of each kind owns a ledger row.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/ledger"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

type Service struct {
	repo   repository.BillRepository
	kind   model.BillKind
	ledger *ledger.Coordinator
	loc    *time.Location
	now    func() time.Time
	log    *logger.Logger
}

func NewService(repo repository.BillRepository, coordinator *ledger.Coordinator, loc *time.Location, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		kind:   repo.Kind(),
		ledger: coordinator,
		loc:    loc,
		now:    time.Now,
		log:    log.With("component", "bills").With("kind", string(repo.Kind())),
	}
}

// StatusChange is the bill after a status change and the fate of its
// ledger row.
type StatusChange struct {
	Bill            *model.Bill `json:"bill"`
	TransactionInfo ledger.Info `json:"transaction_info"`
}

func (s *Service) Kind() model.BillKind {
	return s.kind
}

func (s *Service) resource() string {
	if s.kind == model.BillKindPayable {
		return "account payable"
	}
	return "account receivable"
}

func (s *Service) today() timeslot.Date {
	return timeslot.DateOf(s.now().In(s.loc))
}

func (s *Service) validStatus(status model.BillStatus) error {
	if !status.ValidFor(s.kind) {
		return apperrors.NewBadRequest(fmt.Sprintf("status must be %s or %s", model.BillStatusPending, s.kind.SettledStatus()), nil)
	}
	return nil
}

func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.NewBadRequest("amount must be greater than zero", nil)
	}
	return nil
}

// Create stores a bill. A bill created already settled is realized right
// away and reverted to pending if that fails.
func (s *Service) Create(ctx context.Context, clinicID uuid.UUID, req *model.CreateBillRequest) (*StatusChange, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.NewBadRequest("name is required", nil)
	}
	if err := validAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.DueDate.IsZero() {
		return nil, apperrors.NewBadRequest("due_date is required", nil)
	}
	status := req.Status
	if status == "" {
		status = model.BillStatusPending
	}
	if err := s.validStatus(status); err != nil {
		return nil, err
	}

	bill := &model.Bill{
		ClinicID:    clinicID,
		Kind:        s.kind,
		Name:        req.Name,
		Description: req.Description,
		Amount:      req.Amount,
		DueDate:     req.DueDate,
		Status:      status,
		Category:    req.Category,
	}
	if bill.IsSettled() {
		bill.SettledDate = s.settledDate(req.SettledDate, nil)
	}

	if err := s.repo.Create(ctx, bill); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.resource(), err)
	}
	if !bill.IsSettled() {
		return &StatusChange{Bill: bill, TransactionInfo: ledger.Info{Action: ledger.ActionNone}}, nil
	}

	result := s.ledger.Realize(ctx, ledger.ForBill(bill, s.today()))
	if result.Err != nil {
		return s.compensate(ctx, bill, model.BillStatusPending, nil, result.Err)
	}
	return &StatusChange{Bill: bill, TransactionInfo: result.Info()}, nil
}

func (s *Service) Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Bill, error) {
	bill, err := s.repo.Get(ctx, clinicID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound(s.resource(), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", s.resource(), err)
	}
	return bill, nil
}

func (s *Service) List(ctx context.Context, filters *model.BillFilters) ([]*model.Bill, error) {
	if filters.Status != "" {
		if err := s.validStatus(filters.Status); err != nil {
			return nil, err
		}
	}
	if filters.MinAmount != nil && filters.MaxAmount != nil && filters.MinAmount.GreaterThan(*filters.MaxAmount) {
		return nil, apperrors.NewBadRequest("min_amount must not exceed max_amount", nil)
	}
	bills, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.resource(), err)
	}
	return bills, nil
}

// Update patches the bill's fields. Status and settlement date changes are
// applied through SetStatus.
func (s *Service) Update(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateBillRequest) (*StatusChange, error) {
	if req.Status != nil {
		if err := s.validStatus(*req.Status); err != nil {
			return nil, err
		}
	}
	bill, err := s.Get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, apperrors.NewBadRequest("name must not be empty", nil)
		}
		bill.Name = *req.Name
	}
	if req.Description != nil {
		bill.Description = req.Description
	}
	if req.Amount != nil {
		if err := validAmount(*req.Amount); err != nil {
			return nil, err
		}
		bill.Amount = *req.Amount
	}
	if req.DueDate != nil {
		bill.DueDate = *req.DueDate
	}
	if req.Category != nil {
		bill.Category = req.Category
	}

	if err := s.repo.Update(ctx, bill); err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", s.resource(), err)
	}

	if req.Status != nil && *req.Status != bill.Status {
		return s.SetStatus(ctx, clinicID, id, &model.UpdateBillStatusRequest{Status: *req.Status, SettledDate: req.SettledDate})
	}

	// Update does not write status, so read back what a concurrent status
	// change may have left.
	current, err := s.Get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if req.SettledDate != nil && current.IsSettled() {
		if err := s.repo.UpdateStatus(ctx, clinicID, id, current.Status, req.SettledDate); err != nil {
			return nil, fmt.Errorf("failed to update %s: %w", s.resource(), err)
		}
		current.SettledDate = req.SettledDate
	}
	return &StatusChange{Bill: current, TransactionInfo: ledger.Info{Action: ledger.ActionNone}}, nil
}

// SetStatus marks the bill settled or pending and keeps its ledger row in
// step. A failed realize puts back both the previous status and the
// previous settlement date.
func (s *Service) SetStatus(ctx context.Context, clinicID, id uuid.UUID, req *model.UpdateBillStatusRequest) (*StatusChange, error) {
	if err := s.validStatus(req.Status); err != nil {
		return nil, err
	}
	bill, err := s.Get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	prevStatus, prevSettled := bill.Status, bill.SettledDate

	bill.Status = req.Status
	bill.SettledDate = nil
	if bill.IsSettled() {
		bill.SettledDate = s.settledDate(req.SettledDate, prevSettled)
	}
	if err := s.repo.UpdateStatus(ctx, clinicID, id, bill.Status, bill.SettledDate); err != nil {
		return nil, fmt.Errorf("failed to update %s status: %w", s.resource(), err)
	}

	if !bill.IsSettled() {
		result := s.ledger.Unrealize(ctx, clinicID, s.kind.Origin(), id)
		return &StatusChange{Bill: bill, TransactionInfo: result.Info()}, nil
	}

	result := s.ledger.Realize(ctx, ledger.ForBill(bill, s.today()))
	if result.Err != nil {
		return s.compensate(ctx, bill, prevStatus, prevSettled, result.Err)
	}
	return &StatusChange{Bill: bill, TransactionInfo: result.Info()}, nil
}

// settledDate picks the explicit date, then an existing one, then today.
func (s *Service) settledDate(requested, existing *timeslot.Date) *timeslot.Date {
	if requested != nil && !requested.IsZero() {
		d := *requested
		return &d
	}
	if existing != nil {
		d := *existing
		return &d
	}
	d := s.today()
	return &d
}

func (s *Service) compensate(ctx context.Context, bill *model.Bill, status model.BillStatus, settled *timeslot.Date, cause error) (*StatusChange, error) {
	if err := s.repo.UpdateStatus(ctx, bill.ClinicID, bill.ID, status, settled); err != nil {
		s.log.Error(err, "failed to roll back bill status", "bill_id", bill.ID.String(), "status", string(status))
		return nil, fmt.Errorf("failed to roll back %s status after ledger error %v: %w", s.resource(), cause, err)
	}
	bill.Status = status
	bill.SettledDate = settled
	s.ledger.RecordCompensation(s.kind.Origin(), bill.ID, cause)

	change := &StatusChange{
		Bill: bill,
		TransactionInfo: ledger.Info{
			Action:     ledger.ActionNone,
			Error:      cause.Error(),
			RolledBack: true,
		},
	}
	return change, apperrors.NewCompensation(fmt.Sprintf("%s status was reverted because the transaction could not be created", s.resource()), cause)
}

// Delete removes the bill. Its ledger row, if any, is kept as history.
func (s *Service) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	err := s.repo.Delete(ctx, clinicID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(s.resource(), err)
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", s.resource(), err)
	}
	return nil
}

func (s *Service) Statistics(ctx context.Context, clinicID uuid.UUID) (*model.BillStatistics, error) {
	stats, err := s.repo.Statistics(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s statistics: %w", s.resource(), err)
	}
	return stats, nil
}
