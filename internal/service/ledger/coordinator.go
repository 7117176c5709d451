// Package ledger keeps the transactions table in step with entity status:
// one row per realized appointment or bill, none otherwise.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionDeleted Action = "deleted"
	ActionNone    Action = "none"
)

// Result is the outcome of one side effect. Err is set when the ledger could
// not be brought in line; Action is then ActionNone.
type Result struct {
	Action Action
	Err    error
}

// Info is the transaction_info block returned with a status change.
type Info struct {
	Action     Action `json:"action"`
	Error      string `json:"error,omitempty"`
	RolledBack bool   `json:"rolled_back,omitempty"`
}

func (r Result) Info() Info {
	info := Info{Action: r.Action}
	if r.Err != nil {
		info.Error = r.Err.Error()
	}
	return info
}

// Realization describes the ledger row a realized entity owns.
type Realization struct {
	ClinicID    uuid.UUID
	Origin      model.TransactionOrigin
	OriginID    uuid.UUID
	Type        model.TransactionType
	Amount      decimal.Decimal
	Description string
	Date        timeslot.Date
}

// ForAppointment builds the income row of a completed appointment, dated on
// the day of completion.
func ForAppointment(a *model.Appointment, svc *model.Service, today timeslot.Date) Realization {
	name := svc.Name
	if name == "" {
		name = "Serviço"
	}
	patient := a.PatientName
	if patient == "" {
		patient = "Paciente"
	}
	return Realization{
		ClinicID:    a.ClinicID,
		Origin:      model.OriginAppointment,
		OriginID:    a.ID,
		Type:        model.TransactionTypeIncome,
		Amount:      svc.Price,
		Description: fmt.Sprintf("Agendamento - %s - %s", name, patient),
		Date:        today,
	}
}

// ForBill builds the row of a settled bill, dated on its settlement date.
func ForBill(b *model.Bill, today timeslot.Date) Realization {
	date := today
	if b.SettledDate != nil {
		date = *b.SettledDate
	}
	return Realization{
		ClinicID:    b.ClinicID,
		Origin:      b.Kind.Origin(),
		OriginID:    b.ID,
		Type:        b.Kind.TransactionType(),
		Amount:      b.Amount,
		Description: fmt.Sprintf("%s: %s", b.Kind.DescriptionPrefix(), b.Name),
		Date:        date,
	}
}

type Coordinator struct {
	txs       repository.TransactionRepository
	publisher messaging.Publisher
	log       *logger.Logger
	metrics   *metrics.Metrics
}

func NewCoordinator(txs repository.TransactionRepository, publisher messaging.Publisher, log *logger.Logger, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		txs:       txs,
		publisher: publisher,
		log:       log.With("component", "ledger"),
		metrics:   m,
	}
}

// Realize ensures the row described by r exists. Calling it again for the
// same origin is a no-op, including when a concurrent caller wins the
// insert.
func (c *Coordinator) Realize(ctx context.Context, r Realization) Result {
	existing, err := c.txs.FindByOrigin(ctx, r.ClinicID, r.Origin, r.OriginID)
	if err == nil && existing != nil {
		return c.done(r.Origin, ActionNone)
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Result{Action: ActionNone, Err: err}
	}

	originID := r.OriginID
	tx := &model.Transaction{
		ClinicID:    r.ClinicID,
		Date:        r.Date,
		Type:        r.Type,
		Origin:      r.Origin,
		OriginID:    &originID,
		Description: r.Description,
		Amount:      r.Amount,
	}
	if err := c.txs.Create(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.done(r.Origin, ActionNone)
		}
		return Result{Action: ActionNone, Err: err}
	}

	c.publish(ctx, messaging.EventTransactionCreated, r.ClinicID, tx)
	return c.done(r.Origin, ActionCreated)
}

// Unrealize removes the row owned by (origin, originID) if there is one.
// Failures are reported in the result and counted; callers do not undo the
// status change that triggered the cleanup.
func (c *Coordinator) Unrealize(ctx context.Context, clinicID uuid.UUID, origin model.TransactionOrigin, originID uuid.UUID) Result {
	deleted, err := c.txs.DeleteByOrigin(ctx, clinicID, origin, originID)
	if err != nil {
		c.metrics.CleanupFailures.WithLabelValues(string(origin)).Inc()
		c.log.Warn(err, "failed to remove ledger entry",
			"clinic_id", clinicID.String(), "origin", string(origin), "origin_id", originID.String())
		return Result{Action: ActionNone, Err: err}
	}
	if !deleted {
		return c.done(origin, ActionNone)
	}

	c.publish(ctx, messaging.EventTransactionDeleted, clinicID, map[string]interface{}{
		"origin":    origin,
		"origin_id": originID,
	})
	return c.done(origin, ActionDeleted)
}

// RecordCompensation counts a status rollback after a failed Realize.
func (c *Coordinator) RecordCompensation(origin model.TransactionOrigin, originID uuid.UUID, cause error) {
	c.metrics.Compensations.WithLabelValues(string(origin)).Inc()
	c.log.Warn(cause, "ledger entry not written, status rolled back",
		"origin", string(origin), "origin_id", originID.String())
}

func (c *Coordinator) done(origin model.TransactionOrigin, action Action) Result {
	c.metrics.LedgerActions.WithLabelValues(string(origin), string(action)).Inc()
	return Result{Action: action}
}

func (c *Coordinator) publish(ctx context.Context, eventType string, clinicID uuid.UUID, payload interface{}) {
	if err := c.publisher.Publish(ctx, eventType, clinicID, payload); err != nil {
		c.log.Warn(err, "failed to publish ledger event", "event", eventType)
	}
}
