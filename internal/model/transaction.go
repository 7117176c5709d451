package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "entrada"
	TransactionTypeExpense TransactionType = "saida"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

type TransactionOrigin string

const (
	OriginAppointment       TransactionOrigin = "agendamento"
	OriginAccountReceivable TransactionOrigin = "conta_a_receber"
	OriginAccountPayable    TransactionOrigin = "conta_a_pagar"
	OriginManual            TransactionOrigin = "manual"
	OriginStripePayment     TransactionOrigin = "stripe_payment"
)

func (o TransactionOrigin) Valid() bool {
	switch o {
	case OriginAppointment, OriginAccountReceivable, OriginAccountPayable,
		OriginManual, OriginStripePayment:
		return true
	}
	return false
}

// SystemManaged reports whether rows of this origin are owned by a status
// transition and must not be edited by hand.
func (o TransactionOrigin) SystemManaged() bool {
	return o != OriginManual
}

// Transaction is an append-only ledger row.
type Transaction struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	ClinicID    uuid.UUID         `db:"clinic_id" json:"clinic_id"`
	Date        timeslot.Date     `db:"date" json:"date"`
	Type        TransactionType   `db:"type" json:"type"`
	Origin      TransactionOrigin `db:"origin" json:"origin"`
	OriginID    *uuid.UUID        `db:"origin_id" json:"origin_id,omitempty"`
	Description string            `db:"description" json:"description"`
	Amount      decimal.Decimal   `db:"amount" json:"amount"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

type CreateTransactionRequest struct {
	Date        timeslot.Date   `json:"date"`
	Type        TransactionType `json:"type" binding:"required,oneof=entrada saida"`
	Description string          `json:"description" binding:"required,max=500"`
	Amount      decimal.Decimal `json:"amount"`
}

type UpdateTransactionRequest struct {
	Date        *timeslot.Date   `json:"date"`
	Type        *TransactionType `json:"type" binding:"omitempty,oneof=entrada saida"`
	Description *string          `json:"description" binding:"omitempty,max=500"`
	Amount      *decimal.Decimal `json:"amount"`
}

type TransactionFilters struct {
	ClinicID uuid.UUID
	Type     TransactionType
	Origin   TransactionOrigin
	Query    string
	DateRange
}

// TransactionTotals are income and expense sums over one period.
type TransactionTotals struct {
	Revenue     decimal.Decimal `db:"revenue" json:"revenue"`
	Expenses    decimal.Decimal `db:"expenses" json:"expenses"`
	Count       int             `db:"count" json:"count"`
	IncomeCount int             `db:"income_count" json:"income_count"`
}

// Profit is revenue minus expenses.
func (t TransactionTotals) Profit() decimal.Decimal {
	return t.Revenue.Sub(t.Expenses)
}

// TransactionSummary is the dashboard view of the ledger. Change fields are
// percentages against the previous month and null when that month is zero.
type TransactionSummary struct {
	CurrentMonth     PeriodSummary    `json:"current_month"`
	PreviousMonth    PeriodSummary    `json:"previous_month"`
	TodayRevenue     decimal.Decimal  `json:"today_revenue"`
	TodayIncomeCount int              `json:"today_income_count"`
	RevenueChange    *decimal.Decimal `json:"revenue_change_percent"`
	ExpenseChange    *decimal.Decimal `json:"expense_change_percent"`
	ProfitChange     *decimal.Decimal `json:"profit_change_percent"`
}

type PeriodSummary struct {
	Period   string          `json:"period,omitempty"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
	Profit   decimal.Decimal `json:"profit"`
	Count    int             `json:"count"`
}

// NewPeriodSummary converts stored totals into the response shape.
func NewPeriodSummary(period string, t TransactionTotals) PeriodSummary {
	return PeriodSummary{
		Period:   period,
		Revenue:  t.Revenue,
		Expenses: t.Expenses,
		Profit:   t.Profit(),
		Count:    t.Count,
	}
}

// LedgerGap identifies an entity whose ledger row is missing or stale.
type LedgerGap struct {
	ClinicID uuid.UUID         `db:"clinic_id" json:"clinic_id"`
	Origin   TransactionOrigin `db:"origin" json:"origin"`
	OriginID uuid.UUID         `db:"origin_id" json:"origin_id"`
}
