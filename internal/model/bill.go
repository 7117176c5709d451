package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

// BillKind separates accounts payable from accounts receivable. Both share
// one shape and one lifecycle; only the settled status name and the ledger
// direction differ.
type BillKind string

const (
	BillKindPayable    BillKind = "payable"
	BillKindReceivable BillKind = "receivable"
)

func (k BillKind) Valid() bool {
	return k == BillKindPayable || k == BillKindReceivable
}

// SettledStatus is the status that realizes a bill of this kind.
func (k BillKind) SettledStatus() BillStatus {
	if k == BillKindPayable {
		return BillStatusPaid
	}
	return BillStatusReceived
}

// Origin is the ledger origin used for bills of this kind.
func (k BillKind) Origin() TransactionOrigin {
	if k == BillKindPayable {
		return OriginAccountPayable
	}
	return OriginAccountReceivable
}

// TransactionType is the ledger direction of a realized bill.
func (k BillKind) TransactionType() TransactionType {
	if k == BillKindPayable {
		return TransactionTypeExpense
	}
	return TransactionTypeIncome
}

// Table is the backing table name.
func (k BillKind) Table() string {
	if k == BillKindPayable {
		return "accounts_payable"
	}
	return "accounts_receivable"
}

// DescriptionPrefix is prepended to the bill name in ledger descriptions.
func (k BillKind) DescriptionPrefix() string {
	if k == BillKindPayable {
		return "Pagamento"
	}
	return "Recebimento"
}

type BillStatus string

const (
	BillStatusPending  BillStatus = "pendente"
	BillStatusPaid     BillStatus = "pago"
	BillStatusReceived BillStatus = "recebido"
)

// ValidFor reports whether s is allowed for bills of kind k.
func (s BillStatus) ValidFor(k BillKind) bool {
	return s == BillStatusPending || s == k.SettledStatus()
}

type Bill struct {
	Base
	ClinicID    uuid.UUID       `db:"clinic_id" json:"clinic_id"`
	Kind        BillKind        `db:"-" json:"kind"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description,omitempty"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	DueDate     timeslot.Date   `db:"due_date" json:"due_date"`
	Status      BillStatus      `db:"status" json:"status"`
	SettledDate *timeslot.Date  `db:"settled_date" json:"settled_date,omitempty"`
	Category    *string         `db:"category" json:"category,omitempty"`
}

// IsSettled reports whether the bill is in its realized state.
func (b *Bill) IsSettled() bool {
	return b.Status == b.Kind.SettledStatus()
}

type CreateBillRequest struct {
	Name        string          `json:"name" binding:"required,max=200"`
	Description *string         `json:"description" binding:"omitempty,max=1000"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     timeslot.Date   `json:"due_date"`
	Status      BillStatus      `json:"status"`
	SettledDate *timeslot.Date  `json:"settled_date"`
	Category    *string         `json:"category" binding:"omitempty,max=100"`
}

type UpdateBillRequest struct {
	Name        *string          `json:"name" binding:"omitempty,max=200"`
	Description *string          `json:"description" binding:"omitempty,max=1000"`
	Amount      *decimal.Decimal `json:"amount"`
	DueDate     *timeslot.Date   `json:"due_date"`
	Status      *BillStatus      `json:"status"`
	SettledDate *timeslot.Date   `json:"settled_date"`
	Category    *string          `json:"category" binding:"omitempty,max=100"`
}

type UpdateBillStatusRequest struct {
	Status      BillStatus     `json:"status" binding:"required"`
	SettledDate *timeslot.Date `json:"settled_date"`
}

type BillFilters struct {
	ClinicID  uuid.UUID
	Status    BillStatus
	Category  string
	Name      string
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	DateRange
}

// BillStatistics aggregates amounts by settlement state.
type BillStatistics struct {
	Total   decimal.Decimal `db:"total" json:"total"`
	Settled decimal.Decimal `db:"settled" json:"settled"`
	Pending decimal.Decimal `db:"pending" json:"pending"`
	Count   int             `db:"count" json:"count"`
}
