package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type scheduleRepository struct {
	BaseRepository
}

type appointmentRepository struct {
	BaseRepository
	q    queryer
	inTx bool
}

type serviceRepository struct {
	db queryer
}

type billRepository struct {
	db   queryer
	kind model.BillKind
}

type transactionRepository struct {
	db queryer
}

type ledgerGapRepository struct {
	db queryer
}

func NewScheduleRepository(db *sqlx.DB) repository.ScheduleRepository {
	return &scheduleRepository{NewBaseRepository(db)}
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{BaseRepository: NewBaseRepository(db), q: db}
}

func NewServiceRepository(db *sqlx.DB) repository.ServiceRepository {
	return &serviceRepository{db: db}
}

func NewBillRepository(db *sqlx.DB, kind model.BillKind) repository.BillRepository {
	return &billRepository{db: db, kind: kind}
}

func NewTransactionRepository(db *sqlx.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

func NewLedgerGapRepository(db *sqlx.DB) repository.LedgerGapRepository {
	return &ledgerGapRepository{db: db}
}
