package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/ledger"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

type failingCreates struct {
	repository.TransactionRepository
	err error
}

func (f *failingCreates) Create(ctx context.Context, tx *model.Transaction) error {
	if f.err != nil {
		return f.err
	}
	return f.TransactionRepository.Create(ctx, tx)
}

// racingBills settles or reopens a bill between the service's read and
// its Update.
type racingBills struct {
	repository.BillRepository
	beforeUpdate func()
}

func (r *racingBills) Update(ctx context.Context, b *model.Bill) error {
	if hook := r.beforeUpdate; hook != nil {
		r.beforeUpdate = nil
		hook()
	}
	return r.BillRepository.Update(ctx, b)
}

type fixture struct {
	store    *memory.Store
	txs      *failingCreates
	payables *Service
	receives *Service
	clinicID uuid.UUID
}

func newFixture() *fixture {
	store := memory.NewStore()
	txs := &failingCreates{TransactionRepository: store.Transactions()}
	coordinator := ledger.NewCoordinator(txs, messaging.NewEventPublisher(messaging.NopBroker{}, "test"),
		logger.Nop(), metrics.NewMetrics("test", nil))

	now := func() time.Time { return time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC) }
	payables := NewService(store.Bills(model.BillKindPayable), coordinator, time.UTC, logger.Nop())
	payables.now = now
	receives := NewService(store.Bills(model.BillKindReceivable), coordinator, time.UTC, logger.Nop())
	receives.now = now

	return &fixture{store: store, txs: txs, payables: payables, receives: receives, clinicID: uuid.New()}
}

func (f *fixture) rows(t *testing.T) []*model.Transaction {
	t.Helper()
	rows, err := f.store.Transactions().List(context.Background(), &model.TransactionFilters{ClinicID: f.clinicID})
	require.NoError(t, err)
	return rows
}

func bill(name string, amount int64) *model.CreateBillRequest {
	return &model.CreateBillRequest{
		Name:    name,
		Amount:  decimal.NewFromInt(amount),
		DueDate: timeslot.NewDate(2025, 4, 10),
	}
}

func TestCreate_PendingHasNoTransaction(t *testing.T) {
	f := newFixture()
	change, err := f.payables.Create(context.Background(), f.clinicID, bill("Aluguel", 2000))
	require.NoError(t, err)
	assert.Equal(t, model.BillStatusPending, change.Bill.Status)
	assert.Nil(t, change.Bill.SettledDate)
	assert.Equal(t, ledger.ActionNone, change.TransactionInfo.Action)
	assert.Empty(t, f.rows(t))
}

func TestCreate_SettledIsRealized(t *testing.T) {
	f := newFixture()
	req := bill("Convênio", 500)
	req.Status = model.BillStatusReceived

	change, err := f.receives.Create(context.Background(), f.clinicID, req)
	require.NoError(t, err)
	assert.Equal(t, ledger.ActionCreated, change.TransactionInfo.Action)
	require.NotNil(t, change.Bill.SettledDate)
	assert.Equal(t, timeslot.NewDate(2025, 4, 2), *change.Bill.SettledDate)

	rows := f.rows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, model.OriginAccountReceivable, rows[0].Origin)
	assert.Equal(t, model.TransactionTypeIncome, rows[0].Type)
	assert.Equal(t, "Recebimento: Convênio", rows[0].Description)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.payables.Create(ctx, f.clinicID, bill("", 10))
	assert.True(t, apperrors.IsBadRequest(err))

	_, err = f.payables.Create(ctx, f.clinicID, bill("Luz", -5))
	assert.True(t, apperrors.IsBadRequest(err))

	req := bill("Luz", 100)
	req.Status = model.BillStatusReceived
	_, err = f.payables.Create(ctx, f.clinicID, req)
	assert.True(t, apperrors.IsBadRequest(err), "recebido is not a payable status")

	req = bill("Luz", 100)
	req.DueDate = timeslot.Date{}
	_, err = f.payables.Create(ctx, f.clinicID, req)
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestSetStatus_PayAndUnpay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.payables.Create(ctx, f.clinicID, bill("Aluguel", 2000))
	require.NoError(t, err)
	id := created.Bill.ID

	paidOn := timeslot.NewDate(2025, 3, 31)
	change, err := f.payables.SetStatus(ctx, f.clinicID, id, &model.UpdateBillStatusRequest{
		Status:      model.BillStatusPaid,
		SettledDate: &paidOn,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.ActionCreated, change.TransactionInfo.Action)

	rows := f.rows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, model.TransactionTypeExpense, rows[0].Type)
	assert.Equal(t, paidOn, rows[0].Date)
	assert.Equal(t, "Pagamento: Aluguel", rows[0].Description)
	assert.True(t, decimal.NewFromInt(2000).Equal(rows[0].Amount))

	change, err = f.payables.SetStatus(ctx, f.clinicID, id, &model.UpdateBillStatusRequest{Status: model.BillStatusPaid})
	require.NoError(t, err)
	assert.Equal(t, ledger.ActionNone, change.TransactionInfo.Action)
	assert.Equal(t, paidOn, *change.Bill.SettledDate, "existing payment date is kept")
	assert.Len(t, f.rows(t), 1)

	change, err = f.payables.SetStatus(ctx, f.clinicID, id, &model.UpdateBillStatusRequest{Status: model.BillStatusPending})
	require.NoError(t, err)
	assert.Equal(t, ledger.ActionDeleted, change.TransactionInfo.Action)
	assert.Nil(t, change.Bill.SettledDate)
	assert.Empty(t, f.rows(t))
}

func TestSetStatus_RollbackRestoresSettlementDate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.receives.Create(ctx, f.clinicID, bill("Particular", 300))
	require.NoError(t, err)

	f.txs.err = errors.New("ledger down")
	change, err := f.receives.SetStatus(ctx, f.clinicID, created.Bill.ID, &model.UpdateBillStatusRequest{Status: model.BillStatusReceived})
	require.Error(t, err)
	assert.True(t, apperrors.IsCompensation(err))
	assert.True(t, change.TransactionInfo.RolledBack)

	stored, err := f.receives.Get(ctx, f.clinicID, created.Bill.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BillStatusPending, stored.Status)
	assert.Nil(t, stored.SettledDate)
	assert.Empty(t, f.rows(t))
}

func TestCreate_SettledRollsBackOnLedgerFailure(t *testing.T) {
	f := newFixture()
	f.txs.err = errors.New("ledger down")
	req := bill("Fornecedor", 80)
	req.Status = model.BillStatusPaid

	change, err := f.payables.Create(context.Background(), f.clinicID, req)
	assert.True(t, apperrors.IsCompensation(err))
	require.NotNil(t, change)

	stored, err := f.payables.Get(context.Background(), f.clinicID, change.Bill.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BillStatusPending, stored.Status)
	assert.Nil(t, stored.SettledDate)
}

func TestUpdate_StatusThroughUpdate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.payables.Create(ctx, f.clinicID, bill("Internet", 120))
	require.NoError(t, err)

	amount := decimal.NewFromInt(130)
	status := model.BillStatusPaid
	change, err := f.payables.Update(ctx, f.clinicID, created.Bill.ID, &model.UpdateBillRequest{Amount: &amount, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, ledger.ActionCreated, change.TransactionInfo.Action)

	rows := f.rows(t)
	require.Len(t, rows, 1)
	assert.True(t, amount.Equal(rows[0].Amount))
}

func TestUpdate_DoesNotRevertConcurrentSettlement(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.payables.Create(ctx, f.clinicID, bill("Internet", 120))
	require.NoError(t, err)

	f.payables.repo = &racingBills{
		BillRepository: f.store.Bills(model.BillKindPayable),
		beforeUpdate: func() {
			_, err := f.payables.SetStatus(ctx, f.clinicID, created.Bill.ID, &model.UpdateBillStatusRequest{Status: model.BillStatusPaid})
			require.NoError(t, err)
		},
	}

	name := "Internet fibra"
	change, err := f.payables.Update(ctx, f.clinicID, created.Bill.ID, &model.UpdateBillRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Internet fibra", change.Bill.Name)
	assert.Equal(t, model.BillStatusPaid, change.Bill.Status)
	require.NotNil(t, change.Bill.SettledDate)
	assert.Equal(t, timeslot.NewDate(2025, 4, 2), *change.Bill.SettledDate)

	stored, err := f.store.Bills(model.BillKindPayable).Get(ctx, f.clinicID, created.Bill.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BillStatusPaid, stored.Status)
	assert.Len(t, f.rows(t), 1)
}

func TestDelete_KeepsTransaction(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	req := bill("Aluguel", 2000)
	req.Status = model.BillStatusPaid
	created, err := f.payables.Create(ctx, f.clinicID, req)
	require.NoError(t, err)

	require.NoError(t, f.payables.Delete(ctx, f.clinicID, created.Bill.ID))
	assert.Len(t, f.rows(t), 1)
	assert.True(t, apperrors.IsNotFound(f.payables.Delete(ctx, f.clinicID, created.Bill.ID)))
}

func TestStatisticsAndList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	paid := bill("Aluguel", 2000)
	paid.Status = model.BillStatusPaid
	_, err := f.payables.Create(ctx, f.clinicID, paid)
	require.NoError(t, err)
	_, err = f.payables.Create(ctx, f.clinicID, bill("Luz", 300))
	require.NoError(t, err)

	stats, err := f.payables.Statistics(ctx, f.clinicID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.True(t, decimal.NewFromInt(2300).Equal(stats.Total))
	assert.True(t, decimal.NewFromInt(2000).Equal(stats.Settled))
	assert.True(t, decimal.NewFromInt(300).Equal(stats.Pending))

	pending, err := f.payables.List(ctx, &model.BillFilters{ClinicID: f.clinicID, Status: model.BillStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Luz", pending[0].Name)

	_, err = f.payables.List(ctx, &model.BillFilters{ClinicID: f.clinicID, Status: model.BillStatusReceived})
	assert.True(t, apperrors.IsBadRequest(err))

	receivables, err := f.receives.List(ctx, &model.BillFilters{ClinicID: f.clinicID})
	require.NoError(t, err)
	assert.Empty(t, receivables)
}
