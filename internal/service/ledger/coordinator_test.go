package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ uuid.UUID, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return p.err
}

// flakyTransactions wraps a real repository and injects failures.
type flakyTransactions struct {
	repository.TransactionRepository
	createErr       error
	deleteErr       error
	hideExisting    bool
	createCallCount int
}

func (f *flakyTransactions) Create(ctx context.Context, tx *model.Transaction) error {
	f.createCallCount++
	if f.createErr != nil {
		return f.createErr
	}
	return f.TransactionRepository.Create(ctx, tx)
}

func (f *flakyTransactions) FindByOrigin(ctx context.Context, clinicID uuid.UUID, origin model.TransactionOrigin, originID uuid.UUID) (*model.Transaction, error) {
	if f.hideExisting {
		return nil, repository.ErrNotFound
	}
	return f.TransactionRepository.FindByOrigin(ctx, clinicID, origin, originID)
}

func (f *flakyTransactions) DeleteByOrigin(ctx context.Context, clinicID uuid.UUID, origin model.TransactionOrigin, originID uuid.UUID) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return f.TransactionRepository.DeleteByOrigin(ctx, clinicID, origin, originID)
}

func newTestCoordinator(txs repository.TransactionRepository) (*Coordinator, *recordingPublisher, *metrics.Metrics) {
	pub := &recordingPublisher{}
	m := metrics.NewMetrics("test", nil)
	return NewCoordinator(txs, pub, logger.Nop(), m), pub, m
}

func sampleRealization(clinicID uuid.UUID) Realization {
	return Realization{
		ClinicID:    clinicID,
		Origin:      model.OriginAppointment,
		OriginID:    uuid.New(),
		Type:        model.TransactionTypeIncome,
		Amount:      decimal.NewFromInt(150),
		Description: "Agendamento - Limpeza - Ana",
		Date:        timeslot.NewDate(2025, 3, 10),
	}
}

func TestRealize_IsIdempotent(t *testing.T) {
	store := memory.NewStore()
	c, pub, _ := newTestCoordinator(store.Transactions())
	ctx := context.Background()
	clinicID := uuid.New()
	r := sampleRealization(clinicID)

	first := c.Realize(ctx, r)
	require.NoError(t, first.Err)
	assert.Equal(t, ActionCreated, first.Action)

	second := c.Realize(ctx, r)
	require.NoError(t, second.Err)
	assert.Equal(t, ActionNone, second.Action)

	txs, err := store.Transactions().List(ctx, &model.TransactionFilters{ClinicID: clinicID})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.OriginAppointment, txs[0].Origin)
	assert.Equal(t, r.OriginID, *txs[0].OriginID)
	assert.True(t, decimal.NewFromInt(150).Equal(txs[0].Amount))
	assert.Equal(t, []string{messaging.EventTransactionCreated}, pub.events)
}

func TestRealize_DuplicateInsertCountsAsAlreadyRealized(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	r := sampleRealization(uuid.New())

	c, _, _ := newTestCoordinator(store.Transactions())
	require.Equal(t, ActionCreated, c.Realize(ctx, r).Action)

	// A second caller that missed the row on lookup loses the insert race.
	racing, _, _ := newTestCoordinator(&flakyTransactions{TransactionRepository: store.Transactions(), hideExisting: true})
	res := racing.Realize(ctx, r)
	require.NoError(t, res.Err)
	assert.Equal(t, ActionNone, res.Action)
}

func TestRealize_InsertFailureIsReported(t *testing.T) {
	store := memory.NewStore()
	boom := errors.New("insert failed")
	c, pub, _ := newTestCoordinator(&flakyTransactions{TransactionRepository: store.Transactions(), createErr: boom})

	res := c.Realize(context.Background(), sampleRealization(uuid.New()))
	assert.Equal(t, ActionNone, res.Action)
	assert.ErrorIs(t, res.Err, boom)
	assert.Empty(t, pub.events)
	assert.Equal(t, "insert failed", res.Info().Error)
}

func TestRealize_PublishFailureDoesNotFail(t *testing.T) {
	store := memory.NewStore()
	c, pub, _ := newTestCoordinator(store.Transactions())
	pub.err = errors.New("redis down")

	res := c.Realize(context.Background(), sampleRealization(uuid.New()))
	require.NoError(t, res.Err)
	assert.Equal(t, ActionCreated, res.Action)
}

func TestUnrealize(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	c, pub, m := newTestCoordinator(store.Transactions())
	r := sampleRealization(uuid.New())
	require.Equal(t, ActionCreated, c.Realize(ctx, r).Action)

	res := c.Unrealize(ctx, r.ClinicID, r.Origin, r.OriginID)
	require.NoError(t, res.Err)
	assert.Equal(t, ActionDeleted, res.Action)
	assert.Contains(t, pub.events, messaging.EventTransactionDeleted)

	again := c.Unrealize(ctx, r.ClinicID, r.Origin, r.OriginID)
	require.NoError(t, again.Err)
	assert.Equal(t, ActionNone, again.Action)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LedgerActions.WithLabelValues(string(model.OriginAppointment), string(ActionDeleted))))
}

func TestUnrealize_FailureIsCounted(t *testing.T) {
	store := memory.NewStore()
	c, _, m := newTestCoordinator(&flakyTransactions{TransactionRepository: store.Transactions(), deleteErr: errors.New("db gone")})

	res := c.Unrealize(context.Background(), uuid.New(), model.OriginAccountPayable, uuid.New())
	assert.Equal(t, ActionNone, res.Action)
	assert.Error(t, res.Err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CleanupFailures.WithLabelValues(string(model.OriginAccountPayable))))
}

func TestRealizationBuilders(t *testing.T) {
	today := timeslot.NewDate(2025, 3, 10)
	a := &model.Appointment{ClinicID: uuid.New(), PatientName: "Ana"}
	a.ID = uuid.New()
	svc := &model.Service{Name: "Limpeza", Price: decimal.RequireFromString("120.50")}

	r := ForAppointment(a, svc, today)
	assert.Equal(t, "Agendamento - Limpeza - Ana", r.Description)
	assert.Equal(t, model.TransactionTypeIncome, r.Type)
	assert.Equal(t, today, r.Date)
	assert.True(t, svc.Price.Equal(r.Amount))

	paidOn := timeslot.NewDate(2025, 3, 5)
	bill := &model.Bill{ClinicID: uuid.New(), Kind: model.BillKindPayable, Name: "Aluguel", Amount: decimal.NewFromInt(900), SettledDate: &paidOn}
	br := ForBill(bill, today)
	assert.Equal(t, "Pagamento: Aluguel", br.Description)
	assert.Equal(t, model.TransactionTypeExpense, br.Type)
	assert.Equal(t, model.OriginAccountPayable, br.Origin)
	assert.Equal(t, paidOn, br.Date)

	rec := &model.Bill{Kind: model.BillKindReceivable, Name: "Convênio", Amount: decimal.NewFromInt(300)}
	rr := ForBill(rec, today)
	assert.Equal(t, "Recebimento: Convênio", rr.Description)
	assert.Equal(t, model.TransactionTypeIncome, rr.Type)
	assert.Equal(t, today, rr.Date, "unsettled date falls back to today")
}
