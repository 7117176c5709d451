package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

func newTestService(store *memory.Store, now time.Time) *Service {
	s := NewService(store.Transactions(), time.UTC, logger.Nop())
	s.now = func() time.Time { return now }
	return s
}

func TestService_ManualCRUD(t *testing.T) {
	store := memory.NewStore()
	s := newTestService(store, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	clinicID := uuid.New()

	tx, err := s.Create(ctx, clinicID, &model.CreateTransactionRequest{
		Type:        model.TransactionTypeExpense,
		Description: "Material",
		Amount:      decimal.NewFromInt(80),
	})
	require.NoError(t, err)
	assert.Equal(t, model.OriginManual, tx.Origin)
	assert.Equal(t, timeslot.NewDate(2025, 3, 15), tx.Date, "date defaults to today")

	desc := "Material de escritório"
	updated, err := s.Update(ctx, clinicID, tx.ID, &model.UpdateTransactionRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)

	require.NoError(t, s.Delete(ctx, clinicID, tx.ID))
	_, err = s.Get(ctx, clinicID, tx.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_RejectsInvalidInput(t *testing.T) {
	s := newTestService(memory.NewStore(), time.Now())
	ctx := context.Background()

	_, err := s.Create(ctx, uuid.New(), &model.CreateTransactionRequest{Type: "outro", Amount: decimal.NewFromInt(1)})
	assert.True(t, apperrors.IsBadRequest(err))

	_, err = s.Create(ctx, uuid.New(), &model.CreateTransactionRequest{Type: model.TransactionTypeIncome, Amount: decimal.Zero})
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestService_SystemRowsAreReadOnly(t *testing.T) {
	store := memory.NewStore()
	s := newTestService(store, time.Now())
	c, _, _ := newTestCoordinator(store.Transactions())
	ctx := context.Background()

	r := sampleRealization(uuid.New())
	require.Equal(t, ActionCreated, c.Realize(ctx, r).Action)
	row, err := store.Transactions().FindByOrigin(ctx, r.ClinicID, r.Origin, r.OriginID)
	require.NoError(t, err)

	amount := decimal.NewFromInt(1)
	_, err = s.Update(ctx, r.ClinicID, row.ID, &model.UpdateTransactionRequest{Amount: &amount})
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

	err = s.Delete(ctx, r.ClinicID, row.ID)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))
}

func TestService_Summary(t *testing.T) {
	store := memory.NewStore()
	s := newTestService(store, time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	clinicID := uuid.New()

	add := func(date timeslot.Date, typ model.TransactionType, amount int64) {
		_, err := s.Create(ctx, clinicID, &model.CreateTransactionRequest{
			Date: date, Type: typ, Description: "x", Amount: decimal.NewFromInt(amount),
		})
		require.NoError(t, err)
	}
	add(timeslot.NewDate(2025, 2, 3), model.TransactionTypeIncome, 1000)
	add(timeslot.NewDate(2025, 2, 20), model.TransactionTypeExpense, 400)
	add(timeslot.NewDate(2025, 3, 1), model.TransactionTypeIncome, 1500)
	add(timeslot.NewDate(2025, 3, 15), model.TransactionTypeIncome, 200)
	add(timeslot.NewDate(2025, 3, 15), model.TransactionTypeExpense, 100)
	add(timeslot.NewDate(2025, 4, 1), model.TransactionTypeIncome, 999)

	sum, err := s.Summary(ctx, clinicID)
	require.NoError(t, err)

	assert.Equal(t, "2025-03", sum.CurrentMonth.Period)
	assert.True(t, decimal.NewFromInt(1700).Equal(sum.CurrentMonth.Revenue))
	assert.True(t, decimal.NewFromInt(100).Equal(sum.CurrentMonth.Expenses))
	assert.True(t, decimal.NewFromInt(1600).Equal(sum.CurrentMonth.Profit))
	assert.True(t, decimal.NewFromInt(600).Equal(sum.PreviousMonth.Profit))
	assert.True(t, decimal.NewFromInt(200).Equal(sum.TodayRevenue))
	assert.Equal(t, 1, sum.TodayIncomeCount)

	require.NotNil(t, sum.RevenueChange)
	assert.Equal(t, "70", sum.RevenueChange.String())
	require.NotNil(t, sum.ExpenseChange)
	assert.Equal(t, "-75", sum.ExpenseChange.String())
}

func TestService_SummaryWithoutPreviousMonth(t *testing.T) {
	store := memory.NewStore()
	s := newTestService(store, time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	clinicID := uuid.New()

	_, err := s.Create(ctx, clinicID, &model.CreateTransactionRequest{
		Type: model.TransactionTypeIncome, Description: "x", Amount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	sum, err := s.Summary(ctx, clinicID)
	require.NoError(t, err)
	assert.Nil(t, sum.RevenueChange)
	assert.Nil(t, sum.ProfitChange)
}

func TestService_History(t *testing.T) {
	store := memory.NewStore()
	s := newTestService(store, time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	clinicID := uuid.New()

	_, err := s.Create(ctx, clinicID, &model.CreateTransactionRequest{
		Date: timeslot.NewDate(2024, 12, 5), Type: model.TransactionTypeIncome, Description: "x", Amount: decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	hist, err := s.History(ctx, clinicID, 3)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, []string{"2024-11", "2024-12", "2025-01"}, []string{hist[0].Period, hist[1].Period, hist[2].Period})
	assert.True(t, decimal.NewFromInt(50).Equal(hist[1].Revenue))

	_, err = s.History(ctx, clinicID, 0)
	assert.True(t, apperrors.IsBadRequest(err))
}
