package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/timeslot"
)

// countingRepo counts reads that reach the backing store.
type countingRepo struct {
	repository.ScheduleRepository
	lists int
}

func (c *countingRepo) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.ScheduleDay, error) {
	c.lists++
	return c.ScheduleRepository.ListByClinic(ctx, clinicID)
}

func hm(h, m int) *timeslot.TimeOfDay {
	t := timeslot.NewTimeOfDay(h, m)
	return &t
}

func weekdayInput(w time.Weekday) model.ScheduleDayInput {
	return model.ScheduleDayInput{
		Weekday:   model.Weekday(w),
		IsActive:  true,
		WorkStart: timeslot.NewTimeOfDay(8, 0),
		WorkEnd:   timeslot.NewTimeOfDay(18, 0),
	}
}

func newTestService() (*Service, *countingRepo) {
	backing := &countingRepo{ScheduleRepository: memory.NewStore().Schedules()}
	cached := NewCachedRepository(backing, time.Minute)
	return NewService(cached, 30, logger.Nop()), backing
}

func TestUpsertWeek(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	clinicID := uuid.New()

	monday := weekdayInput(time.Monday)
	monday.HasLunchBreak = true
	monday.LunchStart = hm(12, 0)
	monday.LunchEnd = hm(13, 0)

	week, err := s.UpsertWeek(ctx, clinicID, []model.ScheduleDayInput{weekdayInput(time.Tuesday), monday})
	require.NoError(t, err)
	require.Len(t, week, 2)
	assert.Equal(t, model.Weekday(time.Monday), week[0].Weekday)
	assert.Equal(t, 30, week[0].SlotIntervalMinutes, "interval defaults")

	// A second upsert replaces the day in place.
	monday.WorkEnd = timeslot.NewTimeOfDay(17, 0)
	week, err = s.UpsertWeek(ctx, clinicID, []model.ScheduleDayInput{monday})
	require.NoError(t, err)
	require.Len(t, week, 2)
	assert.Equal(t, "17:00", week[0].WorkEnd.String())
}

func TestUpsertWeek_Validation(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	clinicID := uuid.New()

	_, err := s.UpsertWeek(ctx, clinicID, nil)
	assert.True(t, apperrors.IsBadRequest(err))

	_, err = s.UpsertWeek(ctx, clinicID, []model.ScheduleDayInput{weekdayInput(time.Monday), weekdayInput(time.Monday)})
	assert.True(t, apperrors.IsBadRequest(err))

	inverted := weekdayInput(time.Monday)
	inverted.WorkStart, inverted.WorkEnd = inverted.WorkEnd, inverted.WorkStart
	_, err = s.UpsertWeek(ctx, clinicID, []model.ScheduleDayInput{inverted})
	assert.True(t, apperrors.IsBadRequest(err))

	lunchOutside := weekdayInput(time.Monday)
	lunchOutside.HasLunchBreak = true
	lunchOutside.LunchStart = hm(19, 0)
	lunchOutside.LunchEnd = hm(20, 0)
	_, err = s.UpsertWeek(ctx, clinicID, []model.ScheduleDayInput{lunchOutside})
	assert.True(t, apperrors.IsBadRequest(err))

	missingLunch := weekdayInput(time.Monday)
	missingLunch.HasLunchBreak = true
	_, err = s.UpsertWeek(ctx, clinicID, []model.ScheduleDayInput{missingLunch})
	assert.True(t, apperrors.IsBadRequest(err))

	week, err := s.GetWeek(ctx, clinicID)
	require.NoError(t, err)
	assert.Empty(t, week)
}

func TestUpdateAndDeleteDay(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	clinicID := uuid.New()
	monday := model.Weekday(time.Monday)

	_, err := s.UpdateDay(ctx, clinicID, monday, &model.UpdateScheduleDayRequest{})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = s.UpsertWeek(ctx, clinicID, []model.ScheduleDayInput{weekdayInput(time.Monday)})
	require.NoError(t, err)

	inactive := false
	interval := 20
	day, err := s.UpdateDay(ctx, clinicID, monday, &model.UpdateScheduleDayRequest{IsActive: &inactive, SlotIntervalMinutes: &interval})
	require.NoError(t, err)
	assert.False(t, day.IsActive)
	assert.Equal(t, 20, day.SlotIntervalMinutes)

	stored, err := s.GetDay(ctx, clinicID, monday)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	badEnd := timeslot.NewTimeOfDay(7, 0)
	_, err = s.UpdateDay(ctx, clinicID, monday, &model.UpdateScheduleDayRequest{WorkEnd: &badEnd})
	assert.True(t, apperrors.IsBadRequest(err))

	require.NoError(t, s.DeleteDay(ctx, clinicID, monday))
	_, err = s.GetDay(ctx, clinicID, monday)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(s.DeleteDay(ctx, clinicID, monday)))
}

func TestCachedRepository_InvalidatesOnWrite(t *testing.T) {
	s, backing := newTestService()
	ctx := context.Background()
	clinicID := uuid.New()

	_, err := s.UpsertWeek(ctx, clinicID, []model.ScheduleDayInput{weekdayInput(time.Monday)})
	require.NoError(t, err)
	backing.lists = 0

	for i := 0; i < 3; i++ {
		_, err := s.GetDay(ctx, clinicID, model.Weekday(time.Monday))
		require.NoError(t, err)
	}
	assert.Zero(t, backing.lists, "the week read back by the upsert is cached")

	require.NoError(t, s.DeleteDay(ctx, clinicID, model.Weekday(time.Monday)))
	_, err = s.GetDay(ctx, clinicID, model.Weekday(time.Monday))
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 1, backing.lists)
}

func TestCachedRepository_ReturnsCopies(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	clinicID := uuid.New()
	_, err := s.UpsertWeek(ctx, clinicID, []model.ScheduleDayInput{weekdayInput(time.Monday)})
	require.NoError(t, err)

	day, err := s.GetDay(ctx, clinicID, model.Weekday(time.Monday))
	require.NoError(t, err)
	day.IsActive = false

	again, err := s.GetDay(ctx, clinicID, model.Weekday(time.Monday))
	require.NoError(t, err)
	assert.True(t, again.IsActive)
}
