package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// CachedRepository keeps each clinic's week in memory. Every write through
// it drops the clinic's entry, so readers in this process never see a stale
// template after a successful write.
type CachedRepository struct {
	repository.ScheduleRepository
	cache *cache.Cache
}

func NewCachedRepository(repo repository.ScheduleRepository, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		ScheduleRepository: repo,
		cache:              cache.New(ttl, 2*ttl),
	}
}

func (r *CachedRepository) week(ctx context.Context, clinicID uuid.UUID) ([]*model.ScheduleDay, error) {
	if cached, found := r.cache.Get(clinicID.String()); found {
		return cached.([]*model.ScheduleDay), nil
	}
	days, err := r.ScheduleRepository.ListByClinic(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	r.cache.Set(clinicID.String(), days, cache.DefaultExpiration)
	return days, nil
}

func (r *CachedRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.ScheduleDay, error) {
	days, err := r.week(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	out := make([]*model.ScheduleDay, len(days))
	for i, d := range days {
		cp := *d
		out[i] = &cp
	}
	return out, nil
}

func (r *CachedRepository) GetDay(ctx context.Context, clinicID uuid.UUID, weekday model.Weekday) (*model.ScheduleDay, error) {
	days, err := r.week(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	for _, d := range days {
		if d.Weekday == weekday {
			cp := *d
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *CachedRepository) UpsertDays(ctx context.Context, clinicID uuid.UUID, days []*model.ScheduleDay) error {
	defer r.Invalidate(clinicID)
	return r.ScheduleRepository.UpsertDays(ctx, clinicID, days)
}

func (r *CachedRepository) DeleteDay(ctx context.Context, clinicID uuid.UUID, weekday model.Weekday) error {
	defer r.Invalidate(clinicID)
	return r.ScheduleRepository.DeleteDay(ctx, clinicID, weekday)
}

func (r *CachedRepository) Invalidate(clinicID uuid.UUID) {
	r.cache.Delete(clinicID.String())
}
