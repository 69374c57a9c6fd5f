package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guard-backend/internal/wizard"
	"guard-backend/pkg/logging"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	failGet bool
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errors.New("redis down")
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *mapCache) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// countingRepo counts reads reaching the wrapped repository.
type countingRepo struct {
	ReportRepository
	gets int
}

func (c *countingRepo) Get(ctx context.Context, id string) (*wizard.Report, error) {
	c.gets++
	return c.ReportRepository.Get(ctx, id)
}

func TestCachedReportRepository_ReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{ReportRepository: NewMemoryReportRepository()}
	cache := newMapCache()
	repo := newCachedReportRepository(inner, cache, time.Minute, logging.Discard())

	r := wizard.NewReport("c1", time.Now())
	r.Merge(wizard.StepIncidentDetails, wizard.Values{"incident_type": []string{"Other"}})
	require.NoError(t, repo.Create(ctx, r))

	first, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.gets)
	assert.Contains(t, cache.entries, "report:c1")
	assert.Equal(t, first.Section(wizard.StepIncidentDetails), second.Section(wizard.StepIncidentDetails))
	assert.Equal(t, []string{"Other"}, second.Section(wizard.StepIncidentDetails)["incident_type"])

	_, err = repo.Update(ctx, "c1", func(r *wizard.Report) (bool, error) {
		r.CurrentStep = 3
		return true, nil
	})
	require.NoError(t, err)
	assert.NotContains(t, cache.entries, "report:c1")
	assert.Contains(t, cache.entries, "report:c1:version")

	third, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, third.CurrentStep)
	assert.Equal(t, 2, inner.gets)
}

func TestCachedReportRepository_CacheFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{ReportRepository: NewMemoryReportRepository()}
	cache := newMapCache()
	cache.failGet = true
	repo := newCachedReportRepository(inner, cache, time.Minute, logging.Discard())
	require.NoError(t, repo.Create(ctx, wizard.NewReport("c1", time.Now())))

	_, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	_, err = repo.Get(ctx, "missing")
	assert.True(t, wizard.IsNotFound(err))
}

func TestCachedReportRepository_CorruptEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{ReportRepository: NewMemoryReportRepository()}
	cache := newMapCache()
	cache.entries["report:c1"] = []byte("{not json")
	repo := newCachedReportRepository(inner, cache, time.Minute, logging.Discard())
	require.NoError(t, repo.Create(ctx, wizard.NewReport("c1", time.Now())))

	r, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", r.ResponseID)
	assert.Equal(t, 1, inner.gets)
}

// interleavedRepo runs during once, after its Get has read the stored row.
type interleavedRepo struct {
	ReportRepository
	during func()
}

func (r *interleavedRepo) Get(ctx context.Context, id string) (*wizard.Report, error) {
	out, err := r.ReportRepository.Get(ctx, id)
	if r.during != nil {
		during := r.during
		r.during = nil
		during()
	}
	return out, err
}

func TestCachedReportRepository_ReadRacingWriteIsNotServedLater(t *testing.T) {
	ctx := context.Background()
	inner := &interleavedRepo{ReportRepository: NewMemoryReportRepository()}
	cache := newMapCache()
	repo := newCachedReportRepository(inner, cache, time.Minute, logging.Discard())
	require.NoError(t, repo.Create(ctx, wizard.NewReport("c1", time.Now())))

	inner.during = func() {
		_, err := repo.Update(ctx, "c1", func(r *wizard.Report) (bool, error) {
			r.Merge(wizard.StepBeforeYouBegin, wizard.Values{"reported_officially": "No"})
			return true, nil
		})
		require.NoError(t, err)
	}
	stale, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, stale.Section(wizard.StepBeforeYouBegin))

	for i := 0; i < 2; i++ {
		fresh, err := repo.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "No", fresh.Section(wizard.StepBeforeYouBegin)["reported_officially"])
	}
}
