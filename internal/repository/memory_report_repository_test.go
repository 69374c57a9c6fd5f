package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guard-backend/internal/model"
	"guard-backend/internal/wizard"
)

func TestMemoryReportRepository_IsolatesCopies(t *testing.T) {
	repo := NewMemoryReportRepository()
	ctx := context.Background()
	r := wizard.NewReport("m1", time.Now())
	require.NoError(t, repo.Create(ctx, r))

	r.Merge(wizard.StepBeforeYouBegin, wizard.Values{"reported_officially": "Yes"})
	stored, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, stored.Section(wizard.StepBeforeYouBegin))
}

func TestMemoryReportRepository_Update(t *testing.T) {
	repo := NewMemoryReportRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, wizard.NewReport("m1", time.Now())))

	_, err := repo.Update(ctx, "m1", func(r *wizard.Report) (bool, error) {
		r.Merge(wizard.StepBeforeYouBegin, wizard.Values{"reported_officially": "No"})
		return false, nil
	})
	require.NoError(t, err)
	stored, _ := repo.Get(ctx, "m1")
	assert.Empty(t, stored.Section(wizard.StepBeforeYouBegin), "unchanged updates are not written")

	_, err = repo.Update(ctx, "m1", func(r *wizard.Report) (bool, error) {
		r.Merge(wizard.StepBeforeYouBegin, wizard.Values{"reported_officially": "No"})
		return true, errors.New("boom")
	})
	assert.Error(t, err)
	stored, _ = repo.Get(ctx, "m1")
	assert.Empty(t, stored.Section(wizard.StepBeforeYouBegin), "failed updates are not written")

	_, err = repo.Update(ctx, "m1", func(r *wizard.Report) (bool, error) {
		r.Merge(wizard.StepBeforeYouBegin, wizard.Values{"reported_officially": "No"})
		return true, nil
	})
	require.NoError(t, err)
	stored, _ = repo.Get(ctx, "m1")
	assert.Equal(t, "No", stored.Section(wizard.StepBeforeYouBegin)["reported_officially"])

	_, err = repo.Update(ctx, "ghost", func(*wizard.Report) (bool, error) { return true, nil })
	assert.True(t, wizard.IsNotFound(err))
}

func TestMemoryReportRepository_Receipts(t *testing.T) {
	repo := NewMemoryReportRepository()
	ctx := context.Background()

	_, err := repo.GetReceipt(ctx, "m1")
	assert.True(t, wizard.IsNotFound(err))

	rec := &model.Receipt{ResponseID: "m1", Path: "x.pdf"}
	require.NoError(t, repo.SaveReceipt(ctx, rec))
	assert.NotZero(t, rec.ID)

	got, err := repo.GetReceipt(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "x.pdf", got.Path)
}
