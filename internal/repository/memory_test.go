package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/model"
	"github.com/healthloc/healthloc/pkg/planner"
)

func memRun(variant model.Variant, objective float64, created time.Time) *planner.Run {
	return &planner.Run{ID: uuid.New(), Variant: variant, Status: "Optimal", Objective: objective, CreatedAt: created}
}

func TestMemoryRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRunRepository(0)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	r1 := memRun(model.VariantFixedFacility, 3, base)
	r2 := memRun(model.VariantJointLocation, 1, base.Add(time.Minute))
	r3 := memRun(model.VariantFixedFacility, 2, base.Add(2*time.Minute))
	for _, r := range []*planner.Run{r1, r2, r3} {
		require.NoError(t, repo.Save(ctx, r))
	}

	got, err := repo.GetByID(ctx, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, r2.Objective, got.Objective)

	list, total, err := repo.List(ctx, DefaultListFilter())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []uuid.UUID{r3.ID, r2.ID, r1.ID}, ids(list))

	list, total, err = repo.List(ctx, ListFilter{Variant: "fixed_facility", OrderBy: "objective", OrderDir: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []uuid.UUID{r3.ID, r1.ID}, ids(list))

	list, total, err = repo.List(ctx, DefaultListFilter().WithLimit(1).WithOffset(1))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []uuid.UUID{r2.ID}, ids(list))

	require.NoError(t, repo.Delete(ctx, r1.ID))
	_, err = repo.GetByID(ctx, r1.ID)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
	assert.True(t, errors.Is(repo.Delete(ctx, r1.ID), errors.CodeNotFound))
}

func TestMemoryRunRepository_Limit(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRunRepository(2)
	runs := []*planner.Run{
		memRun(model.VariantPatientFlow, 1, time.Now()),
		memRun(model.VariantPatientFlow, 2, time.Now()),
		memRun(model.VariantPatientFlow, 3, time.Now()),
	}
	for _, r := range runs {
		require.NoError(t, repo.Save(ctx, r))
	}

	_, err := repo.GetByID(ctx, runs[0].ID)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
	_, total, err := repo.List(ctx, DefaultListFilter())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func ids(list []*RunSummary) []uuid.UUID {
	out := make([]uuid.UUID, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}
