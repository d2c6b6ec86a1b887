package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthloc/healthloc/internal/database"
	"github.com/healthloc/healthloc/internal/database/dbtest"
	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/model"
	"github.com/healthloc/healthloc/pkg/planner"
)

func sampleRun() *planner.Run {
	return &planner.Run{
		ID:        uuid.New(),
		Variant:   model.VariantFixedFacility,
		Backend:   "cbc",
		Status:    "optimal",
		K:         2,
		Alpha:     0.2,
		Gamma:     420,
		Objective: 2250,
		Sectorization: &model.Sectorization{
			Variant:    model.VariantFixedFacility,
			Facilities: []int{0, 2},
			Sectors: []model.Sector{
				{Facility: 0, FacilityName: "A", Members: []int{0, 1}, MemberNames: []string{"A", "B"}, Population: 400, Load: 0.95},
				{Facility: 2, FacilityName: "C", Members: []int{2}, MemberNames: []string{"C"}, Population: 440, Load: 1.05},
			},
			Gamma:     420,
			Objective: 2250,
		},
		Duration:  1500 * time.Millisecond,
		CreatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func newRepo(h dbtest.Handler) (*RunRepository, *dbtest.Driver) {
	drv := dbtest.New(h)
	return NewRunRepository(database.Wrap(drv.DB())), drv
}

func TestRunRepository_Save(t *testing.T) {
	repo, drv := newRepo(nil)
	run := sampleRun()

	require.NoError(t, repo.Save(context.Background(), run))

	inserts := drv.CallsMatching("INSERT INTO planning_runs")
	require.Len(t, inserts, 1)
	args := inserts[0].Args
	require.Len(t, args, 12)
	assert.Equal(t, run.ID.String(), args[0])
	assert.Equal(t, "fixed_facility", args[1])
	assert.Equal(t, 2250.0, args[4])
	assert.Equal(t, `{"A","C"}`, args[8])
	assert.Equal(t, int64(1500*time.Millisecond), args[9])

	var stored planner.Run
	require.NoError(t, json.Unmarshal(args[10].([]byte), &stored))
	assert.Equal(t, run.ID, stored.ID)

	assert.Len(t, drv.CallsMatching("INSERT INTO planning_sectors"), 2)
	assert.Empty(t, drv.CallsMatching("INSERT INTO planning_flows"))
	assert.Equal(t, 1, drv.Commits())
	assert.Equal(t, 0, drv.Rollbacks())
}

func TestRunRepository_SaveFlow(t *testing.T) {
	repo, drv := newRepo(nil)
	run := &planner.Run{
		ID:      uuid.New(),
		Variant: model.VariantPatientFlow,
		Flow: &model.PatientFlow{
			FacilityNames: []string{"A", "B"},
			Matrix:        [][]int{{30, 10}, {0, 20}},
		},
		CreatedAt: time.Now(),
	}

	require.NoError(t, repo.Save(context.Background(), run))

	flows := drv.CallsMatching("INSERT INTO planning_flows")
	require.Len(t, flows, 3)
	assert.Equal(t, "A", flows[1].Args[1])
	assert.Equal(t, "B", flows[1].Args[2])
	assert.Equal(t, int64(10), flows[1].Args[3])
}

func TestRunRepository_SaveRollsBack(t *testing.T) {
	repo, drv := newRepo(func(query string, _ []driver.Value) dbtest.Result {
		if strings.Contains(query, "planning_sectors") {
			return dbtest.Result{Err: assert.AnError}
		}
		return dbtest.Result{RowsAffected: 1}
	})

	err := repo.Save(context.Background(), sampleRun())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeDatabaseError))
	assert.Equal(t, 0, drv.Commits())
	assert.Equal(t, 1, drv.Rollbacks())
}

func TestRunRepository_GetByID(t *testing.T) {
	run := sampleRun()
	payload, err := json.Marshal(run)
	require.NoError(t, err)

	repo, drv := newRepo(func(string, []driver.Value) dbtest.Result {
		return dbtest.Result{Columns: []string{"payload"}, Rows: [][]driver.Value{{payload}}}
	})

	got, err := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, []string{"A", "C"}, got.Sectorization.FacilityNames())

	calls := drv.CallsMatching("SELECT payload")
	require.Len(t, calls, 1)
	assert.Equal(t, run.ID.String(), calls[0].Args[0])
}

func TestRunRepository_GetByIDNotFound(t *testing.T) {
	repo, _ := newRepo(func(string, []driver.Value) dbtest.Result {
		return dbtest.Result{Columns: []string{"payload"}}
	})

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestRunRepository_List(t *testing.T) {
	id := uuid.New()
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	repo, drv := newRepo(func(query string, _ []driver.Value) dbtest.Result {
		if strings.Contains(query, "COUNT(*)") {
			return dbtest.Result{Columns: []string{"count"}, Rows: [][]driver.Value{{int64(7)}}}
		}
		return dbtest.Result{
			Columns: []string{"id", "variant", "backend", "status", "objective", "k", "facilities", "duration", "created_at"},
			Rows: [][]driver.Value{
				{id.String(), "joint_location", "cbc", "optimal", 350.0, int64(2), []byte("{A,C}"), int64(time.Second), created},
			},
		}
	})

	filter := DefaultListFilter().WithVariant("joint_location").WithLimit(5).WithOffset(10)
	runs, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, []string{"A", "C"}, runs[0].Facilities)
	assert.Equal(t, time.Second, runs[0].Duration)
	assert.Equal(t, 2, runs[0].K)

	selects := drv.CallsMatching("LIMIT")
	require.Len(t, selects, 1)
	assert.Contains(t, selects[0].Query, "variant = $1")
	assert.Contains(t, selects[0].Query, "ORDER BY created_at DESC")
	assert.Equal(t, []driver.Value{"joint_location", int64(5), int64(10)}, selects[0].Args)
}

func TestRunRepository_Delete(t *testing.T) {
	repo, _ := newRepo(func(string, []driver.Value) dbtest.Result {
		return dbtest.Result{RowsAffected: 0}
	})
	err := repo.Delete(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestListFilter_OrderClause(t *testing.T) {
	f := ListFilter{OrderBy: "objective; DROP TABLE", OrderDir: "asc"}
	assert.Equal(t, "ORDER BY created_at ASC", f.orderClause())

	f = ListFilter{OrderBy: "objective"}
	assert.Equal(t, "ORDER BY objective DESC", f.orderClause())
}

func TestMigrate(t *testing.T) {
	drv := dbtest.New(nil)
	require.NoError(t, Migrate(context.Background(), database.Wrap(drv.DB())))
	assert.Len(t, drv.Calls(), len(schema))
	assert.Len(t, drv.CallsMatching("CREATE TABLE"), 3)
}
