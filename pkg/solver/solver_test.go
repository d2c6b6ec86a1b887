package solver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/mip"
	"github.com/healthloc/healthloc/pkg/solver"
	"github.com/healthloc/healthloc/pkg/solver/solvertest"
)

func knapsack(t *testing.T) *mip.Model {
	t.Helper()
	m := mip.NewModel("knapsack")
	require.NoError(t, m.AddVariable("a", mip.Binary()))
	require.NoError(t, m.AddVariable("b", mip.Binary()))
	require.NoError(t, m.AddVariable("c", mip.IntegerRange(0, 2)))
	require.NoError(t, m.AddConstraint("weight", mip.NewExpr().Plus(3, "a").Plus(4, "b").Plus(2, "c"), mip.LessEqual, 6))
	require.NoError(t, m.SetObjective(mip.NewExpr().Plus(4, "a").Plus(5, "b").Plus(3, "c"), mip.Maximize))
	return m
}

func TestSubmit_Enumerator(t *testing.T) {
	res, err := solver.Submit(context.Background(), solvertest.NewEnumerator(), knapsack(t))
	require.NoError(t, err)

	// b + c = 5 + 3, weight 6
	assert.Equal(t, 8.0, res.Solution.Objective)
	assert.Equal(t, mip.StatusOptimal, res.Solution.Status)
	assert.Equal(t, "enumerator", res.Backend)
	assert.Len(t, res.Solution.Values, 3)
}

func TestSubmit_NonOptimal(t *testing.T) {
	for _, status := range []mip.Status{mip.StatusInfeasible, mip.StatusUnbounded, mip.StatusError} {
		t.Run(status.String(), func(t *testing.T) {
			res, err := solver.Submit(context.Background(), solvertest.NewStatusStub(status), knapsack(t))
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeSolverFailure))
			assert.Nil(t, res.Solution)

			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, status.String(), appErr.Fields["status"])
		})
	}
}

func TestSubmit_BackendError(t *testing.T) {
	stub := solvertest.NewStub(nil, 0)
	stub.Err = errors.New("license expired")

	_, err := solver.Submit(context.Background(), stub, knapsack(t))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeSolverFailure))
	assert.ErrorContains(t, err, "license expired")
}

func TestSubmit_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := solver.Submit(ctx, solvertest.NewEnumerator(), knapsack(t))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeSolverFailure))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubmit_Infeasible(t *testing.T) {
	m := mip.NewModel("infeasible")
	require.NoError(t, m.AddVariable("a", mip.Binary()))
	require.NoError(t, m.AddConstraint("c0", mip.Sum("a"), mip.GreaterEqual, 2))
	require.NoError(t, m.SetObjective(mip.Sum("a"), mip.Minimize))

	_, err := solver.Submit(context.Background(), solvertest.NewEnumerator(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Infeasible")
}
