package cbc

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthloc/healthloc/pkg/mip"
	"github.com/healthloc/healthloc/pkg/solver"
)

func TestParseSolution(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		status    mip.Status
		objective float64
		values    map[string]float64
	}{
		{
			name: "最优解",
			input: "Optimal - objective value 6.42857143\n" +
				"      0 x_0_0                  1                       0\n" +
				"      1 x_1_0                  1                       0\n",
			status:    mip.StatusOptimal,
			objective: 6.42857143,
			values:    map[string]float64{"x_0_0": 1, "x_1_0": 1},
		},
		{
			name:   "不可行",
			input:  "Infeasible - objective value 0.00000000\n** 0 x_0_0 0.5 0\n",
			status: mip.StatusInfeasible,
			values: map[string]float64{"x_0_0": 0.5},
		},
		{
			name:   "整数不可行",
			input:  "Integer infeasible - objective value 0\n",
			status: mip.StatusInfeasible,
			values: map[string]float64{},
		},
		{
			name:   "无界",
			input:  "Unbounded - objective value 0\n",
			status: mip.StatusUnbounded,
			values: map[string]float64{},
		},
		{
			name:      "超时",
			input:     "Stopped on time - objective value 12\n",
			status:    mip.StatusError,
			objective: 12,
			values:    map[string]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, obj, values, err := ParseSolution(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.status, status)
			assert.InDelta(t, tt.objective, obj, 1e-9)
			assert.Equal(t, tt.values, values)
		})
	}
}

func TestParseSolution_Errors(t *testing.T) {
	_, _, _, err := ParseSolution(strings.NewReader(""))
	assert.Error(t, err)

	_, _, _, err = ParseSolution(strings.NewReader("Optimal - objective value 1\n 0 x abc 0\n"))
	assert.Error(t, err)
}

func smallModel(t *testing.T) *mip.Model {
	t.Helper()
	m := mip.NewModel("small")
	require.NoError(t, m.AddVariable("x_0", mip.Binary()))
	require.NoError(t, m.AddVariable("x_1", mip.Binary()))
	require.NoError(t, m.AddConstraint("c0", mip.Sum("x_0", "x_1"), mip.Equal, 1))
	require.NoError(t, m.SetObjective(mip.NewExpr().Plus(3, "x_0").Plus(1, "x_1"), mip.Minimize))
	return m
}

func TestBackend_Submit(t *testing.T) {
	b := New(Config{WorkDir: t.TempDir()})
	var gotArgs []string
	b.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		lp, err := os.ReadFile(args[0])
		require.NoError(t, err)
		assert.Contains(t, string(lp), " c0: 1 x_0 + 1 x_1 = 1")

		solPath := args[len(args)-1]
		return nil, os.WriteFile(solPath, []byte("Optimal - objective value 1\n 1 x_1 1 0\n"), 0o644)
	}

	res, err := solver.Submit(context.Background(), b, smallModel(t))
	require.NoError(t, err)
	assert.Equal(t, "cbc", res.Backend)
	assert.Equal(t, 1.0, res.Solution.Objective)
	assert.Equal(t, map[string]float64{"x_0": 0, "x_1": 1}, res.Solution.Values)
	assert.Equal(t, "solve", gotArgs[len(gotArgs)-3])
}

func TestBackend_Infeasible(t *testing.T) {
	b := New(Config{WorkDir: t.TempDir()})
	b.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, os.WriteFile(args[len(args)-1], []byte("Infeasible - objective value 0\n"), 0o644)
	}

	res, err := solver.Submit(context.Background(), b, smallModel(t))
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Nil(t, res.Solution)
	assert.Contains(t, err.Error(), "Infeasible")
}

func TestBackend_ExecFailure(t *testing.T) {
	b := New(Config{WorkDir: t.TempDir(), TimeLimit: 0})
	b.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("boom"), errors.New("exit status 1")
	}

	_, err := solver.Submit(context.Background(), b, smallModel(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error")

	_, err = b.ValueOf("x_0")
	assert.Error(t, err, "未求解时不能读取取值")
}
