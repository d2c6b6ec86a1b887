package interpret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthloc/healthloc/pkg/distance"
	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/mip"
	"github.com/healthloc/healthloc/pkg/model"
	"github.com/healthloc/healthloc/pkg/planner/formulate"
)

func threeCities(t *testing.T) *formulate.Instance {
	t.Helper()
	d, err := distance.FromFloats([][]float64{
		{0, 0, 0},
		{5, 0, 0},
		{10, 7, 0},
	}, distance.Lower)
	require.NoError(t, err)
	inst, err := formulate.NewInstance(model.NewTerritory([]string{"A", "B", "C"}, []int{100, 50, 200}), d)
	require.NoError(t, err)
	return inst
}

func optimal(values map[string]float64, objective float64) *mip.Solution {
	return &mip.Solution{Status: mip.StatusOptimal, Values: values, Objective: objective}
}

func TestSectors(t *testing.T) {
	f, err := formulate.FixedFacilities(threeCities(t), formulate.FixedConfig{Facilities: []string{"A"}, Alpha: 0.2})
	require.NoError(t, err)

	sol := optimal(map[string]float64{"x_0_0": 1, "x_1_0": 0.9999999, "x_2_0": 1}, 2250.0/350.0)
	s, err := Sectors(f, sol)
	require.NoError(t, err)

	require.Len(t, s.Sectors, 1)
	assert.Equal(t, "A", s.Sectors[0].FacilityName)
	assert.Equal(t, []int{0, 1, 2}, s.Sectors[0].Members)
	assert.Equal(t, []string{"A", "B", "C"}, s.Sectors[0].MemberNames)
	assert.Equal(t, 350, s.Sectors[0].Population)
	assert.InDelta(t, 350.0/420.0, s.Sectors[0].Load, 1e-9)
	assert.InDelta(t, 6.43, s.Objective, 0.005)
	assert.Equal(t, [][]int{{1}, {1}, {1}}, s.Assignment)
	assert.Equal(t, 0, s.SectorOf(2))
}

func TestSectors_Inconsistent(t *testing.T) {
	f, err := formulate.FixedFacilities(threeCities(t), formulate.FixedConfig{Facilities: []string{"A", "C"}, Alpha: 1})
	require.NoError(t, err)

	tests := []struct {
		name   string
		values map[string]float64
		obj    float64
	}{
		{
			name:   "小数取值",
			values: map[string]float64{"x_0_0": 0.5, "x_0_1": 0.5, "x_1_0": 1, "x_2_1": 1},
		},
		{
			name:   "城市未分配",
			values: map[string]float64{"x_0_0": 1, "x_1_0": 0, "x_1_1": 0, "x_2_1": 1},
		},
		{
			name:   "重复分配",
			values: map[string]float64{"x_0_0": 1, "x_1_0": 1, "x_1_1": 1, "x_2_1": 1},
		},
		{
			name:   "目标值不一致",
			values: map[string]float64{"x_0_0": 1, "x_1_0": 1, "x_2_1": 1},
			obj:    42,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]float64{}
			for i := 0; i < 3; i++ {
				for j := 0; j < 2; j++ {
					values[mip.Name("x", i, j)] = 0
				}
			}
			for k, v := range tt.values {
				values[k] = v
			}
			_, err := Sectors(f, optimal(values, tt.obj))
			require.Error(t, err)
			assert.Equal(t, errors.CodeInconsistentSolution, errors.GetCode(err))
		})
	}
}

func TestSectors_SolverStatus(t *testing.T) {
	f, err := formulate.FixedFacilities(threeCities(t), formulate.FixedConfig{Facilities: []string{"A"}, Alpha: 0.2})
	require.NoError(t, err)

	_, err = Sectors(f, &mip.Solution{Status: mip.StatusInfeasible, Values: map[string]float64{}})
	assert.Equal(t, errors.CodeSolverFailure, errors.GetCode(err))

	_, err = Location(f, optimal(map[string]float64{}, 0))
	assert.Equal(t, errors.CodeInternal, errors.GetCode(err))
}

func jointValues(n int, assign map[[2]int]bool, open ...int) map[string]float64 {
	values := map[string]float64{}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			values[mip.Name("x", i, j)] = 0
			if assign[[2]int{i, j}] {
				values[mip.Name("x", i, j)] = 1
			}
		}
	}
	for j := 0; j < n; j++ {
		values[mip.Name("opt", j)] = 0
	}
	for _, j := range open {
		values[mip.Name("opt", j)] = 1
	}
	return values
}

func TestLocation(t *testing.T) {
	f, err := formulate.JointLocation(threeCities(t), formulate.JointConfig{K: 2, Alpha: 0.2})
	require.NoError(t, err)

	values := jointValues(3, map[[2]int]bool{{0, 0}: true, {1, 0}: true, {2, 2}: true}, 2, 0)
	s, err := Location(f, optimal(values, 250.0/350.0))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, s.Facilities)
	assert.Equal(t, []string{"A", "C"}, s.FacilityNames())
	assert.Equal(t, []int{0, 1}, s.Sectors[0].Members)
	assert.Equal(t, []int{2}, s.Sectors[1].Members)
	assert.Equal(t, [][]int{{1, 0}, {1, 0}, {0, 1}}, s.Assignment)
	assert.InDelta(t, 200.0/210.0, s.MaxLoad(), 1e-9)
}

func TestLocation_Inconsistent(t *testing.T) {
	f, err := formulate.JointLocation(threeCities(t), formulate.JointConfig{K: 2, Alpha: 0.2})
	require.NoError(t, err)

	t.Run("设施数量不符", func(t *testing.T) {
		values := jointValues(3, map[[2]int]bool{{0, 0}: true, {1, 0}: true, {2, 0}: true}, 0)
		_, err := Location(f, optimal(values, 2250.0/350.0))
		assert.Equal(t, errors.CodeInconsistentSolution, errors.GetCode(err))
	})
	t.Run("分配到未开设设施", func(t *testing.T) {
		values := jointValues(3, map[[2]int]bool{{0, 0}: true, {1, 1}: true, {2, 2}: true}, 0, 2)
		_, err := Location(f, optimal(values, 0))
		assert.Equal(t, errors.CodeInconsistentSolution, errors.GetCode(err))
	})
}

func flowFormulation(t *testing.T) *formulate.Formulation {
	t.Helper()
	d, err := distance.FromFloats([][]float64{{0, 8}, {8, 0}}, distance.Lower)
	require.NoError(t, err)
	inst, err := formulate.NewInstance(model.NewTerritory([]string{"North", "South"}, []int{1, 1}), d)
	require.NoError(t, err)
	f, err := formulate.PatientFlow(inst, formulate.FlowConfig{Facilities: []int{0, 1}, Demand: []int{100, 50}})
	require.NoError(t, err)
	return f
}

func TestFlow(t *testing.T) {
	f := flowFormulation(t)
	sol := optimal(map[string]float64{"x_0_0": 99.9999996, "x_0_1": 0, "x_1_0": 1e-7, "x_1_1": 50}, 8e-7)

	p, err := Flow(f, sol)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{100, 0}, {0, 50}}, p.Matrix)
	assert.Equal(t, 0.0, p.Cost)
	assert.Equal(t, []string{"North", "South"}, p.FacilityNames)

	transfers := p.Transfers()
	require.Len(t, transfers, 2)
	for _, tr := range transfers {
		assert.True(t, tr.Local)
		assert.Equal(t, tr.FromName, tr.ToName)
	}
}

func TestFlow_Inconsistent(t *testing.T) {
	f := flowFormulation(t)

	t.Run("需求不符", func(t *testing.T) {
		sol := optimal(map[string]float64{"x_0_0": 90, "x_0_1": 0, "x_1_0": 0, "x_1_1": 50}, 0)
		_, err := Flow(f, sol)
		assert.Equal(t, errors.CodeInconsistentSolution, errors.GetCode(err))
	})
	t.Run("费用不符", func(t *testing.T) {
		sol := optimal(map[string]float64{"x_0_0": 90, "x_0_1": 10, "x_1_0": 0, "x_1_1": 50}, 0)
		_, err := Flow(f, sol)
		assert.Equal(t, errors.CodeInconsistentSolution, errors.GetCode(err))
	})
	t.Run("缺少变量", func(t *testing.T) {
		_, err := Flow(f, optimal(map[string]float64{"x_0_0": 100}, 0))
		assert.Equal(t, errors.CodeInconsistentSolution, errors.GetCode(err))
	})
}

func TestInterpret_Dispatch(t *testing.T) {
	f := flowFormulation(t)
	res, err := Interpret(f, optimal(map[string]float64{"x_0_0": 100, "x_0_1": 0, "x_1_0": 0, "x_1_1": 50}, 0))
	require.NoError(t, err)
	assert.Nil(t, res.Sectorization)
	require.NotNil(t, res.Flow)
	assert.Equal(t, 100, res.Flow.Local(0))
}
