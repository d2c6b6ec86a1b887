// Package interpret 把求解器返回的变量取值还原为分区方案或转运矩阵
//
// 所有结果在返回前都会重新校验模型不变量，违反时返回 INCONSISTENT_SOLUTION，
// 不返回部分结果。
package interpret

import (
	"fmt"
	"math"
	"sort"

	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/mip"
	"github.com/healthloc/healthloc/pkg/model"
	"github.com/healthloc/healthloc/pkg/planner/formulate"
	"github.com/healthloc/healthloc/pkg/validator"
)

const (
	// IntegralityTolerance 0/1 变量允许偏离整数的幅度
	IntegralityTolerance = 1e-6
	// ObjectiveTolerance 求解器目标值与重算值的相对误差
	ObjectiveTolerance = 1e-6
)

var detector = validator.NewConflictDetector(validator.DefaultDetectorConfig())

// Result 按变体解释后的结果，二者只有一个非空
type Result struct {
	Sectorization *model.Sectorization `json:"sectorization,omitempty"`
	Flow          *model.PatientFlow   `json:"flow,omitempty"`
}

// Interpret 按建模结果的变体分派
func Interpret(f *formulate.Formulation, sol *mip.Solution) (*Result, error) {
	switch f.Variant {
	case model.VariantFixedFacility:
		s, err := Sectors(f, sol)
		if err != nil {
			return nil, err
		}
		return &Result{Sectorization: s}, nil
	case model.VariantJointLocation:
		s, err := Location(f, sol)
		if err != nil {
			return nil, err
		}
		return &Result{Sectorization: s}, nil
	case model.VariantPatientFlow:
		p, err := Flow(f, sol)
		if err != nil {
			return nil, err
		}
		return &Result{Flow: p}, nil
	default:
		return nil, errors.New(errors.CodeInternal, fmt.Sprintf("未知的问题变体: %s", f.Variant))
	}
}

// Sectors 解释给定设施分区（变体A）的解
func Sectors(f *formulate.Formulation, sol *mip.Solution) (*model.Sectorization, error) {
	if err := checkSolution(f, sol, model.VariantFixedFacility); err != nil {
		return nil, err
	}
	return sectorize(f, sol, f.Facilities, nil)
}

// Location 解释选址+分区（变体B）的解
//
// 开设的设施按城市下标升序作为分区顺序。
func Location(f *formulate.Formulation, sol *mip.Solution) (*model.Sectorization, error) {
	if err := checkSolution(f, sol, model.VariantJointLocation); err != nil {
		return nil, err
	}

	n := f.Instance.N()
	open := make([]bool, n)
	var facilities []int
	for j := 0; j < n; j++ {
		v, err := binary(sol, f.OpenVar(j))
		if err != nil {
			return nil, err
		}
		if v == 1 {
			open[j] = true
			facilities = append(facilities, j)
		}
	}
	if len(facilities) != f.K {
		return nil, errors.InconsistentSolution(
			fmt.Sprintf("开设了 %d 个设施，期望 %d", len(facilities), f.K)).
			WithField("open", facilities)
	}
	sort.Ints(facilities)

	return sectorize(f, sol, facilities, open)
}

// sectorize 从 x_i_j 构建分区；open 非空时列下标为城市下标，需检查链接约束
func sectorize(f *formulate.Formulation, sol *mip.Solution, facilities []int, open []bool) (*model.Sectorization, error) {
	inst := f.Instance
	n := inst.N()
	cols := f.Columns()

	// 列 -> 分区下标
	sectorOf := make(map[int]int, len(facilities))
	for s, fac := range facilities {
		if open != nil {
			sectorOf[fac] = s
		} else {
			sectorOf[s] = s
		}
	}

	assignment := make([][]int, n)
	sectors := make([]model.Sector, len(facilities))
	for s, fac := range facilities {
		sectors[s] = model.Sector{
			Facility:     fac,
			FacilityName: inst.Territory.Name(fac),
			Members:      []int{},
			MemberNames:  []string{},
		}
	}

	rounded := make(map[string]float64, f.Model.NumVariables())
	for i := 0; i < n; i++ {
		assignment[i] = make([]int, len(facilities))
		count := 0
		for j := 0; j < cols; j++ {
			name := f.AssignVar(i, j)
			v, err := binary(sol, name)
			if err != nil {
				return nil, err
			}
			rounded[name] = float64(v)
			if v == 0 {
				continue
			}
			if open != nil && !open[j] {
				return nil, errors.InconsistentSolution(
					fmt.Sprintf("城市 %s 分配到未开设的设施 %s", inst.Territory.Name(i), inst.Territory.Name(j)))
			}
			count++
			s := sectorOf[j]
			assignment[i][s] = 1
			sectors[s].Members = append(sectors[s].Members, i)
			sectors[s].MemberNames = append(sectors[s].MemberNames, inst.Territory.Name(i))
			sectors[s].Population += inst.Territory.Cities[i].Population
		}
		if count != 1 {
			return nil, errors.InconsistentSolution(
				fmt.Sprintf("城市 %s 被分配到 %d 个分区", inst.Territory.Name(i), count)).
				WithField("city", i)
		}
	}
	if open != nil {
		for j := 0; j < cols; j++ {
			rounded[f.OpenVar(j)] = boolFloat(open[j])
		}
	}

	for s := range sectors {
		if f.Gamma > 0 {
			sectors[s].Load = float64(sectors[s].Population) / f.Gamma
		}
	}

	objective, err := recompute(f, sol, rounded)
	if err != nil {
		return nil, err
	}

	result := &model.Sectorization{
		Variant:    f.Variant,
		Facilities: facilities,
		Sectors:    sectors,
		Assignment: assignment,
		Gamma:      f.Gamma,
		Objective:  objective,
	}
	if err := conflictsToError(detector.DetectSectorization(result, inst.Territory, inst.Distances, f.K)); err != nil {
		return nil, err
	}
	return result, nil
}

// Flow 解释病人转运（变体C）的解，取值四舍五入为整数
func Flow(f *formulate.Formulation, sol *mip.Solution) (*model.PatientFlow, error) {
	if err := checkSolution(f, sol, model.VariantPatientFlow); err != nil {
		return nil, err
	}

	inst := f.Instance
	k := len(f.Facilities)
	matrix := make([][]int, k)
	rounded := make(map[string]float64, k*k)
	for i := 0; i < k; i++ {
		matrix[i] = make([]int, k)
		for j := 0; j < k; j++ {
			name := f.AssignVar(i, j)
			v, ok := sol.Value(name)
			if !ok {
				return nil, errors.InconsistentSolution("缺少变量 " + name)
			}
			matrix[i][j] = int(math.Round(v))
			rounded[name] = float64(matrix[i][j])
		}
	}

	names := make([]string, k)
	for i, fac := range f.Facilities {
		names[i] = inst.Territory.Name(fac)
	}

	cost, err := recompute(f, sol, rounded)
	if err != nil {
		return nil, err
	}

	result := &model.PatientFlow{
		Facilities:    append([]int(nil), f.Facilities...),
		FacilityNames: names,
		Demand:        append([]int(nil), f.Demand...),
		Capacity:      f.Capacity,
		Matrix:        matrix,
		Cost:          cost,
	}
	if err := conflictsToError(detector.DetectFlow(result, inst.Distances)); err != nil {
		return nil, err
	}
	return result, nil
}

func checkSolution(f *formulate.Formulation, sol *mip.Solution, want model.Variant) error {
	if f == nil || f.Model == nil || f.Instance == nil {
		return errors.New(errors.CodeInternal, "建模结果为空")
	}
	if f.Variant != want {
		return errors.New(errors.CodeInternal,
			fmt.Sprintf("变体不匹配: 期望 %s，实际 %s", want, f.Variant))
	}
	if sol == nil || sol.Values == nil {
		return errors.InconsistentSolution("求解结果为空")
	}
	if sol.Status != mip.StatusOptimal {
		return errors.SolverFailure(sol.Status.String())
	}
	return nil
}

// binary 读取 0/1 变量，偏离整数超过容差时视为不一致
func binary(sol *mip.Solution, name string) (int, error) {
	v, ok := sol.Value(name)
	if !ok {
		return 0, errors.InconsistentSolution("缺少变量 " + name)
	}
	r := math.Round(v)
	if math.Abs(v-r) > IntegralityTolerance || (r != 0 && r != 1) {
		return 0, errors.InconsistentSolution(fmt.Sprintf("变量 %s 的取值 %g 不是 0/1", name, v)).
			WithField("var", name)
	}
	return int(r), nil
}

// recompute 用取整后的取值重算目标值并与求解器报告值比较
func recompute(f *formulate.Formulation, sol *mip.Solution, rounded map[string]float64) (float64, error) {
	got := f.Model.Objective().Expr.Evaluate(rounded)
	scale := math.Max(1, math.Abs(got))
	if math.Abs(got-sol.Objective) > ObjectiveTolerance*scale {
		return 0, errors.InconsistentSolution(
			fmt.Sprintf("求解器目标值 %.6f 与重算值 %.6f 不一致", sol.Objective, got)).
			WithField("reported", sol.Objective).
			WithField("recomputed", got)
	}
	return got, nil
}

func conflictsToError(conflicts []validator.Conflict) error {
	if !validator.HasErrors(conflicts) {
		return nil
	}
	return errors.InconsistentSolution(conflicts[0].Message).
		WithField("conflicts", len(conflicts)).
		WithField("type", string(conflicts[0].Type))
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
