package formulate

import (
	"github.com/healthloc/healthloc/pkg/mip"
	"github.com/healthloc/healthloc/pkg/model"
)

// FixedConfig 变体A配置：给定设施的分区
type FixedConfig struct {
	Facilities []string `json:"facilities" yaml:"facilities"`
	Alpha      float64  `json:"alpha" yaml:"alpha"`
}

// FixedFacilities 构建给定设施的分区模型
//
//	min  Σ_i Σ_j d(i, J_j) · v_i · x_ij / Σ v
//	s.t. Σ_j x_ij = 1            ∀ i
//	     Σ_i v_i · x_ij ≤ gamma  ∀ j
//	     x_ij ∈ {0,1}
func FixedFacilities(inst *Instance, cfg FixedConfig) (*Formulation, error) {
	if err := validateInstance(inst); err != nil {
		return nil, err
	}
	facilities, err := resolveFacilities(inst.Territory, cfg.Facilities)
	if err != nil {
		return nil, err
	}
	if err := validateAlpha(cfg.Alpha); err != nil {
		return nil, err
	}
	total, err := validatePopulation(inst.Territory)
	if err != nil {
		return nil, err
	}

	n, k := inst.N(), len(facilities)
	f := &Formulation{
		Variant:    model.VariantFixedFacility,
		Instance:   inst,
		Model:      mip.NewModel("fixed_facility"),
		Facilities: facilities,
		K:          k,
		Alpha:      cfg.Alpha,
		Gamma:      model.Gamma(cfg.Alpha, k, total),
	}

	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			if err := f.Model.AddVariable(f.AssignVar(i, j), mip.Binary()); err != nil {
				return nil, internal(err)
			}
		}
	}

	if err := addAssignmentConstraints(f, n, k); err != nil {
		return nil, err
	}
	if err := addBalanceConstraints(f, n, k, n); err != nil {
		return nil, err
	}

	pops := inst.Territory.Populations()
	obj := mip.NewExpr()
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			coef := inst.Distances.At(i, facilities[j]) * float64(pops[i]) / float64(total)
			obj = obj.Plus(coef, f.AssignVar(i, j))
		}
	}
	if err := f.Model.SetObjective(obj, mip.Minimize); err != nil {
		return nil, internal(err)
	}
	return f, nil
}

// addAssignmentConstraints 每个城市恰好属于一个分区，编号 c0..c(n-1)
func addAssignmentConstraints(f *Formulation, n, cols int) error {
	for i := 0; i < n; i++ {
		row := make([]string, cols)
		for j := 0; j < cols; j++ {
			row[j] = f.AssignVar(i, j)
		}
		if err := f.Model.AddConstraint(constraintName(i), mip.Sum(row...), mip.Equal, 1); err != nil {
			return internal(err)
		}
	}
	return nil
}

// addBalanceConstraints 每个分区人口不超过 gamma，编号从 offset 开始
func addBalanceConstraints(f *Formulation, n, cols, offset int) error {
	pops := f.Instance.Territory.Populations()
	for j := 0; j < cols; j++ {
		e := mip.NewExpr()
		for i := 0; i < n; i++ {
			e = e.Plus(float64(pops[i]), f.AssignVar(i, j))
		}
		if len(e.Terms) == 0 {
			// 全部城市人口为零时该约束恒成立
			continue
		}
		if err := f.Model.AddConstraint(constraintName(offset+j), e, mip.LessEqual, f.Gamma); err != nil {
			return internal(err)
		}
	}
	return nil
}
