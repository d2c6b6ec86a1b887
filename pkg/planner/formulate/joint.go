package formulate

import (
	"github.com/healthloc/healthloc/pkg/mip"
	"github.com/healthloc/healthloc/pkg/model"
)

// JointConfig 变体B配置：设施选址与分区联合求解
type JointConfig struct {
	K     int     `json:"k" yaml:"k"`
	Alpha float64 `json:"alpha" yaml:"alpha"`
}

// JointLocation 构建选址+分区模型
//
//	min  Σ_i Σ_j d(i, j) · v_i · x_ij / Σ v
//	s.t. Σ_j x_ij = 1            ∀ i
//	     Σ_i v_i · x_ij ≤ gamma  ∀ j
//	     x_ij ≤ opt_j            ∀ i, j
//	     Σ_j opt_j = k
//	     x_ij, opt_j ∈ {0,1}
func JointLocation(inst *Instance, cfg JointConfig) (*Formulation, error) {
	if err := validateInstance(inst); err != nil {
		return nil, err
	}
	n := inst.N()
	if err := validateK(cfg.K, n); err != nil {
		return nil, err
	}
	if err := validateAlpha(cfg.Alpha); err != nil {
		return nil, err
	}
	total, err := validatePopulation(inst.Territory)
	if err != nil {
		return nil, err
	}

	f := &Formulation{
		Variant:  model.VariantJointLocation,
		Instance: inst,
		Model:    mip.NewModel("joint_location"),
		K:        cfg.K,
		Alpha:    cfg.Alpha,
		Gamma:    model.Gamma(cfg.Alpha, cfg.K, total),
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if err := f.Model.AddVariable(f.AssignVar(i, j), mip.Binary()); err != nil {
				return nil, internal(err)
			}
		}
	}
	for j := 0; j < n; j++ {
		if err := f.Model.AddVariable(f.OpenVar(j), mip.Binary()); err != nil {
			return nil, internal(err)
		}
	}

	if err := addAssignmentConstraints(f, n, n); err != nil {
		return nil, err
	}
	if err := addBalanceConstraints(f, n, n, n); err != nil {
		return nil, err
	}

	// x_ij - opt_j ≤ 0，编号 c(2n + j·n + i)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			e := mip.NewExpr().Plus(1, f.AssignVar(i, j)).Plus(-1, f.OpenVar(j))
			if err := f.Model.AddConstraint(constraintName(2*n+j*n+i), e, mip.LessEqual, 0); err != nil {
				return nil, internal(err)
			}
		}
	}

	open := make([]string, n)
	for j := 0; j < n; j++ {
		open[j] = f.OpenVar(j)
	}
	if err := f.Model.AddConstraint(constraintName(2*n+n*n), mip.Sum(open...), mip.Equal, float64(cfg.K)); err != nil {
		return nil, internal(err)
	}

	pops := inst.Territory.Populations()
	obj := mip.NewExpr()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			coef := inst.Distances.At(i, j) * float64(pops[i]) / float64(total)
			obj = obj.Plus(coef, f.AssignVar(i, j))
		}
	}
	if err := f.Model.SetObjective(obj, mip.Minimize); err != nil {
		return nil, internal(err)
	}
	return f, nil
}
