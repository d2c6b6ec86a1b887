package formulate

import (
	"github.com/healthloc/healthloc/pkg/mip"
	"github.com/healthloc/healthloc/pkg/model"
)

// FlowConfig 变体C配置：病人转运分配
type FlowConfig struct {
	// Facilities 设施城市下标；FacilityNames 非空时优先按名称解析
	Facilities    []int    `json:"facilities,omitempty" yaml:"facilities,omitempty"`
	FacilityNames []string `json:"facility_names,omitempty" yaml:"facility_names,omitempty"`
	// Demand 与设施一一对应的病人数 P_i
	Demand []int `json:"demand" yaml:"demand"`
	// Capacity 单个设施容量，0 使用默认值 100
	Capacity int `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	// MaxTotal 需求总量上限，0 使用默认值 500
	MaxTotal int `json:"max_total,omitempty" yaml:"max_total,omitempty"`
}

// PatientFlow 构建病人转运模型
//
//	min  Σ_i Σ_j x_ij · d(J_i, J_j)
//	s.t. Σ_i x_ij ≤ capacity  ∀ j
//	     Σ_j x_ij = P_i       ∀ i
//	     x_ij ∈ {0..capacity}
//
// 设施按城市下标升序排列，需求随之重排。
func PatientFlow(inst *Instance, cfg FlowConfig) (*Formulation, error) {
	if err := validateInstance(inst); err != nil {
		return nil, err
	}

	var facilities []int
	if len(cfg.FacilityNames) > 0 {
		idx, err := resolveFacilities(inst.Territory, cfg.FacilityNames)
		if err != nil {
			return nil, err
		}
		facilities = idx
	} else {
		if err := validateFacilityIndices(inst.N(), cfg.Facilities); err != nil {
			return nil, err
		}
		facilities = cfg.Facilities
	}

	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = model.DefaultFacilityCapacity
	}
	maxTotal := cfg.MaxTotal
	if maxTotal == 0 {
		maxTotal = model.DefaultMaxPatients
	}
	k := len(facilities)
	if err := validateDemand(cfg.Demand, k, capacity, maxTotal); err != nil {
		return nil, err
	}

	facilities, demand := sortFacilities(facilities, cfg.Demand)

	f := &Formulation{
		Variant:    model.VariantPatientFlow,
		Instance:   inst,
		Model:      mip.NewModel("patient_flow"),
		Facilities: facilities,
		K:          k,
		Demand:     demand,
		Capacity:   capacity,
	}

	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if err := f.Model.AddVariable(f.AssignVar(i, j), mip.IntegerRange(0, float64(capacity))); err != nil {
				return nil, internal(err)
			}
		}
	}

	// 容量约束 c0..c(k-1)
	for j := 0; j < k; j++ {
		col := make([]string, k)
		for i := 0; i < k; i++ {
			col[i] = f.AssignVar(i, j)
		}
		if err := f.Model.AddConstraint(constraintName(j), mip.Sum(col...), mip.LessEqual, float64(capacity)); err != nil {
			return nil, internal(err)
		}
	}

	// 需求约束 ck..c(2k-1)
	for i := 0; i < k; i++ {
		row := make([]string, k)
		for j := 0; j < k; j++ {
			row[j] = f.AssignVar(i, j)
		}
		if err := f.Model.AddConstraint(constraintName(k+i), mip.Sum(row...), mip.Equal, float64(demand[i])); err != nil {
			return nil, internal(err)
		}
	}

	obj := mip.NewExpr()
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			obj = obj.Plus(inst.Distances.At(facilities[i], facilities[j]), f.AssignVar(i, j))
		}
	}
	if err := f.Model.SetObjective(obj, mip.Minimize); err != nil {
		return nil, internal(err)
	}
	return f, nil
}
