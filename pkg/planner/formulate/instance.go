// Package formulate 为三种问题变体构建声明式 MILP 模型
package formulate

import (
	"fmt"

	"github.com/healthloc/healthloc/pkg/distance"
	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/mip"
	"github.com/healthloc/healthloc/pkg/model"
)

// Instance 一个问题实例的不可变输入
type Instance struct {
	Territory *model.Territory
	Distances *distance.Matrix
}

// NewInstance 创建问题实例并校验城市与距离矩阵是否一致
func NewInstance(t *model.Territory, d *distance.Matrix) (*Instance, error) {
	inst := &Instance{Territory: t, Distances: d}
	if err := validateInstance(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// N 返回城市数量
func (inst *Instance) N() int {
	return inst.Territory.Len()
}

// Formulation 建模结果：模型本身以及解释结果所需的上下文
type Formulation struct {
	Variant  model.Variant
	Instance *Instance
	Model    *mip.Model

	// Facilities 变体A/C中为设施城市下标（列顺序）；变体B中为空，候选列为全部城市
	Facilities []int
	K          int
	Alpha      float64
	Gamma      float64

	// 变体C
	Demand   []int
	Capacity int
}

// AssignVar 分配/流量变量名 x_i_j
func (f *Formulation) AssignVar(i, j int) string {
	return mip.Name("x", i, j)
}

// OpenVar 设施开设变量名 opt_j（仅变体B）
func (f *Formulation) OpenVar(j int) string {
	return mip.Name("opt", j)
}

// Columns 返回分配矩阵的列数
func (f *Formulation) Columns() int {
	if f.Variant == model.VariantJointLocation {
		return f.Instance.N()
	}
	return len(f.Facilities)
}

// constraintName 与原始模型一致的约束编号 c<idx>
func constraintName(idx int) string {
	return fmt.Sprintf("c%d", idx)
}

// internal 把建模阶段的编程错误包装为内部错误
func internal(err error) error {
	return errors.Wrap(err, errors.CodeInternal, "构建模型失败")
}
