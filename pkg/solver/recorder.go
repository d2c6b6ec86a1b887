package solver

import (
	"github.com/healthloc/healthloc/pkg/mip"
)

// Recorder 把 Backend 接口上的声明累积为 mip.Model
//
// 供基于文件或命令行的后端嵌入，Optimize 时再整体导出。
type Recorder struct {
	model *mip.Model
}

// NewRecorder 创建记录器
func NewRecorder(name string) *Recorder {
	return &Recorder{model: mip.NewModel(name)}
}

// DeclareVariable 声明变量
func (r *Recorder) DeclareVariable(name string, d mip.Domain) error {
	return r.model.AddVariable(name, d)
}

// AddConstraint 添加约束
func (r *Recorder) AddConstraint(name string, e mip.Expr, op mip.Op, bound float64) error {
	return r.model.AddConstraint(name, e, op, bound)
}

// SetObjective 设置目标
func (r *Recorder) SetObjective(e mip.Expr, sense mip.Sense) error {
	return r.model.SetObjective(e, sense)
}

// Model 返回累积的模型
func (r *Recorder) Model() *mip.Model {
	return r.model
}
