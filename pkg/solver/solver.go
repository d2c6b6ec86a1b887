// Package solver 定义外部 MILP 求解器的适配接口
//
// 任何满足 Backend 的求解器绑定都可以替换使用，建模层与解释层不依赖
// 具体求解器的变量或约束对象。
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/mip"
)

// Backend 求解器接口
type Backend interface {
	// Name 返回求解器名称
	Name() string

	// DeclareVariable 声明变量
	DeclareVariable(name string, d mip.Domain) error

	// AddConstraint 添加线性约束
	AddConstraint(name string, e mip.Expr, op mip.Op, bound float64) error

	// SetObjective 设置目标函数
	SetObjective(e mip.Expr, sense mip.Sense) error

	// Optimize 执行求解，阻塞直到求解器返回或 ctx 结束
	Optimize(ctx context.Context) (mip.Status, error)

	// ValueOf 返回变量取值
	ValueOf(name string) (float64, error)

	// ObjectiveValue 返回目标函数值
	ObjectiveValue() (float64, error)
}

// Factory 为每次运行创建独立的求解器实例
type Factory func() Backend

// Result 一次提交的结果
type Result struct {
	Solution *mip.Solution
	Backend  string
	Duration time.Duration
}

// Submit 把模型交给求解器并收集全部变量取值
//
// 非 Optimal 状态一律返回 SOLVER_FAILURE，不做重试或松弛。
// ctx 超时或取消时视为 Error 状态。
func Submit(ctx context.Context, b Backend, m *mip.Model) (*Result, error) {
	if err := load(b, m); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "向求解器传递模型失败")
	}

	start := time.Now()
	status, err := b.Optimize(ctx)
	res := &Result{Backend: b.Name(), Duration: time.Since(start)}

	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return res, errors.SolverFailure(mip.StatusError.String()).WithCause(err)
	}
	if status != mip.StatusOptimal {
		return res, errors.SolverFailure(status.String())
	}

	sol := &mip.Solution{
		Status: status,
		Values: make(map[string]float64, m.NumVariables()),
	}
	for _, v := range m.Variables() {
		val, err := b.ValueOf(v.Name)
		if err != nil {
			return res, errors.SolverFailure(mip.StatusError.String()).
				WithCause(fmt.Errorf("读取变量 %s: %w", v.Name, err))
		}
		sol.Values[v.Name] = val
	}
	obj, err := b.ObjectiveValue()
	if err != nil {
		return res, errors.SolverFailure(mip.StatusError.String()).WithCause(err)
	}
	sol.Objective = obj
	res.Solution = sol
	return res, nil
}

// load 按声明顺序传递变量、约束与目标
func load(b Backend, m *mip.Model) error {
	for _, v := range m.Variables() {
		if err := b.DeclareVariable(v.Name, v.Domain); err != nil {
			return err
		}
	}
	for _, c := range m.Constraints() {
		if err := b.AddConstraint(c.Name, c.Expr, c.Op, c.Bound); err != nil {
			return err
		}
	}
	obj := m.Objective()
	return b.SetObjective(obj.Expr, obj.Sense)
}
