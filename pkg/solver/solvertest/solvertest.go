// Package solvertest 提供测试用的求解器实现
//
// Stub 返回预置的状态与取值；Enumerator 对小规模纯整数模型做穷举，
// 只用于在测试中得到可靠的最优解。
package solvertest

import (
	"context"
	"fmt"
	"math"

	"github.com/healthloc/healthloc/pkg/mip"
	"github.com/healthloc/healthloc/pkg/solver"
)

// Stub 返回预置结果的求解器
type Stub struct {
	*solver.Recorder
	Status    mip.Status
	Values    map[string]float64
	Objective float64
	Err       error

	// ComputeObjective 为 true 时用预置取值计算目标值
	ComputeObjective bool

	optimized bool
}

// NewStub 创建返回 Optimal 的桩求解器
func NewStub(values map[string]float64, objective float64) *Stub {
	return &Stub{
		Recorder:  solver.NewRecorder("stub"),
		Status:    mip.StatusOptimal,
		Values:    values,
		Objective: objective,
	}
}

// NewStatusStub 创建返回指定状态的桩求解器
func NewStatusStub(status mip.Status) *Stub {
	s := NewStub(nil, 0)
	s.Status = status
	return s
}

// Name 返回求解器名称
func (s *Stub) Name() string {
	return "stub"
}

// Optimize 返回预置状态
func (s *Stub) Optimize(ctx context.Context) (mip.Status, error) {
	if err := ctx.Err(); err != nil {
		return mip.StatusError, err
	}
	s.optimized = true
	return s.Status, s.Err
}

// ValueOf 返回预置取值，未预置的变量为 0
func (s *Stub) ValueOf(name string) (float64, error) {
	if !s.optimized {
		return 0, fmt.Errorf("尚未求解")
	}
	return s.Values[name], nil
}

// ObjectiveValue 返回预置目标值
func (s *Stub) ObjectiveValue() (float64, error) {
	if s.ComputeObjective {
		return s.Model().Objective().Expr.Evaluate(s.Values), nil
	}
	return s.Objective, nil
}

// DefaultMaxCombinations 穷举组合数上限
const DefaultMaxCombinations = 1 << 22

// Enumerator 穷举求解器
type Enumerator struct {
	*solver.Recorder
	MaxCombinations int

	best      map[string]float64
	objective float64
}

// NewEnumerator 创建穷举求解器
func NewEnumerator() *Enumerator {
	return &Enumerator{
		Recorder:        solver.NewRecorder("enumerator"),
		MaxCombinations: DefaultMaxCombinations,
	}
}

// Factory 返回穷举求解器工厂
func Factory() solver.Factory {
	return func() solver.Backend {
		return NewEnumerator()
	}
}

// Name 返回求解器名称
func (e *Enumerator) Name() string {
	return "enumerator"
}

// Optimize 枚举全部整数取值组合，返回目标最优的可行解
func (e *Enumerator) Optimize(ctx context.Context) (mip.Status, error) {
	m := e.Model()
	vars := m.Variables()

	total := 1
	for _, v := range vars {
		if !v.Domain.IsInteger() {
			return mip.StatusError, fmt.Errorf("变量 %s 不是整数变量", v.Name)
		}
		size := int(math.Floor(v.Domain.Upper)-math.Ceil(v.Domain.Lower)) + 1
		if size <= 0 {
			return mip.StatusInfeasible, nil
		}
		total *= size
		if total > e.MaxCombinations {
			return mip.StatusError, fmt.Errorf("组合数超过上限 %d", e.MaxCombinations)
		}
	}

	obj := m.Objective()
	sign := 1.0
	if obj.Sense == mip.Maximize {
		sign = -1.0
	}

	values := make(map[string]float64, len(vars))
	found := false
	bestScore := math.Inf(1)

	var walk func(i int) error
	walk = func(i int) error {
		if i == len(vars) {
			if len(m.Violations(values, 1e-9)) > 0 {
				return nil
			}
			score := sign * obj.Expr.Evaluate(values)
			if !found || score < bestScore-1e-12 {
				found = true
				bestScore = score
				e.best = make(map[string]float64, len(values))
				for k, v := range values {
					e.best[k] = v
				}
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		d := vars[i].Domain
		for v := math.Ceil(d.Lower); v <= math.Floor(d.Upper); v++ {
			values[vars[i].Name] = v
			if err := walk(i + 1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(0); err != nil {
		return mip.StatusError, err
	}
	if !found {
		return mip.StatusInfeasible, nil
	}
	e.objective = obj.Expr.Evaluate(e.best)
	return mip.StatusOptimal, nil
}

// ValueOf 返回最优解中的变量取值
func (e *Enumerator) ValueOf(name string) (float64, error) {
	if e.best == nil {
		return 0, fmt.Errorf("没有可用的解")
	}
	v, ok := e.best[name]
	if !ok {
		return 0, fmt.Errorf("变量 %s 未声明", name)
	}
	return v, nil
}

// ObjectiveValue 返回最优目标值
func (e *Enumerator) ObjectiveValue() (float64, error) {
	if e.best == nil {
		return 0, fmt.Errorf("没有可用的解")
	}
	return e.objective, nil
}
