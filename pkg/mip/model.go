// Package mip 定义与求解器无关的声明式混合整数线性规划模型
//
// 建模层只产出变量、线性约束与线性目标，不依赖任何求解器的对象类型。
package mip

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind 变量类型
type Kind int

const (
	KindBinary Kind = iota
	KindInteger
	KindContinuous
)

// String 返回变量类型名称
func (k Kind) String() string {
	switch k {
	case KindBinary:
		return "binary"
	case KindInteger:
		return "integer"
	default:
		return "continuous"
	}
}

// Domain 变量定义域
type Domain struct {
	Kind  Kind    `json:"kind"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Binary 0/1 变量
func Binary() Domain {
	return Domain{Kind: KindBinary, Lower: 0, Upper: 1}
}

// IntegerRange 有界整数变量
func IntegerRange(lower, upper float64) Domain {
	return Domain{Kind: KindInteger, Lower: lower, Upper: upper}
}

// ContinuousRange 连续变量
func ContinuousRange(lower, upper float64) Domain {
	return Domain{Kind: KindContinuous, Lower: lower, Upper: upper}
}

// IsInteger 是否为整数类变量
func (d Domain) IsInteger() bool {
	return d.Kind == KindBinary || d.Kind == KindInteger
}

// Contains 检查取值是否落在定义域内
func (d Domain) Contains(v, tol float64) bool {
	if v < d.Lower-tol || v > d.Upper+tol {
		return false
	}
	if d.IsInteger() && math.Abs(v-math.Round(v)) > tol {
		return false
	}
	return true
}

// Variable 决策变量
type Variable struct {
	Name   string `json:"name"`
	Domain Domain `json:"domain"`
}

// Name 生成形如 x_0_1 的变量名
func Name(prefix string, idx ...int) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, i := range idx {
		b.WriteByte('_')
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

// Op 比较运算符
type Op string

const (
	LessEqual    Op = "<="
	GreaterEqual Op = ">="
	Equal        Op = "="
)

// Sense 优化方向
type Sense string

const (
	Minimize Sense = "minimize"
	Maximize Sense = "maximize"
)

// Constraint 线性约束: Expr Op Bound
type Constraint struct {
	Name  string  `json:"name"`
	Expr  Expr    `json:"expr"`
	Op    Op      `json:"op"`
	Bound float64 `json:"bound"`
}

// Satisfied 检查约束在给定取值下是否成立
func (c Constraint) Satisfied(values map[string]float64, tol float64) bool {
	lhs := c.Expr.Evaluate(values)
	switch c.Op {
	case LessEqual:
		return lhs <= c.Bound+tol
	case GreaterEqual:
		return lhs >= c.Bound-tol
	default:
		return math.Abs(lhs-c.Bound) <= tol
	}
}

// Objective 线性目标
type Objective struct {
	Expr  Expr  `json:"expr"`
	Sense Sense `json:"sense"`
}

// Model 声明式模型
type Model struct {
	Name        string
	variables   []Variable
	byName      map[string]int
	constraints []Constraint
	objective   Objective
}

// NewModel 创建空模型
func NewModel(name string) *Model {
	return &Model{
		Name:      name,
		byName:    make(map[string]int),
		objective: Objective{Sense: Minimize},
	}
}

// AddVariable 声明变量
func (m *Model) AddVariable(name string, d Domain) error {
	if name == "" {
		return fmt.Errorf("变量名不能为空")
	}
	if _, exists := m.byName[name]; exists {
		return fmt.Errorf("变量 %s 重复声明", name)
	}
	if d.Lower > d.Upper {
		return fmt.Errorf("变量 %s 的下界 %g 大于上界 %g", name, d.Lower, d.Upper)
	}
	m.byName[name] = len(m.variables)
	m.variables = append(m.variables, Variable{Name: name, Domain: d})
	return nil
}

// AddConstraint 添加线性约束，表达式中的变量必须已声明
func (m *Model) AddConstraint(name string, e Expr, op Op, bound float64) error {
	switch op {
	case LessEqual, GreaterEqual, Equal:
	default:
		return fmt.Errorf("约束 %s 的运算符 %q 无效", name, op)
	}
	if len(e.Terms) == 0 {
		return fmt.Errorf("约束 %s 的表达式为空", name)
	}
	if err := m.checkTerms(e); err != nil {
		return fmt.Errorf("约束 %s: %w", name, err)
	}
	m.constraints = append(m.constraints, Constraint{Name: name, Expr: e, Op: op, Bound: bound})
	return nil
}

// SetObjective 设置目标函数
func (m *Model) SetObjective(e Expr, sense Sense) error {
	if sense != Minimize && sense != Maximize {
		return fmt.Errorf("优化方向 %q 无效", sense)
	}
	if err := m.checkTerms(e); err != nil {
		return fmt.Errorf("目标函数: %w", err)
	}
	m.objective = Objective{Expr: e, Sense: sense}
	return nil
}

func (m *Model) checkTerms(e Expr) error {
	for _, t := range e.Terms {
		if _, ok := m.byName[t.Var]; !ok {
			return fmt.Errorf("变量 %s 未声明", t.Var)
		}
	}
	return nil
}

// Variables 返回按声明顺序排列的变量
func (m *Model) Variables() []Variable {
	out := make([]Variable, len(m.variables))
	copy(out, m.variables)
	return out
}

// Variable 按名称查找变量
func (m *Model) Variable(name string) (Variable, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Variable{}, false
	}
	return m.variables[i], true
}

// Constraints 返回按添加顺序排列的约束
func (m *Model) Constraints() []Constraint {
	out := make([]Constraint, len(m.constraints))
	copy(out, m.constraints)
	return out
}

// Objective 返回目标函数
func (m *Model) Objective() Objective {
	return m.objective
}

// NumVariables 变量数量
func (m *Model) NumVariables() int {
	return len(m.variables)
}

// NumConstraints 约束数量
func (m *Model) NumConstraints() int {
	return len(m.constraints)
}

// Violations 返回在给定取值下不满足的约束名与越界的变量名
func (m *Model) Violations(values map[string]float64, tol float64) []string {
	var out []string
	for _, v := range m.variables {
		if !v.Domain.Contains(values[v.Name], tol) {
			out = append(out, v.Name)
		}
	}
	for _, c := range m.constraints {
		if !c.Satisfied(values, tol) {
			out = append(out, c.Name)
		}
	}
	return out
}
