package mip

// Term 线性项 Coef * Var
type Term struct {
	Var  string  `json:"var"`
	Coef float64 `json:"coef"`
}

// Expr 线性表达式 Σ Coef*Var + Constant
type Expr struct {
	Terms    []Term  `json:"terms"`
	Constant float64 `json:"constant,omitempty"`
}

// NewExpr 创建空表达式
func NewExpr() Expr {
	return Expr{}
}

// Sum 各变量系数为 1 的表达式
func Sum(vars ...string) Expr {
	e := Expr{Terms: make([]Term, 0, len(vars))}
	for _, v := range vars {
		e.Terms = append(e.Terms, Term{Var: v, Coef: 1})
	}
	return e
}

// Plus 追加一项，系数为零时忽略
func (e Expr) Plus(coef float64, v string) Expr {
	if coef == 0 {
		return e
	}
	e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
	return e
}

// Scale 所有系数与常数乘以 f
func (e Expr) Scale(f float64) Expr {
	out := Expr{Terms: make([]Term, len(e.Terms)), Constant: e.Constant * f}
	for i, t := range e.Terms {
		out.Terms[i] = Term{Var: t.Var, Coef: t.Coef * f}
	}
	return out
}

// Evaluate 在给定取值下计算表达式，缺失变量按 0 处理
func (e Expr) Evaluate(values map[string]float64) float64 {
	sum := e.Constant
	for _, t := range e.Terms {
		sum += t.Coef * values[t.Var]
	}
	return sum
}

// Coefficients 合并同名变量后的系数表
func (e Expr) Coefficients() map[string]float64 {
	out := make(map[string]float64, len(e.Terms))
	for _, t := range e.Terms {
		out[t.Var] += t.Coef
	}
	return out
}
