// Package distance 从只填写了一半的距离表重建对称距离矩阵
//
// 输入表只保证一个三角部分可信，另一半可以为空或被覆盖。
// Matrix 只能通过 Build/FromFloats 构造，底层使用 mat.SymDense，
// 因此对称性由类型保证，At(i, j) 与参数顺序无关。
package distance

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/healthloc/healthloc/pkg/errors"
)

// Triangle 可信的三角部分
type Triangle int

const (
	// Lower 列下标 < 行下标 的条目可信（原始城市表的格式）
	Lower Triangle = iota
	// Upper 列下标 > 行下标 的条目可信
	Upper
)

// String 返回三角名称
func (t Triangle) String() string {
	if t == Upper {
		return "upper"
	}
	return "lower"
}

// ParseTriangle 解析三角名称，未知值返回 Lower
func ParseTriangle(s string) Triangle {
	if strings.EqualFold(strings.TrimSpace(s), "upper") {
		return Upper
	}
	return Lower
}

// conflictTolerance 两个三角同时给出数值时允许的误差
const conflictTolerance = 1e-9

// Matrix 对称、非负、对角线为零的距离矩阵
type Matrix struct {
	n   int
	sym *mat.SymDense
}

// Build 从字符串表重建距离矩阵
//
// 对于每一对 i < j，取可信三角中的值同时写入 d[i][j] 与 d[j][i]，
// 对角线置零。可信条目缺失、非数值、为负或非有限值时返回 MALFORMED_MATRIX；
// 另一半若给出了数值且与可信值不一致，同样视为格式错误。
func Build(table [][]string, trusted Triangle) (*Matrix, error) {
	n := len(table)
	if err := checkSquare(n, func(i int) int { return len(table[i]) }); err != nil {
		return nil, err
	}

	cell := func(i, j int) (float64, bool) {
		raw := strings.TrimSpace(table[i][j])
		if raw == "" {
			return 0, false
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return math.NaN(), true
		}
		return v, true
	}
	return build(n, trusted, cell)
}

// FromFloats 从数值表重建距离矩阵，NaN 表示缺失
func FromFloats(table [][]float64, trusted Triangle) (*Matrix, error) {
	n := len(table)
	if err := checkSquare(n, func(i int) int { return len(table[i]) }); err != nil {
		return nil, err
	}

	cell := func(i, j int) (float64, bool) {
		v := table[i][j]
		if math.IsNaN(v) {
			return 0, false
		}
		return v, true
	}
	return build(n, trusted, cell)
}

// checkSquare 检查表是否为非空方阵
func checkSquare(n int, rowLen func(i int) int) error {
	if n == 0 {
		return errors.MalformedMatrix(0, 0, "距离表为空")
	}
	for i := 0; i < n; i++ {
		if l := rowLen(i); l != n {
			return errors.MalformedMatrix(i, l, "距离表不是方阵").
				WithField("expected", n)
		}
	}
	return nil
}

// build 对称化核心逻辑；cell 返回 (值, 是否存在)，存在但非数值时值为 NaN
func build(n int, trusted Triangle, cell func(i, j int) (float64, bool)) (*Matrix, error) {
	sym := mat.NewSymDense(n, nil)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// (ti, tj) 为可信位置，(ci, cj) 为互补位置
			ti, tj, ci, cj := j, i, i, j
			if trusted == Upper {
				ti, tj, ci, cj = i, j, j, i
			}

			v, ok := cell(ti, tj)
			if !ok {
				return nil, errors.MalformedMatrix(ti, tj, "缺少距离值")
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.MalformedMatrix(ti, tj, "距离值不是有效数值")
			}
			if v < 0 {
				return nil, errors.MalformedMatrix(ti, tj, "距离值为负")
			}

			if other, present := cell(ci, cj); present && !math.IsNaN(other) {
				if math.Abs(other-v) > conflictTolerance {
					return nil, errors.MalformedMatrix(ci, cj, "两个三角部分的距离值冲突").
						WithField("trusted", v).
						WithField("other", other)
				}
			}

			sym.SetSym(i, j, v)
		}
		sym.SetSym(i, i, 0)
	}

	return &Matrix{n: n, sym: sym}, nil
}

// Len 返回城市数量
func (m *Matrix) Len() int {
	return m.n
}

// At 返回城市 i 与 j 之间的距离
func (m *Matrix) At(i, j int) float64 {
	return m.sym.At(i, j)
}

// Rows 返回完整的方阵副本
func (m *Matrix) Rows() [][]float64 {
	rows := make([][]float64, m.n)
	for i := 0; i < m.n; i++ {
		rows[i] = make([]float64, m.n)
		for j := 0; j < m.n; j++ {
			rows[i][j] = m.sym.At(i, j)
		}
	}
	return rows
}

// Table 以字符串表形式导出完整方阵，可再次交给 Build
func (m *Matrix) Table() [][]string {
	table := make([][]string, m.n)
	for i := 0; i < m.n; i++ {
		table[i] = make([]string, m.n)
		for j := 0; j < m.n; j++ {
			table[i][j] = strconv.FormatFloat(m.sym.At(i, j), 'g', -1, 64)
		}
	}
	return table
}

// Sub 返回由给定下标构成的子矩阵，result.At(a, b) == m.At(idx[a], idx[b])
func (m *Matrix) Sub(idx []int) *Matrix {
	k := len(idx)
	if k == 0 {
		return nil
	}
	sym := mat.NewSymDense(k, nil)
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			sym.SetSym(a, b, m.sym.At(idx[a], idx[b]))
		}
	}
	return &Matrix{n: k, sym: sym}
}

// Permute 按 perm 重排城市：result.At(a, b) == m.At(perm[a], perm[b])
func (m *Matrix) Permute(perm []int) *Matrix {
	return m.Sub(perm)
}

// MaxDistance 返回矩阵中的最大距离
func (m *Matrix) MaxDistance() float64 {
	max := 0.0
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			if d := m.sym.At(i, j); d > max {
				max = d
			}
		}
	}
	return max
}
