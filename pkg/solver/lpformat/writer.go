// Package lpformat 以 CPLEX LP 文本格式导出模型
package lpformat

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/healthloc/healthloc/pkg/mip"
)

// termsPerLine 每行最多写出的项数，避免超过 LP 格式的行长限制
const termsPerLine = 8

// Write 把模型写为 LP 格式
func Write(w io.Writer, m *mip.Model) error {
	vars := m.Variables()
	if len(vars) == 0 {
		return fmt.Errorf("模型 %s 没有变量", m.Name)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\\ Model %s\n", m.Name)

	obj := m.Objective()
	if obj.Sense == mip.Maximize {
		bw.WriteString("Maximize\n")
	} else {
		bw.WriteString("Minimize\n")
	}
	bw.WriteString(" obj:")
	if n := writeTerms(bw, obj.Expr); n == 0 {
		// 空目标写成 0 * 第一个变量
		fmt.Fprintf(bw, " 0 %s", vars[0].Name)
	}
	bw.WriteString("\n")

	bw.WriteString("Subject To\n")
	for _, c := range m.Constraints() {
		fmt.Fprintf(bw, " %s:", c.Name)
		writeTerms(bw, c.Expr)
		fmt.Fprintf(bw, " %s %s\n", lpOp(c.Op), formatNumber(c.Bound-c.Expr.Constant))
	}

	bw.WriteString("Bounds\n")
	for _, v := range vars {
		if v.Domain.Kind == mip.KindBinary {
			continue
		}
		fmt.Fprintf(bw, " %s <= %s <= %s\n", formatBound(v.Domain.Lower), v.Name, formatBound(v.Domain.Upper))
	}

	writeSection(bw, "Generals", vars, mip.KindInteger)
	writeSection(bw, "Binaries", vars, mip.KindBinary)

	bw.WriteString("End\n")
	return bw.Flush()
}

// writeTerms 写出线性项并返回项数
func writeTerms(bw *bufio.Writer, e mip.Expr) int {
	written := 0
	for _, t := range e.Terms {
		if t.Coef == 0 {
			continue
		}
		if written > 0 && written%termsPerLine == 0 {
			bw.WriteString("\n   ")
		}
		sign := "+"
		coef := t.Coef
		if coef < 0 {
			sign = "-"
			coef = -coef
		}
		if written == 0 && sign == "+" {
			fmt.Fprintf(bw, " %s %s", formatNumber(coef), t.Var)
		} else {
			fmt.Fprintf(bw, " %s %s %s", sign, formatNumber(coef), t.Var)
		}
		written++
	}
	return written
}

func writeSection(bw *bufio.Writer, title string, vars []mip.Variable, kind mip.Kind) {
	var names []string
	for _, v := range vars {
		if v.Domain.Kind == kind {
			names = append(names, v.Name)
		}
	}
	if len(names) == 0 {
		return
	}
	bw.WriteString(title + "\n")
	for i, name := range names {
		if i > 0 && i%termsPerLine == 0 {
			bw.WriteString("\n")
		}
		bw.WriteString(" " + name)
	}
	bw.WriteString("\n")
}

func lpOp(op mip.Op) string {
	switch op {
	case mip.LessEqual:
		return "<="
	case mip.GreaterEqual:
		return ">="
	default:
		return "="
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBound(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return formatNumber(v)
	}
}
