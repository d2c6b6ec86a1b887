package planner

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/healthloc/healthloc/pkg/stats"
)

// WriteReport 输出运行结果的文字报告
//
// 分区变体输出 (设施, 成员城市) 列表与归一化目标值；
// 转运变体输出 k×k 流量矩阵与总费用。
func WriteReport(w io.Writer, run *Run) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "运行 %s  变体 %s  求解器 %s  状态 %s\n", run.ID, run.Variant, run.Backend, run.Status)
	fmt.Fprintf(&sb, "变量 %d  约束 %d  耗时 %s\n\n", run.Variables, run.Constraints, run.Duration)

	if s := run.Sectorization; s != nil {
		fmt.Fprintf(&sb, "gamma = %.2f\n", s.Gamma)
		for _, sector := range s.Sectors {
			fmt.Fprintf(&sb, "%s: %s (人口 %d，负载 %.1f%%)\n",
				sector.FacilityName, strings.Join(sector.MemberNames, ", "), sector.Population, sector.Load*100)
		}
		fmt.Fprintf(&sb, "目标值 = %.4f\n", s.Objective)
	}

	if p := run.Flow; p != nil {
		tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprint(tw, "\t")
		for _, name := range p.FacilityNames {
			fmt.Fprintf(tw, "%s\t", name)
		}
		fmt.Fprintln(tw)
		for i, row := range p.Matrix {
			fmt.Fprintf(tw, "%s\t", p.FacilityNames[i])
			for _, v := range row {
				fmt.Fprintf(tw, "%d\t", v)
			}
			fmt.Fprintln(tw)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(&sb, "总费用 = %.2f\n", p.Cost)
		if run.FlowMetrics != nil {
			sb.WriteString("\n")
			sb.WriteString(stats.NewFlowAnalyzer().GenerateFlowReport(run.FlowMetrics))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
