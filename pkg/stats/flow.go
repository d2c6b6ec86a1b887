package stats

import (
	"fmt"
	"strings"

	"github.com/healthloc/healthloc/pkg/distance"
	"github.com/healthloc/healthloc/pkg/model"
)

// FlowMetrics 转运方案指标
type FlowMetrics struct {
	TotalPatients       int     `json:"total_patients"`
	LocalPatients       int     `json:"local_patients"`
	TransferredPatients int     `json:"transferred_patients"`
	LocalRate           float64 `json:"local_rate"` // 本地治疗比例 (%)
	TotalCost           float64 `json:"total_cost"`
	AvgTransferDistance float64 `json:"avg_transfer_distance"` // 每位转运病人的平均距离

	FacilityStats []FacilityStat   `json:"facility_stats"`
	Transfers     []model.Transfer `json:"transfers"`
}

// FacilityStat 单个设施统计
type FacilityStat struct {
	Facility    int     `json:"facility"`
	Name        string  `json:"name"`
	Demand      int     `json:"demand"`
	Local       int     `json:"local"`
	Outbound    int     `json:"outbound"` // 转出到其他设施
	Inbound     int     `json:"inbound"`  // 从其他设施转入
	Treated     int     `json:"treated"`
	Utilization float64 `json:"utilization"` // 已用容量百分比
}

// FlowAnalyzer 转运分析器
type FlowAnalyzer struct{}

// NewFlowAnalyzer 创建转运分析器
func NewFlowAnalyzer() *FlowAnalyzer {
	return &FlowAnalyzer{}
}

// Analyze 分析转运方案
func (a *FlowAnalyzer) Analyze(p *model.PatientFlow, d *distance.Matrix) *FlowMetrics {
	metrics := &FlowMetrics{
		FacilityStats: make([]FacilityStat, 0, p.K()),
		Transfers:     p.Transfers(),
		TotalCost:     p.Cost,
	}

	transferDistance := 0.0
	for i := 0; i < p.K(); i++ {
		local := p.Local(i)
		treated := p.Inbound(i)
		st := FacilityStat{
			Facility: p.Facilities[i],
			Name:     p.FacilityNames[i],
			Local:    local,
			Outbound: p.Outbound(i) - local,
			Inbound:  treated - local,
			Treated:  treated,
		}
		if i < len(p.Demand) {
			st.Demand = p.Demand[i]
		}
		if p.Capacity > 0 {
			st.Utilization = float64(treated) / float64(p.Capacity) * 100
		}
		metrics.FacilityStats = append(metrics.FacilityStats, st)

		metrics.TotalPatients += p.Outbound(i)
		metrics.LocalPatients += local
		for j := 0; j < p.K(); j++ {
			if i != j && d != nil {
				transferDistance += float64(p.Matrix[i][j]) * d.At(p.Facilities[i], p.Facilities[j])
			}
		}
	}

	metrics.TransferredPatients = metrics.TotalPatients - metrics.LocalPatients
	if metrics.TotalPatients > 0 {
		metrics.LocalRate = float64(metrics.LocalPatients) / float64(metrics.TotalPatients) * 100
	}
	if metrics.TransferredPatients > 0 {
		metrics.AvgTransferDistance = transferDistance / float64(metrics.TransferredPatients)
	}
	return metrics
}

// GenerateFlowReport 生成转运报告，标签只由矩阵下标推导
func (a *FlowAnalyzer) GenerateFlowReport(metrics *FlowMetrics) string {
	var sb strings.Builder

	sb.WriteString("=== 病人转运报告 ===\n\n")
	sb.WriteString("【整体情况】\n")
	fmt.Fprintf(&sb, "  病人总数: %d\n", metrics.TotalPatients)
	fmt.Fprintf(&sb, "  本地治疗: %d (%.1f%%)\n", metrics.LocalPatients, metrics.LocalRate)
	fmt.Fprintf(&sb, "  转运人数: %d\n", metrics.TransferredPatients)
	fmt.Fprintf(&sb, "  总费用: %.2f\n\n", metrics.TotalCost)

	sb.WriteString("【设施】\n")
	for _, f := range metrics.FacilityStats {
		fmt.Fprintf(&sb, "  - %s: 需求 %d，本地 %d，转出 %d，转入 %d，利用率 %.1f%%\n",
			f.Name, f.Demand, f.Local, f.Outbound, f.Inbound, f.Utilization)
	}

	var transfers []model.Transfer
	for _, t := range metrics.Transfers {
		if !t.Local {
			transfers = append(transfers, t)
		}
	}
	if len(transfers) > 0 {
		sb.WriteString("\n【转运】\n")
		for _, t := range transfers {
			fmt.Fprintf(&sb, "  - %s -> %s: %d 人\n", t.FromName, t.ToName, t.Patients)
		}
	}

	return sb.String()
}
