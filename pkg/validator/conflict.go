// Package validator 检查解释后的方案是否满足模型不变量
package validator

import (
	"fmt"
	"math"

	"github.com/healthloc/healthloc/pkg/distance"
	"github.com/healthloc/healthloc/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictUnassigned        ConflictType = "unassigned"         // 城市未分配
	ConflictMultiAssigned     ConflictType = "multi_assigned"     // 城市分配到多个分区
	ConflictOverGamma         ConflictType = "over_gamma"         // 分区人口超过上限
	ConflictFacilityCount     ConflictType = "facility_count"     // 设施数量不符
	ConflictDuplicateFacility ConflictType = "duplicate_facility" // 设施重复
	ConflictDemandMismatch    ConflictType = "demand_mismatch"    // 转出病人数与需求不符
	ConflictFlowCapacity      ConflictType = "flow_capacity"      // 设施接收超过容量
	ConflictNegativeFlow      ConflictType = "negative_flow"      // 流量为负
	ConflictObjectiveMismatch ConflictType = "objective_mismatch" // 目标值与方案不符
)

// Conflict 冲突信息
type Conflict struct {
	Type     ConflictType `json:"type"`
	Severity string       `json:"severity"` // error/warning
	Index    int          `json:"index"`    // 相关的城市、分区或设施下标，无则为 -1
	Message  string       `json:"message"`
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	// Tolerance 人口上限比较的绝对误差
	Tolerance float64
	// ObjectiveTolerance 目标值比较的相对误差
	ObjectiveTolerance float64
	// CheckObjective 是否重新计算目标值
	CheckObjective bool
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		Tolerance:          1e-6,
		ObjectiveTolerance: 1e-6,
		CheckObjective:     true,
	}
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &ConflictDetector{config: config}
}

// DetectSectorization 检测分区方案的冲突
//
// k 为期望的设施数量；dist 为 nil 时跳过目标值检查。
func (d *ConflictDetector) DetectSectorization(s *model.Sectorization, t *model.Territory, dist *distance.Matrix, k int) []Conflict {
	var conflicts []Conflict
	n := t.Len()

	if len(s.Sectors) != k {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictFacilityCount,
			Severity: "error",
			Index:    -1,
			Message:  fmt.Sprintf("设施数量为 %d，期望 %d", len(s.Sectors), k),
		})
	}

	seenFacility := make(map[int]bool, len(s.Sectors))
	owner := make([]int, n)
	for i := range owner {
		owner[i] = -1
	}
	for j, sector := range s.Sectors {
		if seenFacility[sector.Facility] {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictDuplicateFacility,
				Severity: "error",
				Index:    j,
				Message:  fmt.Sprintf("设施 %s 出现多次", t.Name(sector.Facility)),
			})
		}
		seenFacility[sector.Facility] = true

		pop := 0
		for _, m := range sector.Members {
			if m < 0 || m >= n {
				continue
			}
			pop += t.Cities[m].Population
			if owner[m] >= 0 {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictMultiAssigned,
					Severity: "error",
					Index:    m,
					Message:  fmt.Sprintf("城市 %s 同时属于分区 %d 与 %d", t.Name(m), owner[m], j),
				})
				continue
			}
			owner[m] = j
		}

		if float64(pop) > s.Gamma+d.config.Tolerance {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictOverGamma,
				Severity: "error",
				Index:    j,
				Message:  fmt.Sprintf("分区 %s 人口 %d 超过上限 %.2f", sector.FacilityName, pop, s.Gamma),
			})
		}
	}

	for i, o := range owner {
		if o < 0 {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictUnassigned,
				Severity: "error",
				Index:    i,
				Message:  fmt.Sprintf("城市 %s 未分配到任何分区", t.Name(i)),
			})
		}
	}

	if d.config.CheckObjective && dist != nil {
		total := t.TotalPopulation()
		if total > 0 {
			want := 0.0
			for _, sector := range s.Sectors {
				for _, m := range sector.Members {
					if m >= 0 && m < n {
						want += dist.At(m, sector.Facility) * float64(t.Cities[m].Population) / float64(total)
					}
				}
			}
			if c, ok := d.checkObjective(want, s.Objective); !ok {
				conflicts = append(conflicts, c)
			}
		}
	}

	return conflicts
}

// DetectFlow 检测转运方案的冲突
func (d *ConflictDetector) DetectFlow(p *model.PatientFlow, dist *distance.Matrix) []Conflict {
	var conflicts []Conflict
	k := p.K()

	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if p.Matrix[i][j] < 0 {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictNegativeFlow,
					Severity: "error",
					Index:    i,
					Message:  fmt.Sprintf("流量 %d→%d 为负", i, j),
				})
			}
		}
	}

	for i := 0; i < k; i++ {
		if i < len(p.Demand) && p.Outbound(i) != p.Demand[i] {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictDemandMismatch,
				Severity: "error",
				Index:    i,
				Message:  fmt.Sprintf("分区 %d 转出 %d 人，需求为 %d", i, p.Outbound(i), p.Demand[i]),
			})
		}
	}

	for j := 0; j < k; j++ {
		if in := p.Inbound(j); in > p.Capacity {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictFlowCapacity,
				Severity: "error",
				Index:    j,
				Message:  fmt.Sprintf("设施 %d 接收 %d 人，超过容量 %d", j, in, p.Capacity),
			})
		}
	}

	if d.config.CheckObjective && dist != nil && len(p.Facilities) == k {
		want := 0.0
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				want += float64(p.Matrix[i][j]) * dist.At(p.Facilities[i], p.Facilities[j])
			}
		}
		if c, ok := d.checkObjective(want, p.Cost); !ok {
			conflicts = append(conflicts, c)
		}
	}

	return conflicts
}

func (d *ConflictDetector) checkObjective(want, got float64) (Conflict, bool) {
	scale := math.Max(1, math.Abs(want))
	if math.Abs(want-got) <= d.config.ObjectiveTolerance*scale {
		return Conflict{}, true
	}
	return Conflict{
		Type:     ConflictObjectiveMismatch,
		Severity: "error",
		Index:    -1,
		Message:  fmt.Sprintf("目标值 %.6f 与方案重算值 %.6f 不一致", got, want),
	}, false
}

// HasErrors 是否存在 error 级别的冲突
func HasErrors(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == "error" {
			return true
		}
	}
	return false
}

// GroupByType 按类型分组
func GroupByType(conflicts []Conflict) map[ConflictType][]Conflict {
	result := make(map[ConflictType][]Conflict)
	for _, c := range conflicts {
		result[c.Type] = append(result[c.Type], c)
	}
	return result
}
