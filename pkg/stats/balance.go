// Package stats 提供分区与转运方案的统计分析
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/healthloc/healthloc/pkg/distance"
	"github.com/healthloc/healthloc/pkg/model"
)

// BalanceMetrics 分区均衡性指标
type BalanceMetrics struct {
	// 人口均衡
	PopulationGini   float64 `json:"population_gini"`    // 分区人口基尼系数 (0=完全均衡)
	PopulationMean   float64 `json:"population_mean"`    // 分区平均人口
	PopulationStdDev float64 `json:"population_std_dev"` // 分区人口标准差
	MaxLoad          float64 `json:"max_load"`           // 最大负载率（人口/gamma）
	MinLoad          float64 `json:"min_load"`           // 最小负载率
	LoadRange        float64 `json:"load_range"`         // 负载率极差
	BindingSectors   int     `json:"binding_sectors"`    // 达到人口上限的分区数

	// 可达性
	WeightedDistance float64 `json:"weighted_distance"` // 人口加权平均距离（即目标值）
	MaxDistance      float64 `json:"max_distance"`      // 城市到所属设施的最大距离

	SectorStats []SectorStat `json:"sector_stats"`

	// 综合评分
	OverallBalanceScore float64 `json:"overall_balance_score"` // 0-100
}

// SectorStat 单个分区统计
type SectorStat struct {
	Facility     int     `json:"facility"`
	FacilityName string  `json:"facility_name"`
	Cities       int     `json:"cities"`
	Population   int     `json:"population"`
	Load         float64 `json:"load"`
	AvgDistance  float64 `json:"avg_distance"` // 分区内人口加权平均距离
	MaxDistance  float64 `json:"max_distance"`
	Share        float64 `json:"share"` // 占总人口百分比
}

// BalanceAnalyzer 分区均衡性分析器
type BalanceAnalyzer struct {
	bindingTolerance float64
}

// NewBalanceAnalyzer 创建分析器
func NewBalanceAnalyzer() *BalanceAnalyzer {
	return &BalanceAnalyzer{bindingTolerance: 1e-6}
}

// Analyze 分析分区方案
func (b *BalanceAnalyzer) Analyze(s *model.Sectorization, t *model.Territory, d *distance.Matrix) *BalanceMetrics {
	if s == nil || len(s.Sectors) == 0 {
		return &BalanceMetrics{OverallBalanceScore: 100}
	}

	total := float64(t.TotalPopulation())
	pops := make([]float64, len(s.Sectors))
	loads := make([]float64, len(s.Sectors))
	sectorStats := make([]SectorStat, len(s.Sectors))
	binding := 0
	maxDist := 0.0

	for j, sector := range s.Sectors {
		pops[j] = float64(sector.Population)
		loads[j] = sector.Load
		if sector.Load >= 1-b.bindingTolerance {
			binding++
		}

		dists := make([]float64, len(sector.Members))
		weights := make([]float64, len(sector.Members))
		for m, city := range sector.Members {
			dists[m] = d.At(city, sector.Facility)
			weights[m] = float64(t.Cities[city].Population)
		}

		st := SectorStat{
			Facility:     sector.Facility,
			FacilityName: sector.FacilityName,
			Cities:       len(sector.Members),
			Population:   sector.Population,
			Load:         sector.Load,
		}
		if len(dists) > 0 {
			st.MaxDistance = floats.Max(dists)
			if floats.Sum(weights) > 0 {
				st.AvgDistance = stat.Mean(dists, weights)
			}
		}
		if total > 0 {
			st.Share = pops[j] / total * 100
		}
		maxDist = math.Max(maxDist, st.MaxDistance)
		sectorStats[j] = st
	}

	mean, variance := stat.PopMeanVariance(pops, nil)
	stdDev := math.Sqrt(variance)
	gini := calculateGini(pops)

	return &BalanceMetrics{
		PopulationGini:      gini,
		PopulationMean:      mean,
		PopulationStdDev:    stdDev,
		MaxLoad:             floats.Max(loads),
		MinLoad:             floats.Min(loads),
		LoadRange:           floats.Max(loads) - floats.Min(loads),
		BindingSectors:      binding,
		WeightedDistance:    s.Objective,
		MaxDistance:         maxDist,
		SectorStats:         sectorStats,
		OverallBalanceScore: calculateOverallScore(gini, stdDev, mean),
	}
}

// CompareSectorizations 比较两个分区方案（如不同 alpha 下的结果）
func (b *BalanceAnalyzer) CompareSectorizations(s1, s2 *model.Sectorization, t *model.Territory, d *distance.Matrix) map[string]float64 {
	m1 := b.Analyze(s1, t, d)
	m2 := b.Analyze(s2, t, d)

	return map[string]float64{
		"population_gini_diff":   m2.PopulationGini - m1.PopulationGini,
		"weighted_distance_diff": m2.WeightedDistance - m1.WeightedDistance,
		"max_load_diff":          m2.MaxLoad - m1.MaxLoad,
		"overall_score_diff":     m2.OverallBalanceScore - m1.OverallBalanceScore,
		"plan1_overall_score":    m1.OverallBalanceScore,
		"plan2_overall_score":    m2.OverallBalanceScore,
	}
}

// calculateGini 计算基尼系数
func calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := floats.Sum(sorted)
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}

	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// calculateOverallScore 综合均衡评分
func calculateOverallScore(gini, stdDev, mean float64) float64 {
	const (
		giniWeight = 0.7
		cvWeight   = 0.3
	)

	giniScore := (1 - gini) * 100

	// 变异系数越低分数越高
	cvScore := 100.0
	if mean > 0 {
		cvScore = math.Max(0, 100-stdDev/mean*100)
	}

	return math.Max(0, math.Min(100, giniWeight*giniScore+cvWeight*cvScore))
}
