package formulate

import (
	"math"
	"sort"

	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/model"
)

// validateInstance 校验城市数据与距离矩阵
func validateInstance(inst *Instance) error {
	if inst == nil || inst.Territory == nil || inst.Territory.Len() == 0 {
		return errors.InvalidConfiguration("cities", "城市列表为空")
	}
	if inst.Distances == nil {
		return errors.InvalidConfiguration("distances", "缺少距离矩阵")
	}
	n := inst.Territory.Len()
	if inst.Distances.Len() != n {
		return errors.InvalidConfiguration("distances", "距离矩阵维度与城市数量不一致").
			WithField("cities", n).
			WithField("matrix", inst.Distances.Len())
	}

	ve := &errors.ValidationErrors{}
	for _, c := range inst.Territory.Cities {
		if c.Name == "" {
			ve.Add("cities", "城市名称为空")
		}
		if c.Population < 0 {
			ve.Add("population", "城市 "+c.Name+" 的人口为负")
		}
	}
	if name, dup := inst.Territory.HasDuplicateNames(); dup {
		ve.Add("cities", "城市名称重复: "+name)
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// validateAlpha alpha 必须为正的有限值
func validateAlpha(alpha float64) error {
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return errors.InvalidConfiguration("alpha", "alpha 不是有效数值")
	}
	if alpha <= 0 {
		return errors.InvalidConfiguration("alpha", "alpha 必须严格为正").
			WithField("alpha", alpha)
	}
	return nil
}

// validatePopulation 目标按总人口归一化，总人口必须为正
func validatePopulation(t *model.Territory) (int, error) {
	total := t.TotalPopulation()
	if total <= 0 {
		return 0, errors.InvalidConfiguration("population", "总人口必须为正")
	}
	return total, nil
}

// resolveFacilities 把设施名称解析为城市下标，保持调用方给出的顺序
func resolveFacilities(t *model.Territory, names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, errors.InvalidConfiguration("facilities", "设施列表为空")
	}
	idx := make([]int, 0, len(names))
	seen := make(map[int]bool, len(names))
	for _, name := range names {
		i, ok := t.IndexOf(name)
		if !ok {
			return nil, errors.InvalidConfiguration("facilities", "未知城市: "+name).
				WithField("city", name)
		}
		if seen[i] {
			return nil, errors.InvalidConfiguration("facilities", "设施重复: "+name).
				WithField("city", name)
		}
		seen[i] = true
		idx = append(idx, i)
	}
	return idx, nil
}

// validateFacilityIndices 校验设施下标
func validateFacilityIndices(n int, idx []int) error {
	if len(idx) == 0 {
		return errors.InvalidConfiguration("facilities", "设施列表为空")
	}
	seen := make(map[int]bool, len(idx))
	for _, i := range idx {
		if i < 0 || i >= n {
			return errors.InvalidConfiguration("facilities", "设施下标超出范围").
				WithField("index", i).
				WithField("cities", n)
		}
		if seen[i] {
			return errors.InvalidConfiguration("facilities", "设施下标重复").
				WithField("index", i)
		}
		seen[i] = true
	}
	return nil
}

// validateK 变体B中设施数量必须在 [1, n] 内
func validateK(k, n int) error {
	if k <= 0 {
		return errors.InvalidConfiguration("k", "设施数量必须为正").WithField("k", k)
	}
	if k > n {
		return errors.InvalidConfiguration("k", "设施数量超过城市数量").
			WithField("k", k).
			WithField("cities", n)
	}
	return nil
}

// validateDemand 变体C的需求向量校验
func validateDemand(demand []int, k, capacity, maxTotal int) error {
	if capacity <= 0 {
		return errors.InvalidConfiguration("capacity", "设施容量必须为正").
			WithField("capacity", capacity)
	}
	if maxTotal <= 0 {
		return errors.InvalidConfiguration("max_total", "需求总量上限必须为正").
			WithField("max_total", maxTotal)
	}
	if len(demand) != k {
		return errors.InvalidConfiguration("demand", "需求向量长度与设施数量不一致").
			WithField("demand", len(demand)).
			WithField("k", k)
	}
	total := 0
	for i, p := range demand {
		if p < 0 {
			return errors.InvalidConfiguration("demand", "需求为负").WithField("index", i)
		}
		total += p
	}
	if total > maxTotal {
		return errors.InvalidConfiguration("demand", "需求总量超出可接受范围").
			WithField("total", total).
			WithField("max", maxTotal)
	}
	if total > k*capacity {
		return errors.InvalidConfiguration("demand", "需求总量超过设施总容量").
			WithField("total", total).
			WithField("capacity", k*capacity)
	}
	return nil
}

// sortFacilities 按城市下标升序排列设施，并同步调整需求顺序
func sortFacilities(idx []int, demand []int) ([]int, []int) {
	order := make([]int, len(idx))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return idx[order[a]] < idx[order[b]]
	})

	sortedIdx := make([]int, len(idx))
	sortedDemand := make([]int, len(demand))
	for pos, o := range order {
		sortedIdx[pos] = idx[o]
		if o < len(demand) {
			sortedDemand[pos] = demand[o]
		}
	}
	return sortedIdx, sortedDemand
}
