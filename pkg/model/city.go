// Package model 定义选址与分区规划的核心数据模型
package model

import (
	"strings"
)

// Variant 问题变体
type Variant string

const (
	VariantFixedFacility Variant = "fixed_facility" // 给定设施的分区
	VariantJointLocation Variant = "joint_location" // 设施选址与分区联合求解
	VariantPatientFlow   Variant = "patient_flow"   // 病人转运分配
)

// City 城市
type City struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Population int    `json:"population"`
}

// Territory 参考区域，城市顺序在一次运行内保持不变
type Territory struct {
	Cities []City `json:"cities"`
	index  map[string]int
}

// NewTerritory 根据名称与人口创建参考区域，城市ID即其下标
func NewTerritory(names []string, populations []int) *Territory {
	cities := make([]City, len(names))
	for i, name := range names {
		pop := 0
		if i < len(populations) {
			pop = populations[i]
		}
		cities[i] = City{ID: i, Name: name, Population: pop}
	}
	return NewTerritoryFromCities(cities)
}

// NewTerritoryFromCities 从城市列表创建参考区域
func NewTerritoryFromCities(cities []City) *Territory {
	t := &Territory{
		Cities: make([]City, len(cities)),
		index:  make(map[string]int, len(cities)),
	}
	copy(t.Cities, cities)
	for i := range t.Cities {
		t.Cities[i].ID = i
		key := normalizeName(t.Cities[i].Name)
		if _, exists := t.index[key]; !exists {
			t.index[key] = i
		}
	}
	return t
}

// Len 返回城市数量
func (t *Territory) Len() int {
	return len(t.Cities)
}

// IndexOf 按名称查找城市下标（忽略首尾空白）
func (t *Territory) IndexOf(name string) (int, bool) {
	i, ok := t.index[normalizeName(name)]
	return i, ok
}

// Name 返回城市名称
func (t *Territory) Name(i int) string {
	if i < 0 || i >= len(t.Cities) {
		return ""
	}
	return t.Cities[i].Name
}

// Names 返回全部城市名称
func (t *Territory) Names() []string {
	names := make([]string, len(t.Cities))
	for i, c := range t.Cities {
		names[i] = c.Name
	}
	return names
}

// Populations 返回人口向量
func (t *Territory) Populations() []int {
	pops := make([]int, len(t.Cities))
	for i, c := range t.Cities {
		pops[i] = c.Population
	}
	return pops
}

// TotalPopulation 返回总人口
func (t *Territory) TotalPopulation() int {
	total := 0
	for _, c := range t.Cities {
		total += c.Population
	}
	return total
}

// HasDuplicateNames 检查是否存在重名城市
func (t *Territory) HasDuplicateNames() (string, bool) {
	seen := make(map[string]bool, len(t.Cities))
	for _, c := range t.Cities {
		key := normalizeName(c.Name)
		if seen[key] {
			return c.Name, true
		}
		seen[key] = true
	}
	return "", false
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}

// Gamma 计算单个分区人口上限: (1 + alpha) / k * 总人口
func Gamma(alpha float64, k int, totalPopulation int) float64 {
	if k <= 0 {
		return 0
	}
	return (1.0 + alpha) / float64(k) * float64(totalPopulation)
}
