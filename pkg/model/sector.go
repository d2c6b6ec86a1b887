package model

// Sector 分区：一个设施及其服务的城市集合
type Sector struct {
	Facility     int      `json:"facility"`
	FacilityName string   `json:"facility_name"`
	Members      []int    `json:"members"`
	MemberNames  []string `json:"member_names"`
	Population   int      `json:"population"`
	Load         float64  `json:"load"` // 分区人口 / gamma
}

// Sectorization 分区方案（变体A/B的解释结果）
type Sectorization struct {
	Variant    Variant  `json:"variant"`
	Facilities []int    `json:"facilities"`
	Sectors    []Sector `json:"sectors"`
	// Assignment n×k 的 0/1 分配矩阵，列顺序与 Facilities 一致
	Assignment [][]int `json:"assignment"`
	Gamma      float64 `json:"gamma"`
	Objective  float64 `json:"objective"`
}

// SectorOf 返回城市所属分区的下标，未分配返回 -1
func (s *Sectorization) SectorOf(city int) int {
	for j, sector := range s.Sectors {
		for _, m := range sector.Members {
			if m == city {
				return j
			}
		}
	}
	return -1
}

// FacilityNames 返回设施名称列表
func (s *Sectorization) FacilityNames() []string {
	names := make([]string, len(s.Sectors))
	for j, sector := range s.Sectors {
		names[j] = sector.FacilityName
	}
	return names
}

// MaxLoad 返回最大分区负载率
func (s *Sectorization) MaxLoad() float64 {
	max := 0.0
	for _, sector := range s.Sectors {
		if sector.Load > max {
			max = sector.Load
		}
	}
	return max
}
