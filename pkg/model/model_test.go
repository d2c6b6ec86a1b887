package model

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGamma(t *testing.T) {
	tests := []struct {
		name     string
		alpha    float64
		k        int
		total    int
		expected float64
	}{
		{name: "单设施", alpha: 0.2, k: 1, total: 350, expected: 420},
		{name: "两个设施", alpha: 0.2, k: 2, total: 350, expected: 210},
		{name: "紧约束", alpha: 0.01, k: 2, total: 350, expected: 176.75},
		{name: "k非法", alpha: 0.2, k: 0, total: 350, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Gamma(tt.alpha, tt.k, tt.total)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Gamma() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestTerritory(t *testing.T) {
	terr := NewTerritory([]string{"A", " B ", "C"}, []int{100, 50, 200})

	if terr.Len() != 3 {
		t.Fatalf("期望3个城市，实际 %d", terr.Len())
	}
	if terr.TotalPopulation() != 350 {
		t.Errorf("总人口错误: %d", terr.TotalPopulation())
	}
	if i, ok := terr.IndexOf("B"); !ok || i != 1 {
		t.Errorf("IndexOf(B) = %d, %v", i, ok)
	}
	if _, ok := terr.IndexOf("X"); ok {
		t.Error("不存在的城市不应找到")
	}
	if terr.Name(5) != "" {
		t.Error("越界下标应返回空名称")
	}
	if diff := cmp.Diff([]int{100, 50, 200}, terr.Populations()); diff != "" {
		t.Errorf("人口向量错误 (-want +got):\n%s", diff)
	}
	if _, dup := terr.HasDuplicateNames(); dup {
		t.Error("不应有重名")
	}

	dup := NewTerritory([]string{"A", "A "}, []int{1, 2})
	if name, ok := dup.HasDuplicateNames(); !ok || name != "A " {
		t.Errorf("应检测到重名，实际 %q %v", name, ok)
	}
	// 重名时按名称查找取第一个
	if i, _ := dup.IndexOf("A"); i != 0 {
		t.Errorf("重名查找应返回第一个，实际 %d", i)
	}
}

func TestSectorization(t *testing.T) {
	s := &Sectorization{
		Sectors: []Sector{
			{Facility: 0, FacilityName: "A", Members: []int{0, 1}, Load: 0.7},
			{Facility: 2, FacilityName: "C", Members: []int{2}, Load: 0.95},
		},
	}

	if s.SectorOf(1) != 0 || s.SectorOf(2) != 1 || s.SectorOf(3) != -1 {
		t.Errorf("SectorOf 结果错误")
	}
	if diff := cmp.Diff([]string{"A", "C"}, s.FacilityNames()); diff != "" {
		t.Errorf("FacilityNames() (-want +got):\n%s", diff)
	}
	if s.MaxLoad() != 0.95 {
		t.Errorf("MaxLoad() = %v", s.MaxLoad())
	}
}

func TestPatientFlow(t *testing.T) {
	p := &PatientFlow{
		FacilityNames: []string{"North", "South"},
		Matrix:        [][]int{{2, 1}, {0, 1}},
	}

	if p.K() != 2 {
		t.Errorf("K() = %d", p.K())
	}
	if p.Outbound(0) != 3 || p.Inbound(1) != 2 || p.Local(1) != 1 {
		t.Errorf("行列和错误")
	}

	transfers := p.Transfers()
	if len(transfers) != 3 {
		t.Fatalf("期望3条非零流量，实际 %d", len(transfers))
	}
	// 目的地标签只由列下标决定
	want := Transfer{From: 0, To: 1, FromName: "North", ToName: "South", Patients: 1}
	if diff := cmp.Diff(want, transfers[1]); diff != "" {
		t.Errorf("转运记录错误 (-want +got):\n%s", diff)
	}
	if !transfers[0].Local || !transfers[2].Local {
		t.Error("对角线流量应标记为本地")
	}
}
