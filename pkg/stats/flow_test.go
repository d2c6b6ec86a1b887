package stats

import (
	"math"
	"strings"
	"testing"

	"github.com/healthloc/healthloc/pkg/model"
)

func TestFlowAnalyzer_Analyze(t *testing.T) {
	_, d := fixture(t)
	p := &model.PatientFlow{
		Facilities:    []int{0, 2},
		FacilityNames: []string{"A", "C"},
		Demand:        []int{100, 50},
		Capacity:      100,
		Matrix:        [][]int{{90, 10}, {0, 50}},
		Cost:          100,
	}

	analyzer := NewFlowAnalyzer()
	metrics := analyzer.Analyze(p, d)

	if metrics.TotalPatients != 150 || metrics.LocalPatients != 140 || metrics.TransferredPatients != 10 {
		t.Errorf("unexpected totals: %+v", metrics)
	}
	if math.Abs(metrics.LocalRate-140.0/150.0*100) > 1e-9 {
		t.Errorf("unexpected local rate %f", metrics.LocalRate)
	}
	if metrics.AvgTransferDistance != 10 {
		t.Errorf("expected avg transfer distance 10, got %f", metrics.AvgTransferDistance)
	}

	c := metrics.FacilityStats[1]
	if c.Treated != 60 || c.Inbound != 10 || c.Outbound != 0 {
		t.Errorf("unexpected facility stat: %+v", c)
	}
	if c.Utilization != 60 {
		t.Errorf("expected utilization 60, got %f", c.Utilization)
	}

	report := analyzer.GenerateFlowReport(metrics)
	if !strings.Contains(report, "A -> C: 10 人") {
		t.Errorf("report should list the transfer, got:\n%s", report)
	}
	if strings.Contains(report, "A -> A") {
		t.Errorf("report should not list local treatment as transfer")
	}
}
