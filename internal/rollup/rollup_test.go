package rollup

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"opsboard/internal/models"
)

func ops(pairs ...[2]float64) []models.Operation {
	out := make([]models.Operation, len(pairs))
	for i, p := range pairs {
		out[i] = models.Operation{WorkCenter: "CNC-1", PlannedWork: p[0], ActualWork: p[1]}
	}
	return out
}

func TestEfficiency(t *testing.T) {
	assert.Equal(t, 0.0, Efficiency(0, 12))
	assert.Equal(t, 50.0, Efficiency(22, 11))
	assert.InDelta(t, 133.3333333333, Efficiency(3, 4), 1e-9)
	assert.InDelta(t, 33.3333333333, Efficiency(3, 1), 1e-9)
	assert.NotEqual(t, 33.33, Efficiency(3, 1))
}

func TestWorkCenterMetrics(t *testing.T) {
	m := WorkCenter("CNC-1", ops([2]float64{10, 5}, [2]float64{8, 0}, [2]float64{4, 6}), 40)

	want := models.WorkCenterMetrics{
		Name:            "CNC-1",
		Operations:      3,
		PlannedHours:    22,
		ActualHours:     11,
		RemainingHours:  13,
		Efficiency:      50,
		Utilization:     32.5,
		InProgressCount: 1,
		InProgressHours: 5,
		BacklogCount:    1,
		BacklogHours:    8,
		Status:          StatusAvailable,
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("WorkCenter mismatch (-want +got):\n%s", diff)
	}
}

func TestWorkCenterIndependentOfRowOrder(t *testing.T) {
	in := ops([2]float64{0.1, 0.2}, [2]float64{1e6, 0.3}, [2]float64{0.7, 0}, [2]float64{3.3, 1.1})
	rev := make([]models.Operation, len(in))
	for i := range in {
		rev[len(in)-1-i] = in[i]
	}
	if diff := cmp.Diff(WorkCenter("X", in, 40), WorkCenter("X", rev, 40)); diff != "" {
		t.Errorf("metrics depend on row order:\n%s", diff)
	}
}

func TestWorkCenterUtilizationCapped(t *testing.T) {
	m := WorkCenter("CNC-1", ops([2]float64{100, 0}), 0)
	assert.Equal(t, 100.0, m.Utilization)
	assert.Equal(t, StatusOverloaded, m.Status)
	assert.Equal(t, 0.0, m.Efficiency)
}

func TestStatusThresholds(t *testing.T) {
	tests := []struct {
		ops  int
		util float64
		want string
	}{
		{0, 95, StatusIdle},
		{1, 0, StatusAvailable},
		{1, 49.99, StatusAvailable},
		{1, 50, StatusBusy},
		{1, 89.99, StatusBusy},
		{1, 90, StatusOverloaded},
	}
	for _, tt := range tests {
		if got := Status(tt.ops, tt.util); got != tt.want {
			t.Errorf("Status(%d, %v) = %q, want %q", tt.ops, tt.util, got, tt.want)
		}
	}
}

func TestAllWorkCentersIncludesIdleNames(t *testing.T) {
	in := []models.Operation{
		{WorkCenter: "WELD", PlannedWork: 4},
		{WorkCenter: "", PlannedWork: 2},
		{WorkCenter: "CNC-1", PlannedWork: 10, ActualWork: 2},
	}
	all := AllWorkCenters([]string{"PAINT", "WELD"}, in, 40)
	var names []string
	for _, m := range all {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"CNC-1", "PAINT", "Unassigned", "WELD"}, names)
	assert.Equal(t, StatusIdle, all[1].Status)
}

func TestBusiest(t *testing.T) {
	all := []models.WorkCenterMetrics{{Name: "A", Utilization: 10}, {Name: "B", Utilization: 80}, {Name: "C", Utilization: 40}}
	top := Busiest(all, 2)
	assert.Len(t, top, 2)
	assert.Equal(t, "B", top[0].Name)
	assert.Equal(t, "C", top[1].Name)
	assert.Equal(t, "A", all[0].Name, "input must not be reordered")
}

func TestJobSummary(t *testing.T) {
	in := []models.Operation{
		{WorkCenter: "WELD", PlannedWork: 4, ActualWork: 4},
		{WorkCenter: "CNC-1", PlannedWork: 6, ActualWork: 2},
	}
	s := Job("J-1", in, 10)
	assert.Equal(t, 2, s.Operations)
	assert.Equal(t, 1, s.CompletedOps)
	assert.Equal(t, 60, s.Progress)
	assert.Equal(t, 4.0, s.RemainingHours)
	assert.Equal(t, []string{"CNC-1", "WELD"}, s.WorkCenters)

	assert.Equal(t, 35, Job("J-2", nil, 35).Progress)
	assert.Equal(t, 100, Job("J-3", ops([2]float64{2, 9}), 0).Progress)
}
