// Package rollup derives work-center and job figures from operation rows.
// Nothing here is persisted as ground truth; the work_centers table only
// keeps the last snapshot for display.
package rollup

import (
	"math"
	"sort"

	"opsboard/internal/models"
)

// DefaultCapacityHours is one work center's weekly capacity.
const DefaultCapacityHours = 40.0

// Work-center statuses.
const (
	StatusIdle       = "idle"
	StatusAvailable  = "available"
	StatusBusy       = "busy"
	StatusOverloaded = "overloaded"
)

// Efficiency is actual/planned as a percentage, 0 when nothing was planned.
// It is not rounded; exports format it for display.
func Efficiency(planned, actual float64) float64 {
	if planned == 0 {
		return 0
	}
	return actual / planned * 100
}

// IsInProgress reports an operation that has started but not used up its plan.
func IsInProgress(op models.Operation) bool {
	return op.ActualWork > 0 && op.ActualWork < op.PlannedWork
}

// IsBacklog reports an operation with no hours booked yet.
func IsBacklog(op models.Operation) bool {
	return op.ActualWork == 0
}

// WorkCenter computes the metrics for one work center. capacity is the
// weekly hour budget; zero or less uses DefaultCapacityHours.
//
// Sums are taken over sorted values so the result does not depend on the
// order rows came back from the backend.
func WorkCenter(name string, ops []models.Operation, capacity float64) models.WorkCenterMetrics {
	if capacity <= 0 {
		capacity = DefaultCapacityHours
	}
	m := models.WorkCenterMetrics{Name: name, Operations: len(ops)}

	var planned, actual, remaining, inProg, backlog []float64
	for _, op := range ops {
		planned = append(planned, op.PlannedWork)
		actual = append(actual, op.ActualWork)
		rem := math.Max(0, op.PlannedWork-op.ActualWork)
		remaining = append(remaining, rem)
		switch {
		case IsInProgress(op):
			m.InProgressCount++
			inProg = append(inProg, rem)
		case IsBacklog(op):
			m.BacklogCount++
			backlog = append(backlog, op.PlannedWork)
		}
	}
	m.PlannedHours = sum(planned)
	m.ActualHours = sum(actual)
	m.RemainingHours = sum(remaining)
	m.InProgressHours = sum(inProg)
	m.BacklogHours = sum(backlog)
	m.Efficiency = Efficiency(m.PlannedHours, m.ActualHours)

	load := m.InProgressHours + m.BacklogHours
	m.Utilization = math.Min(100, round2(load/capacity*100))
	m.Status = Status(len(ops), m.Utilization)
	return m
}

// Status maps a utilization percentage to a display status.
func Status(ops int, utilization float64) string {
	switch {
	case ops == 0:
		return StatusIdle
	case utilization < 50:
		return StatusAvailable
	case utilization < 90:
		return StatusBusy
	default:
		return StatusOverloaded
	}
}

// GroupByWorkCenter partitions operations by work center. Operations
// without one are grouped under "Unassigned".
func GroupByWorkCenter(ops []models.Operation) map[string][]models.Operation {
	out := make(map[string][]models.Operation)
	for _, op := range ops {
		wc := op.WorkCenter
		if wc == "" {
			wc = "Unassigned"
		}
		out[wc] = append(out[wc], op)
	}
	return out
}

// AllWorkCenters computes metrics for every work center named in names or
// present in ops, sorted by name.
func AllWorkCenters(names []string, ops []models.Operation, capacity float64) []models.WorkCenterMetrics {
	groups := GroupByWorkCenter(ops)
	for _, n := range names {
		if _, ok := groups[n]; !ok {
			groups[n] = nil
		}
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]models.WorkCenterMetrics, 0, len(keys))
	for _, k := range keys {
		out = append(out, WorkCenter(k, groups[k], capacity))
	}
	return out
}

// Busiest returns up to n work centers ordered by utilization, highest first.
func Busiest(all []models.WorkCenterMetrics, n int) []models.WorkCenterMetrics {
	out := append([]models.WorkCenterMetrics(nil), all...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Utilization > out[j].Utilization
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Job summarizes a job's operations. storedProgress is used when the job
// has no planned hours to measure against.
func Job(jobNumber string, ops []models.Operation, storedProgress int) models.JobSummary {
	s := models.JobSummary{JobNumber: jobNumber, Operations: len(ops), Progress: storedProgress}
	var planned, actual, remaining []float64
	centers := map[string]struct{}{}
	for _, op := range ops {
		planned = append(planned, op.PlannedWork)
		actual = append(actual, op.ActualWork)
		remaining = append(remaining, math.Max(0, op.PlannedWork-op.ActualWork))
		if op.PlannedWork > 0 && op.ActualWork >= op.PlannedWork {
			s.CompletedOps++
		}
		if op.WorkCenter != "" {
			centers[op.WorkCenter] = struct{}{}
		}
	}
	s.PlannedHours = sum(planned)
	s.ActualHours = sum(actual)
	s.RemainingHours = sum(remaining)
	if s.PlannedHours > 0 {
		s.Progress = int(math.Min(100, math.Round(s.ActualHours/s.PlannedHours*100)))
	}
	s.WorkCenters = make([]string, 0, len(centers))
	for wc := range centers {
		s.WorkCenters = append(s.WorkCenters, wc)
	}
	sort.Strings(s.WorkCenters)
	return s
}

func sum(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	var t float64
	for _, v := range sorted {
		t += v
	}
	return t
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
