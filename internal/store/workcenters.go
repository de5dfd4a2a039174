package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"opsboard/internal/database"
	"opsboard/internal/models"
	"opsboard/internal/rollup"
	"opsboard/internal/tables"
)

// WorkCenterNames returns the sorted union of the work centers in the
// snapshot table and those named on any operation.
func (s *Store) WorkCenterNames(ctx context.Context) ([]string, error) {
	names, err := s.snapshotNames(ctx)
	if err != nil {
		return nil, err
	}
	ops, err := s.AllOperations(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, op := range ops {
		if n := strings.TrimSpace(op.WorkCenter); n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) snapshotNames(ctx context.Context) ([]string, error) {
	rows, err := s.selectRows(ctx, database.TableWorkCenters, tables.Query{Columns: []string{"name"}, OrderBy: "name"})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, str(r, "name"))
	}
	return out, nil
}

// WorkCenterMetrics computes one work center's figures from its operations.
func (s *Store) WorkCenterMetrics(ctx context.Context, name string) (models.WorkCenterMetrics, error) {
	ops, err := s.OperationsForWorkCenter(ctx, name)
	if err != nil {
		return models.WorkCenterMetrics{}, err
	}
	return rollup.WorkCenter(name, ops, s.CapacityHours), nil
}

// AllWorkCenterMetrics computes figures for every work center. Results are
// cached until the next write.
func (s *Store) AllWorkCenterMetrics(ctx context.Context) ([]models.WorkCenterMetrics, error) {
	return cacheGet(s, "work-centers", func() ([]models.WorkCenterMetrics, error) {
		names, err := s.snapshotNames(ctx)
		if err != nil {
			return nil, err
		}
		ops, err := s.AllOperations(ctx)
		if err != nil {
			return nil, err
		}
		return rollup.AllWorkCenters(names, ops, s.CapacityHours), nil
	})
}

// RefreshWorkCenters recomputes every work center and stores the snapshot.
func (s *Store) RefreshWorkCenters(ctx context.Context) ([]models.WorkCenterMetrics, error) {
	s.invalidate()
	all, err := s.AllWorkCenterMetrics(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rows := make([]tables.Row, 0, len(all))
	for _, m := range all {
		rows = append(rows, tables.Row{
			"name": m.Name, "status": m.Status, "utilization": m.Utilization, "updated_at": now,
		})
	}
	if err := s.upsertBatched(ctx, database.TableWorkCenters, "name", rows); err != nil {
		return nil, err
	}
	s.log.Info("work centers refreshed", zap.Int("count", len(all)))
	return all, nil
}

// Dashboard assembles the overview counters. Results are cached until the
// next write.
func (s *Store) Dashboard(ctx context.Context) (models.DashboardData, error) {
	return cacheGet(s, "dashboard", func() (models.DashboardData, error) {
		d := models.DashboardData{JobsByStatus: map[string]int{}, OpenPOValue: decimal.Zero}

		jobs, err := s.ListJobs(ctx, JobFilter{})
		if err != nil {
			return d, err
		}
		today := s.Now().UTC().Format(time.DateOnly)
		d.TotalJobs = len(jobs)
		for _, j := range jobs {
			d.JobsByStatus[j.Status]++
			if isOverdue(j, today) {
				d.OverdueJobs++
			}
		}

		ncrs, err := s.ListNCRs(ctx, NCRFilter{})
		if err != nil {
			return d, err
		}
		for _, n := range ncrs {
			if ncrIsOpen(n.Status) {
				d.OpenNCRs++
			}
		}

		pos, err := s.ListPurchaseOrders(ctx, POFilter{})
		if err != nil {
			return d, err
		}
		for _, po := range pos {
			if poIsOpen(po.Status) {
				d.OpenPOs++
				d.OpenPOValue = d.OpenPOValue.Add(po.Amount)
			}
		}

		shipments, err := s.ListShipments(ctx, "in_transit", "")
		if err != nil {
			return d, err
		}
		d.InTransitShipments = len(shipments)

		wcs, err := s.AllWorkCenterMetrics(ctx)
		if err != nil {
			return d, err
		}
		d.TopWorkCenters = rollup.Busiest(wcs, 5)
		return d, nil
	})
}

func isOverdue(j models.Job, today string) bool {
	if j.Status == "completed" || j.Status == "cancelled" || len(j.DueDate) < len(time.DateOnly) {
		return false
	}
	return j.DueDate[:len(time.DateOnly)] < today
}

func poIsOpen(status string) bool {
	switch strings.ToLower(status) {
	case "closed", "received", "cancelled", "complete", "completed":
		return false
	}
	return true
}

// OverdueJobs lists open jobs past their due date, earliest first.
func (s *Store) OverdueJobs(ctx context.Context) ([]models.Job, error) {
	jobs, err := s.ListJobs(ctx, JobFilter{})
	if err != nil {
		return nil, err
	}
	today := s.Now().UTC().Format(time.DateOnly)
	var out []models.Job
	for _, j := range jobs {
		if isOverdue(j, today) {
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].DueDate < out[k].DueDate })
	return out, nil
}
