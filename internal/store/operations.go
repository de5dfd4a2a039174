package store

import (
	"context"
	"errors"
	"fmt"

	"opsboard/internal/database"
	"opsboard/internal/models"
	"opsboard/internal/reconcile"
	"opsboard/internal/tables"
)

func canonicalRows(rows []tables.Row, source string) []models.Operation {
	out := make([]models.Operation, 0, len(rows))
	for _, r := range rows {
		out = append(out, reconcile.Canonicalize(r, source))
	}
	return out
}

// readOperations reads both operation tables with per-table filters and
// merges the result.
func (s *Store) readOperations(ctx context.Context, sapFilters, jobFilters []tables.Filter) ([]models.Operation, error) {
	sapRows, err := s.selectRows(ctx, database.TableSAPOperations, tables.Query{Filters: sapFilters})
	if err != nil {
		return nil, err
	}
	jobRows, err := s.selectRows(ctx, database.TableJobOperations, tables.Query{Filters: jobFilters})
	if err != nil {
		return nil, err
	}
	return reconcile.Merge(
		canonicalRows(jobRows, reconcile.SourceJob),
		canonicalRows(sapRows, reconcile.SourceSAP),
	), nil
}

// OperationsForJob returns a job's routing. An operation belongs to the job
// when either its order or its sales document equals the job number.
func (s *Store) OperationsForJob(ctx context.Context, jobNumber string) ([]models.Operation, error) {
	return s.readOperations(ctx,
		[]tables.Filter{tables.Or(tables.Eq("order_number", jobNumber), tables.Eq("sales_document", jobNumber))},
		[]tables.Filter{tables.Or(tables.Eq("Order", jobNumber), tables.Eq("Sales Document", jobNumber))},
	)
}

// AllOperations returns every operation from both tables.
func (s *Store) AllOperations(ctx context.Context) ([]models.Operation, error) {
	return s.readOperations(ctx, nil, nil)
}

// OperationsForWorkCenter returns the operations routed through one work
// center.
func (s *Store) OperationsForWorkCenter(ctx context.Context, name string) ([]models.Operation, error) {
	return s.readOperations(ctx,
		[]tables.Filter{tables.Eq("work_center", name)},
		[]tables.Filter{tables.Eq("Work Center", name)},
	)
}

// UpsertSAPOperations writes operations to sap_operations.
func (s *Store) UpsertSAPOperations(ctx context.Context, ops []models.Operation) error {
	now := s.now()
	rows := make([]tables.Row, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, reconcile.ToSAPRow(op, now))
	}
	defer s.invalidate()
	return s.upsertBatched(ctx, database.TableSAPOperations, "op_key", rows)
}

// UpsertJobOperations writes operations to job_operations.
func (s *Store) UpsertJobOperations(ctx context.Context, ops []models.Operation) error {
	rows := make([]tables.Row, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, reconcile.ToJobOperationRow(op))
	}
	defer s.invalidate()
	return s.upsertBatched(ctx, database.TableJobOperations, "op_key", rows)
}

// UpdateActualWork books actual hours against an operation in every table
// that holds it and re-derives its status from the new hours.
func (s *Store) UpdateActualWork(ctx context.Context, order, operationNo string, hours float64) (models.Operation, error) {
	if hours < 0 {
		return models.Operation{}, fmt.Errorf("actual work must not be negative")
	}
	ops, err := s.OperationsForJob(ctx, order)
	if err != nil {
		return models.Operation{}, err
	}
	var op *models.Operation
	for i := range ops {
		if ops[i].OperationNo == operationNo {
			op = &ops[i]
			break
		}
	}
	if op == nil {
		return models.Operation{}, fmt.Errorf("operation %s: %w", reconcile.Key(order, operationNo), ErrNotFound)
	}

	op.ActualWork = hours
	op.RemainingWork = reconcile.Remaining(op.PlannedWork, hours)
	op.Status = reconcile.DeriveStatus(op.PlannedWork, hours)

	// The merged view hides a sap_operations copy shadowed by a
	// job_operations row, so both tables are written.
	jobN, err := s.write().Update(ctx, database.TableJobOperations,
		tables.Row{"Actual work": hours, "System Status": op.Status},
		tables.Or(tables.Eq("Order", order), tables.Eq("Sales Document", order)),
		tables.Eq("Oper./Act.", operationNo))
	if err != nil && !errors.Is(err, tables.ErrTableMissing) {
		return *op, err
	}
	sapN, err := s.write().Update(ctx, database.TableSAPOperations,
		tables.Row{"actual_work": hours, "status": op.Status, "updated_at": s.now()},
		tables.Or(tables.Eq("order_number", order), tables.Eq("sales_document", order)),
		tables.Eq("operation_number", operationNo))
	if err != nil && !errors.Is(err, tables.ErrTableMissing) {
		return *op, err
	}
	if jobN+sapN == 0 {
		return *op, fmt.Errorf("operation %s: %w", reconcile.Key(order, operationNo), ErrNotFound)
	}
	s.invalidate()
	return *op, nil
}
