package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"opsboard/internal/database"
	"opsboard/internal/models"
	"opsboard/internal/tables"
)

// NCRFilter narrows ListNCRs.
type NCRFilter struct {
	JobNumber string
	Status    string
	Search    string
}

var ncrSearchCols = []string{"id", "job_number", "part_number", "issue", "root_cause"}

func ncrFromRow(r tables.Row) models.NCR {
	return models.NCR{
		ID:               str(r, "id"),
		JobNumber:        str(r, "job_number"),
		WorkOrder:        str(r, "work_order"),
		OperationNo:      str(r, "operation"),
		PartNumber:       str(r, "part_number"),
		Issue:            str(r, "issue"),
		RootCause:        str(r, "root_cause"),
		CorrectiveAction: str(r, "corrective_action"),
		FinancialImpact:  dec(r, "financial_impact"),
		Status:           str(r, "status"),
		ReportedBy:       str(r, "reported_by"),
		CreatedAt:        str(r, "created_at"),
		ResolvedAt:       strPtr(r, "resolved_at"),
	}
}

func ncrIsOpen(status string) bool {
	return status == "open" || status == "investigating"
}

// ListNCRs returns non-conformance reports, newest first.
func (s *Store) ListNCRs(ctx context.Context, f NCRFilter) ([]models.NCR, error) {
	q := tables.Query{OrderBy: "created_at", Desc: true}
	if f.JobNumber != "" {
		q.Filters = append(q.Filters, tables.Or(tables.Eq("job_number", f.JobNumber), tables.Eq("work_order", f.JobNumber)))
	}
	if f.Status != "" {
		q.Filters = append(q.Filters, tables.Eq("status", f.Status))
	}
	if f.Search != "" {
		q.Filters = append(q.Filters, tables.AnyOf(ncrSearchCols, f.Search))
	}
	rows, err := s.selectRows(ctx, database.TableNCRs, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.NCR, 0, len(rows))
	for _, r := range rows {
		out = append(out, ncrFromRow(r))
	}
	return out, nil
}

// GetNCR returns one report.
func (s *Store) GetNCR(ctx context.Context, id string) (models.NCR, error) {
	rows, err := s.selectRows(ctx, database.TableNCRs, tables.Query{
		Filters: []tables.Filter{tables.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return models.NCR{}, err
	}
	if len(rows) == 0 {
		return models.NCR{}, fmt.Errorf("ncr %s: %w", id, ErrNotFound)
	}
	return ncrFromRow(rows[0]), nil
}

// CreateNCR files a new report with the next NCR-YYYY-NNN id.
func (s *Store) CreateNCR(ctx context.Context, n models.NCR) (models.NCR, error) {
	id, err := database.NextID(ctx, s.write(), "NCR", database.TableNCRs, 3)
	if err != nil {
		return n, err
	}
	n.ID = id
	n.CreatedAt = s.now()
	if n.Status == "" {
		n.Status = "open"
	}
	row := tables.Row{
		"id":                n.ID,
		"job_number":        n.JobNumber,
		"work_order":        n.WorkOrder,
		"operation":         n.OperationNo,
		"part_number":       n.PartNumber,
		"issue":             n.Issue,
		"root_cause":        n.RootCause,
		"corrective_action": n.CorrectiveAction,
		"financial_impact":  n.FinancialImpact.String(),
		"status":            n.Status,
		"reported_by":       n.ReportedBy,
		"created_at":        n.CreatedAt,
	}
	if !ncrIsOpen(n.Status) {
		at := n.CreatedAt
		n.ResolvedAt = &at
		row["resolved_at"] = at
	}
	if _, err := s.write().Insert(ctx, database.TableNCRs, row); err != nil {
		return n, err
	}
	s.invalidate()
	return n, nil
}

// NCRUpdate holds the editable fields of a report. Nil fields are left
// unchanged.
type NCRUpdate struct {
	Status           *string          `json:"status"`
	RootCause        *string          `json:"root_cause"`
	CorrectiveAction *string          `json:"corrective_action"`
	FinancialImpact  *decimal.Decimal `json:"financial_impact"`
}

// UpdateNCR applies u. Moving to resolved or closed stamps resolved_at;
// reopening clears it.
func (s *Store) UpdateNCR(ctx context.Context, id string, u NCRUpdate) (models.NCR, error) {
	cur, err := s.GetNCR(ctx, id)
	if err != nil {
		return cur, err
	}
	set := tables.Row{}
	if u.RootCause != nil {
		set["root_cause"] = *u.RootCause
	}
	if u.CorrectiveAction != nil {
		set["corrective_action"] = *u.CorrectiveAction
	}
	if u.FinancialImpact != nil {
		set["financial_impact"] = u.FinancialImpact.String()
	}
	if u.Status != nil && *u.Status != cur.Status {
		set["status"] = *u.Status
		if ncrIsOpen(*u.Status) {
			set["resolved_at"] = nil
		} else if ncrIsOpen(cur.Status) {
			set["resolved_at"] = s.now()
		}
	}
	if len(set) == 0 {
		return cur, nil
	}
	if _, err := s.write().Update(ctx, database.TableNCRs, set, tables.Eq("id", id)); err != nil {
		return cur, err
	}
	s.invalidate()
	return s.GetNCR(ctx, id)
}

// NCRSummary totals reports by status and financial impact.
func (s *Store) NCRSummary(ctx context.Context) (models.NCRSummary, error) {
	ncrs, err := s.ListNCRs(ctx, NCRFilter{})
	if err != nil {
		return models.NCRSummary{}, err
	}
	sum := models.NCRSummary{
		Total:           len(ncrs),
		ByStatus:        map[string]int{},
		FinancialImpact: decimal.Zero,
		OpenImpact:      decimal.Zero,
	}
	for _, n := range ncrs {
		sum.ByStatus[n.Status]++
		sum.FinancialImpact = sum.FinancialImpact.Add(n.FinancialImpact)
		if ncrIsOpen(n.Status) {
			sum.OpenImpact = sum.OpenImpact.Add(n.FinancialImpact)
		}
	}
	return sum, nil
}
