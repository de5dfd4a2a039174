package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"opsboard/internal/database"
	"opsboard/internal/linker"
	"opsboard/internal/models"
	"opsboard/internal/tables"
)

// POFilter narrows ListPurchaseOrders.
type POFilter struct {
	JobID    string
	Vendor   string
	Status   string
	Search   string
	Unlinked bool
}

var poSearchCols = []string{"po_number", "vendor", "description", "reference", "notes"}

func poFromRow(r tables.Row) models.PurchaseOrder {
	return models.PurchaseOrder{
		PONumber:     str(r, "po_number"),
		JobID:        str(r, "job_id"),
		Vendor:       str(r, "vendor"),
		Description:  str(r, "description"),
		Reference:    str(r, "reference"),
		Notes:        str(r, "notes"),
		Amount:       dec(r, "amount"),
		Status:       str(r, "status"),
		OrderDate:    str(r, "order_date"),
		DeliveryDate: str(r, "delivery_date"),
		UpdatedAt:    str(r, "updated_at"),
	}
}

func poToRow(po models.PurchaseOrder) tables.Row {
	return tables.Row{
		"po_number":     po.PONumber,
		"job_id":        po.JobID,
		"vendor":        po.Vendor,
		"description":   po.Description,
		"reference":     po.Reference,
		"notes":         po.Notes,
		"amount":        po.Amount.String(),
		"status":        po.Status,
		"order_date":    po.OrderDate,
		"delivery_date": po.DeliveryDate,
		"updated_at":    po.UpdatedAt,
	}
}

// ListPurchaseOrders returns purchase orders, most recently ordered first.
func (s *Store) ListPurchaseOrders(ctx context.Context, f POFilter) ([]models.PurchaseOrder, error) {
	q := tables.Query{OrderBy: "order_date", Desc: true}
	if f.JobID != "" {
		q.Filters = append(q.Filters, tables.Eq("job_id", f.JobID))
	}
	if f.Vendor != "" {
		q.Filters = append(q.Filters, tables.ILike("vendor", f.Vendor))
	}
	if f.Status != "" {
		q.Filters = append(q.Filters, tables.Eq("status", f.Status))
	}
	if f.Search != "" {
		q.Filters = append(q.Filters, tables.AnyOf(poSearchCols, f.Search))
	}
	if f.Unlinked {
		q.Filters = append(q.Filters, tables.Or(tables.Eq("job_id", ""), tables.IsNull("job_id")))
	}
	rows, err := s.selectRows(ctx, database.TablePurchaseOrders, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.PurchaseOrder, 0, len(rows))
	for _, r := range rows {
		out = append(out, poFromRow(r))
	}
	return out, nil
}

// GetPurchaseOrder returns one purchase order.
func (s *Store) GetPurchaseOrder(ctx context.Context, poNumber string) (models.PurchaseOrder, error) {
	rows, err := s.selectRows(ctx, database.TablePurchaseOrders, tables.Query{
		Filters: []tables.Filter{tables.Eq("po_number", poNumber)},
		Limit:   1,
	})
	if err != nil {
		return models.PurchaseOrder{}, err
	}
	if len(rows) == 0 {
		return models.PurchaseOrder{}, fmt.Errorf("purchase order %s: %w", poNumber, ErrNotFound)
	}
	return poFromRow(rows[0]), nil
}

// UpsertPurchaseOrder creates or replaces one purchase order.
func (s *Store) UpsertPurchaseOrder(ctx context.Context, po models.PurchaseOrder) (models.PurchaseOrder, error) {
	if po.Status == "" {
		po.Status = "open"
	}
	po.UpdatedAt = s.now()
	if _, err := s.write().Upsert(ctx, database.TablePurchaseOrders, "po_number", poToRow(po)); err != nil {
		return po, err
	}
	s.invalidate()
	return po, nil
}

// UpsertPurchaseOrders writes one import batch in a single statement. An
// existing job link is kept when the incoming row carries none.
func (s *Store) UpsertPurchaseOrders(ctx context.Context, batch []models.PurchaseOrder) error {
	if len(batch) == 0 {
		return nil
	}
	now := s.now()
	rows := make([]tables.Row, 0, len(batch))
	for _, po := range batch {
		if po.Status == "" {
			po.Status = "open"
		}
		po.UpdatedAt = now
		r := poToRow(po)
		if strings.TrimSpace(po.JobID) == "" {
			delete(r, "job_id")
		}
		rows = append(rows, r)
	}
	// Rows missing job_id would otherwise be padded with NULL by the
	// multi-row upsert, so split them from rows that carry a link.
	var linked, unlinked []tables.Row
	for _, r := range rows {
		if _, ok := r["job_id"]; ok {
			linked = append(linked, r)
		} else {
			unlinked = append(unlinked, r)
		}
	}
	defer s.invalidate()
	for _, group := range [][]tables.Row{unlinked, linked} {
		if len(group) == 0 {
			continue
		}
		if _, err := s.write().Upsert(ctx, database.TablePurchaseOrders, "po_number", group...); err != nil {
			return err
		}
	}
	return nil
}

// SetPurchaseOrderJob records a job link on a purchase order.
func (s *Store) SetPurchaseOrderJob(ctx context.Context, poNumber, jobNumber string) error {
	n, err := s.write().Update(ctx, database.TablePurchaseOrders,
		tables.Row{"job_id": jobNumber, "updated_at": s.now()}, tables.Eq("po_number", poNumber))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("purchase order %s: %w", poNumber, ErrNotFound)
	}
	s.invalidate()
	return nil
}

// LinkPurchaseOrders scans unlinked purchase orders for job numbers and
// stores the links it finds. With dryRun set nothing is written. Running it
// twice links nothing the second time.
func (s *Store) LinkPurchaseOrders(ctx context.Context, dryRun bool) (models.LinkResult, error) {
	jobs, err := s.JobNumbers(ctx)
	if err != nil {
		return models.LinkResult{}, err
	}
	pos, err := s.ListPurchaseOrders(ctx, POFilter{Unlinked: true})
	if err != nil {
		return models.LinkResult{}, err
	}
	res := linker.NewMatcher(jobs).Plan(pos)
	if dryRun {
		return res, nil
	}
	for po, job := range res.Links {
		if err := s.SetPurchaseOrderJob(ctx, po, job); err != nil {
			return res, fmt.Errorf("link %s to %s: %w", po, job, err)
		}
		s.log.Debug("linked purchase order", zap.String("po", po), zap.String("job", job))
	}
	return res, nil
}
