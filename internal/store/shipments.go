package store

import (
	"context"
	"fmt"

	"opsboard/internal/database"
	"opsboard/internal/models"
	"opsboard/internal/tables"
)

func shipmentFromRow(r tables.Row) models.ShipmentLog {
	return models.ShipmentLog{
		ID:             str(r, "id"),
		PONumber:       str(r, "po_number"),
		Vendor:         str(r, "vendor"),
		Carrier:        str(r, "carrier"),
		TrackingNumber: str(r, "tracking_number"),
		Status:         str(r, "status"),
		ShipDate:       str(r, "ship_date"),
		ExpectedDate:   str(r, "expected_date"),
		ReceivedDate:   str(r, "received_date"),
		Notes:          str(r, "notes"),
		CreatedAt:      str(r, "created_at"),
	}
}

// ListShipments returns shipment logs, newest first. status and poNumber
// are optional.
func (s *Store) ListShipments(ctx context.Context, status, poNumber string) ([]models.ShipmentLog, error) {
	q := tables.Query{OrderBy: "created_at", Desc: true}
	if status != "" {
		q.Filters = append(q.Filters, tables.Eq("status", status))
	}
	if poNumber != "" {
		q.Filters = append(q.Filters, tables.Eq("po_number", poNumber))
	}
	rows, err := s.selectRows(ctx, database.TableShipmentLogs, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.ShipmentLog, 0, len(rows))
	for _, r := range rows {
		out = append(out, shipmentFromRow(r))
	}
	return out, nil
}

// CreateShipment logs a shipment against a purchase order.
func (s *Store) CreateShipment(ctx context.Context, sh models.ShipmentLog) (models.ShipmentLog, error) {
	sh.ID = newID()
	sh.CreatedAt = s.now()
	if sh.Status == "" {
		sh.Status = "pending"
	}
	_, err := s.write().Insert(ctx, database.TableShipmentLogs, tables.Row{
		"id":              sh.ID,
		"po_number":       sh.PONumber,
		"vendor":          sh.Vendor,
		"carrier":         sh.Carrier,
		"tracking_number": sh.TrackingNumber,
		"status":          sh.Status,
		"ship_date":       sh.ShipDate,
		"expected_date":   sh.ExpectedDate,
		"received_date":   sh.ReceivedDate,
		"notes":           sh.Notes,
		"created_at":      sh.CreatedAt,
	})
	if err != nil {
		return sh, err
	}
	s.invalidate()
	return sh, nil
}

// UpdateShipmentStatus moves a shipment along. Delivery stamps the
// received date.
func (s *Store) UpdateShipmentStatus(ctx context.Context, id, status string) error {
	set := tables.Row{"status": status}
	if status == "delivered" {
		set["received_date"] = s.now()
	}
	n, err := s.write().Update(ctx, database.TableShipmentLogs, set, tables.Eq("id", id))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("shipment %s: %w", id, ErrNotFound)
	}
	s.invalidate()
	return nil
}

// VendorOperationsForJob returns a job's outside-processing steps.
func (s *Store) VendorOperationsForJob(ctx context.Context, jobNumber string) ([]models.VendorOperation, error) {
	rows, err := s.selectRows(ctx, database.TableVendorOperations, tables.Query{
		Filters: []tables.Filter{tables.Eq("job_number", jobNumber)},
		OrderBy: "sent_date",
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.VendorOperation, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.VendorOperation{
			ID:           str(r, "id"),
			JobNumber:    str(r, "job_number"),
			Vendor:       str(r, "vendor"),
			Operation:    str(r, "operation"),
			PONumber:     str(r, "po_number"),
			Status:       str(r, "status"),
			SentDate:     str(r, "sent_date"),
			DueDate:      str(r, "due_date"),
			ReceivedDate: str(r, "received_date"),
		})
	}
	return out, nil
}

// UpsertVendorOperation creates or replaces an outside-processing step.
func (s *Store) UpsertVendorOperation(ctx context.Context, v models.VendorOperation) (models.VendorOperation, error) {
	if v.ID == "" {
		v.ID = newID()
	}
	if v.Status == "" {
		v.Status = "pending"
	}
	defer s.invalidate()
	_, err := s.write().Upsert(ctx, database.TableVendorOperations, "id", tables.Row{
		"id":            v.ID,
		"job_number":    v.JobNumber,
		"vendor":        v.Vendor,
		"operation":     v.Operation,
		"po_number":     v.PONumber,
		"status":        v.Status,
		"sent_date":     v.SentDate,
		"due_date":      v.DueDate,
		"received_date": v.ReceivedDate,
	})
	return v, err
}
