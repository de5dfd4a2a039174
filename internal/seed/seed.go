// Package seed loads a small demo data set into an empty backend. It only
// runs when asked to; reads never fall back to inserting sample rows.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"opsboard/internal/database"
	"opsboard/internal/models"
	"opsboard/internal/store"
)

// Result reports how many rows each table received.
type Result struct {
	Tables map[string]int `json:"tables"`
	// Skipped lists tables left alone because they already held rows.
	Skipped []string `json:"skipped,omitempty"`
}

// keys maps each seeded table to the column Clear filters on.
var keys = []struct{ table, key string }{
	{database.TableJobs, "job_number"},
	{database.TableSAPOperations, "op_key"},
	{database.TableJobOperations, "op_key"},
	{database.TablePurchaseOrders, "po_number"},
	{database.TableShipmentLogs, "id"},
	{database.TableVendorOperations, "id"},
	{database.TableNCRs, "id"},
	{database.TableWorkCenters, "name"},
	{database.TableJobNotes, "id"},
	{database.TableJobTimelines, "id"},
}

// Run seeds every empty table. With force set, existing rows are deleted
// first.
func Run(ctx context.Context, st *store.Store, force bool, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	res := Result{Tables: map[string]int{}}
	empty := map[string]bool{}
	for _, k := range keys {
		if force {
			n, err := st.Clear(ctx, k.table, k.key)
			if err != nil {
				return res, fmt.Errorf("clear %s: %w", k.table, err)
			}
			log.Info("cleared table", zap.String("table", k.table), zap.Int64("rows", n))
		}
		n, err := st.Count(ctx, k.table)
		if err != nil {
			return res, err
		}
		empty[k.table] = n == 0
		if n > 0 {
			res.Skipped = append(res.Skipped, k.table)
		}
	}

	now := time.Now().UTC()
	day := func(offset int) string { return now.AddDate(0, 0, offset).Format(time.DateOnly) }

	if empty[database.TableJobs] {
		for _, j := range sampleJobs(day) {
			if _, err := st.UpsertJob(ctx, j); err != nil {
				return res, fmt.Errorf("seed job %s: %w", j.JobNumber, err)
			}
			res.Tables[database.TableJobs]++
		}
	}
	if empty[database.TableSAPOperations] {
		ops := sampleSAPOperations(day)
		if err := st.UpsertSAPOperations(ctx, ops); err != nil {
			return res, fmt.Errorf("seed sap operations: %w", err)
		}
		res.Tables[database.TableSAPOperations] = len(ops)
	}
	if empty[database.TableJobOperations] {
		ops := sampleJobOperations(day)
		if err := st.UpsertJobOperations(ctx, ops); err != nil {
			return res, fmt.Errorf("seed job operations: %w", err)
		}
		res.Tables[database.TableJobOperations] = len(ops)
	}
	if empty[database.TablePurchaseOrders] {
		pos := samplePurchaseOrders(day)
		if err := st.UpsertPurchaseOrders(ctx, pos); err != nil {
			return res, fmt.Errorf("seed purchase orders: %w", err)
		}
		res.Tables[database.TablePurchaseOrders] = len(pos)
	}
	if empty[database.TableShipmentLogs] {
		for _, sh := range sampleShipments(day) {
			if _, err := st.CreateShipment(ctx, sh); err != nil {
				return res, fmt.Errorf("seed shipment: %w", err)
			}
			res.Tables[database.TableShipmentLogs]++
		}
	}
	if empty[database.TableVendorOperations] {
		for _, v := range sampleVendorOperations(day) {
			if _, err := st.UpsertVendorOperation(ctx, v); err != nil {
				return res, fmt.Errorf("seed vendor operation: %w", err)
			}
			res.Tables[database.TableVendorOperations]++
		}
	}
	if empty[database.TableNCRs] {
		for _, n := range sampleNCRs() {
			if _, err := st.CreateNCR(ctx, n); err != nil {
				return res, fmt.Errorf("seed ncr: %w", err)
			}
			res.Tables[database.TableNCRs]++
		}
	}
	if empty[database.TableJobNotes] {
		note := models.JobNote{JobNumber: "J-2024-101", Body: "Customer approved revised bracket drawing.", Author: "planner"}
		if _, err := st.AddNote(ctx, note); err != nil {
			return res, fmt.Errorf("seed note: %w", err)
		}
		res.Tables[database.TableJobNotes]++
	}
	if empty[database.TableJobTimelines] {
		ev := models.TimelineEvent{JobNumber: "J-2024-101", EventType: "created", Description: "Job released from SAP"}
		if _, err := st.AddTimelineEvent(ctx, ev); err != nil {
			return res, fmt.Errorf("seed timeline: %w", err)
		}
		res.Tables[database.TableJobTimelines]++
	}
	if empty[database.TableWorkCenters] {
		wcs, err := st.RefreshWorkCenters(ctx)
		if err != nil {
			return res, fmt.Errorf("seed work centers: %w", err)
		}
		res.Tables[database.TableWorkCenters] = len(wcs)
	}

	for t, n := range res.Tables {
		log.Info("seeded table", zap.String("table", t), zap.Int("rows", n))
	}
	return res, nil
}

func sampleJobs(day func(int) string) []models.Job {
	return []models.Job{
		{JobNumber: "J-2024-101", Title: "Hydraulic manifold block", Customer: "Acme Fluid Power",
			Status: "in_progress", Priority: "high", WorkCenter: "CNC-MILL", DueDate: day(10), StartDate: day(-5)},
		{JobNumber: "J-2024-102", Title: "Pump housing machining", Customer: "Northfield Pumps",
			Status: "in_progress", Priority: "normal", WorkCenter: "CNC-LATHE", DueDate: day(-2), StartDate: day(-12)},
		{JobNumber: "J-2024-103", Title: "Welded mounting frame", Customer: "Ridgeline Equipment",
			Status: "not_started", Priority: "normal", WorkCenter: "WELD", DueDate: day(21), StartDate: day(3)},
		{JobNumber: "J-2024-104", Title: "Anodized heat sink", Customer: "Voltaic Systems",
			Status: "on_hold", Priority: "low", WorkCenter: "CNC-MILL", DueDate: day(30)},
		{JobNumber: "J-2024-105", Title: "Gearbox cover plate", Customer: "Acme Fluid Power",
			Status: "completed", Priority: "normal", WorkCenter: "INSPECT", Progress: 100, DueDate: day(-7)},
	}
}

func op(order, no, wc, desc string, planned, actual float64) models.Operation {
	return models.Operation{Order: order, SalesDocument: order, OperationNo: no, WorkCenter: wc,
		Description: desc, PlannedWork: planned, ActualWork: actual}
}

func sampleSAPOperations(day func(int) string) []models.Operation {
	ops := []models.Operation{
		op("J-2024-101", "0010", "SAW", "Cut blank", 2, 2),
		op("J-2024-101", "0020", "CNC-MILL", "Rough mill ports", 12, 6.5),
		op("J-2024-101", "0030", "CNC-MILL", "Finish mill", 8, 0),
		op("J-2024-101", "0040", "INSPECT", "CMM inspection", 2, 0),
		op("J-2024-102", "0010", "CNC-LATHE", "Turn OD", 10, 10),
		op("J-2024-102", "0020", "CNC-LATHE", "Bore and face", 6, 4),
		op("J-2024-103", "0010", "WELD", "Tack and weld frame", 16, 0),
		op("J-2024-105", "0010", "INSPECT", "Final inspection", 1.5, 1.5),
	}
	for i := range ops {
		ops[i].StartDate = day(-5 + i)
		ops[i].FinishDate = day(-4 + i)
	}
	return ops
}

func sampleJobOperations(day func(int) string) []models.Operation {
	// Overrides the SAP copy of J-2024-101/0020 with booked hours.
	return []models.Operation{
		{Order: "J-2024-101", SalesDocument: "J-2024-101", OperationNo: "0020", WorkCenter: "CNC-MILL",
			Description: "Rough mill ports", PlannedWork: 12, ActualWork: 9, StartDate: day(-3)},
		{Order: "J-2024-104", SalesDocument: "J-2024-104", OperationNo: "0010", WorkCenter: "CNC-MILL",
			Description: "Mill fins", PlannedWork: 14, ActualWork: 0, StartDate: day(4)},
	}
}

func samplePurchaseOrders(day func(int) string) []models.PurchaseOrder {
	return []models.PurchaseOrder{
		{PONumber: "4500012001", Vendor: "Metals Depot", Description: "6061-T6 bar stock for J-2024-101",
			Amount: decimal.RequireFromString("1842.50"), Status: "open", OrderDate: day(-9), DeliveryDate: day(2)},
		{PONumber: "4500012002", Vendor: "Precision Anodize", Description: "Type II black anodize",
			Reference: "2024-104", Amount: decimal.RequireFromString("615.00"), Status: "open", OrderDate: day(-3), DeliveryDate: day(12)},
		{PONumber: "4500012003", Vendor: "Fastenal", Description: "Shop supplies",
			Amount: decimal.RequireFromString("129.99"), Status: "received", OrderDate: day(-20), DeliveryDate: day(-15)},
	}
}

func sampleShipments(day func(int) string) []models.ShipmentLog {
	return []models.ShipmentLog{
		{PONumber: "4500012001", Vendor: "Metals Depot", Carrier: "UPS", TrackingNumber: "1Z999AA10123456784",
			Status: "in_transit", ShipDate: day(-1), ExpectedDate: day(2)},
		{PONumber: "4500012003", Vendor: "Fastenal", Carrier: "FedEx", TrackingNumber: "794698621234",
			Status: "delivered", ShipDate: day(-17), ExpectedDate: day(-15), ReceivedDate: day(-15)},
	}
}

func sampleVendorOperations(day func(int) string) []models.VendorOperation {
	return []models.VendorOperation{
		{JobNumber: "J-2024-104", Vendor: "Precision Anodize", Operation: "Anodize Type II black",
			PONumber: "4500012002", Status: "pending", DueDate: day(12)},
	}
}

func sampleNCRs() []models.NCR {
	return []models.NCR{
		{JobNumber: "J-2024-102", OperationNo: "0020", PartNumber: "PH-220", Issue: "Bore diameter 0.02mm oversize",
			FinancialImpact: decimal.RequireFromString("340.00"), Status: "investigating", ReportedBy: "qc"},
		{JobNumber: "J-2024-105", OperationNo: "0010", PartNumber: "GC-118", Issue: "Cosmetic scratch on face",
			RootCause: "Fixture pad worn", CorrectiveAction: "Replaced fixture pads",
			FinancialImpact: decimal.RequireFromString("45.00"), Status: "closed", ReportedBy: "qc"},
	}
}
