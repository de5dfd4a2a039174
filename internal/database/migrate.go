package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"opsboard/internal/tables"
)

// Table names.
const (
	TableJobs             = "jobs"
	TableJobOperations    = "job_operations"
	TableSAPOperations    = "sap_operations"
	TablePurchaseOrders   = "purchase_orders"
	TableShipmentLogs     = "shipmentlogs"
	TableVendorOperations = "vendor_operations"
	TableJobTimelines     = "job_timelines"
	TableJobNotes         = "job_notes"
	TableJobReminders     = "job_reminders"
	TableNCRs             = "ncrs"
	TableWorkCenters      = "work_centers"
	TableAuditLog         = "audit_log"
)

// Schema is the DDL for every table, in creation order. Types are limited to
// those SQLite and Postgres both accept; timestamps are ISO-8601 text.
var Schema = []struct {
	Name string
	DDL  string
}{
	{TableJobs, `CREATE TABLE IF NOT EXISTS jobs (
		job_number TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		description TEXT DEFAULT '',
		status TEXT DEFAULT 'not_started' CHECK(status IN ('not_started','in_progress','on_hold','completed','cancelled')),
		priority TEXT DEFAULT 'normal' CHECK(priority IN ('low','normal','high','critical')),
		progress INTEGER DEFAULT 0 CHECK(progress >= 0 AND progress <= 100),
		work_center TEXT DEFAULT '',
		customer TEXT DEFAULT '',
		due_date TEXT DEFAULT '',
		scheduled_date TEXT DEFAULT '',
		created_at TEXT DEFAULT '',
		updated_at TEXT DEFAULT ''
	)`},
	{TableSAPOperations, `CREATE TABLE IF NOT EXISTS sap_operations (
		op_key TEXT PRIMARY KEY,
		order_number TEXT DEFAULT '',
		sales_document TEXT DEFAULT '',
		operation_number TEXT DEFAULT '',
		work_center TEXT DEFAULT '',
		description TEXT DEFAULT '',
		planned_work REAL DEFAULT 0,
		actual_work REAL DEFAULT 0,
		status TEXT DEFAULT '',
		start_date TEXT DEFAULT '',
		finish_date TEXT DEFAULT '',
		updated_at TEXT DEFAULT ''
	)`},
	{TableJobOperations, `CREATE TABLE IF NOT EXISTS job_operations (
		op_key TEXT PRIMARY KEY,
		"Order" TEXT DEFAULT '',
		"Sales Document" TEXT DEFAULT '',
		"Oper./Act." TEXT DEFAULT '',
		"Work Center" TEXT DEFAULT '',
		"Operation short text" TEXT DEFAULT '',
		"Work" REAL DEFAULT 0,
		"Actual work" REAL DEFAULT 0,
		"System Status" TEXT DEFAULT '',
		"Earl.start date" TEXT DEFAULT '',
		"Earliest end date" TEXT DEFAULT ''
	)`},
	{TablePurchaseOrders, `CREATE TABLE IF NOT EXISTS purchase_orders (
		po_number TEXT PRIMARY KEY,
		job_id TEXT DEFAULT '',
		vendor TEXT DEFAULT '',
		description TEXT DEFAULT '',
		reference TEXT DEFAULT '',
		notes TEXT DEFAULT '',
		amount NUMERIC DEFAULT 0,
		status TEXT DEFAULT 'open',
		order_date TEXT DEFAULT '',
		delivery_date TEXT DEFAULT '',
		updated_at TEXT DEFAULT ''
	)`},
	{TableShipmentLogs, `CREATE TABLE IF NOT EXISTS shipmentlogs (
		id TEXT PRIMARY KEY,
		po_number TEXT DEFAULT '',
		vendor TEXT DEFAULT '',
		carrier TEXT DEFAULT '',
		tracking_number TEXT DEFAULT '',
		status TEXT DEFAULT 'pending' CHECK(status IN ('pending','in_transit','delivered','delayed')),
		ship_date TEXT DEFAULT '',
		expected_date TEXT DEFAULT '',
		received_date TEXT DEFAULT '',
		notes TEXT DEFAULT '',
		created_at TEXT DEFAULT ''
	)`},
	{TableVendorOperations, `CREATE TABLE IF NOT EXISTS vendor_operations (
		id TEXT PRIMARY KEY,
		job_number TEXT NOT NULL,
		vendor TEXT DEFAULT '',
		operation TEXT DEFAULT '',
		po_number TEXT DEFAULT '',
		status TEXT DEFAULT 'pending',
		sent_date TEXT DEFAULT '',
		due_date TEXT DEFAULT '',
		received_date TEXT DEFAULT ''
	)`},
	{TableJobTimelines, `CREATE TABLE IF NOT EXISTS job_timelines (
		id TEXT PRIMARY KEY,
		job_number TEXT NOT NULL,
		event_type TEXT DEFAULT 'note',
		description TEXT DEFAULT '',
		created_by TEXT DEFAULT 'system',
		created_at TEXT DEFAULT ''
	)`},
	{TableJobNotes, `CREATE TABLE IF NOT EXISTS job_notes (
		id TEXT PRIMARY KEY,
		job_number TEXT NOT NULL,
		body TEXT NOT NULL,
		author TEXT DEFAULT '',
		created_at TEXT DEFAULT ''
	)`},
	{TableJobReminders, `CREATE TABLE IF NOT EXISTS job_reminders (
		id TEXT PRIMARY KEY,
		job_number TEXT NOT NULL,
		message TEXT NOT NULL,
		remind_at TEXT DEFAULT '',
		done INTEGER DEFAULT 0,
		created_at TEXT DEFAULT ''
	)`},
	{TableNCRs, `CREATE TABLE IF NOT EXISTS ncrs (
		id TEXT PRIMARY KEY,
		job_number TEXT DEFAULT '',
		work_order TEXT DEFAULT '',
		operation TEXT DEFAULT '',
		part_number TEXT DEFAULT '',
		issue TEXT NOT NULL,
		root_cause TEXT DEFAULT '',
		corrective_action TEXT DEFAULT '',
		financial_impact NUMERIC DEFAULT 0,
		status TEXT DEFAULT 'open' CHECK(status IN ('open','investigating','resolved','closed')),
		reported_by TEXT DEFAULT '',
		created_at TEXT DEFAULT '',
		resolved_at TEXT
	)`},
	{TableWorkCenters, `CREATE TABLE IF NOT EXISTS work_centers (
		name TEXT PRIMARY KEY,
		status TEXT DEFAULT 'idle',
		utilization REAL DEFAULT 0,
		updated_at TEXT DEFAULT ''
	)`},
	{TableAuditLog, `CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		username TEXT DEFAULT 'system',
		action TEXT NOT NULL,
		module TEXT NOT NULL,
		record_id TEXT NOT NULL,
		summary TEXT DEFAULT '',
		created_at TEXT DEFAULT ''
	)`},
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)",
	"CREATE INDEX IF NOT EXISTS idx_jobs_work_center ON jobs(work_center)",
	"CREATE INDEX IF NOT EXISTS idx_sap_operations_order ON sap_operations(order_number)",
	"CREATE INDEX IF NOT EXISTS idx_sap_operations_work_center ON sap_operations(work_center)",
	`CREATE INDEX IF NOT EXISTS idx_job_operations_order ON job_operations("Order")`,
	`CREATE INDEX IF NOT EXISTS idx_job_operations_work_center ON job_operations("Work Center")`,
	"CREATE INDEX IF NOT EXISTS idx_purchase_orders_job_id ON purchase_orders(job_id)",
	"CREATE INDEX IF NOT EXISTS idx_purchase_orders_status ON purchase_orders(status)",
	"CREATE INDEX IF NOT EXISTS idx_shipmentlogs_po_number ON shipmentlogs(po_number)",
	"CREATE INDEX IF NOT EXISTS idx_vendor_operations_job ON vendor_operations(job_number)",
	"CREATE INDEX IF NOT EXISTS idx_job_timelines_job ON job_timelines(job_number)",
	"CREATE INDEX IF NOT EXISTS idx_job_notes_job ON job_notes(job_number)",
	"CREATE INDEX IF NOT EXISTS idx_job_reminders_job ON job_reminders(job_number)",
	"CREATE INDEX IF NOT EXISTS idx_ncrs_status ON ncrs(status)",
	"CREATE INDEX IF NOT EXISTS idx_ncrs_job ON ncrs(job_number)",
	"CREATE INDEX IF NOT EXISTS idx_audit_log_record_id ON audit_log(record_id)",
}

// Migrate creates all tables and indexes. It is idempotent.
func Migrate(ctx context.Context, c *tables.Client) error {
	for _, t := range Schema {
		if err := c.Exec(ctx, t.DDL); err != nil {
			return fmt.Errorf("migration error: %w\nSQL: %s", err, t.DDL)
		}
	}
	for _, idx := range indexes {
		if err := c.Exec(ctx, idx); err != nil {
			return fmt.Errorf("index error: %w\nSQL: %s", err, idx)
		}
	}
	return nil
}

// MissingTables lists schema tables that do not exist yet.
func MissingTables(ctx context.Context, c *tables.Client) ([]string, error) {
	var missing []string
	for _, t := range Schema {
		ok, err := c.Exists(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, t.Name)
		}
	}
	return missing, nil
}

// NextID returns the next sequential id of the form PREFIX-YYYY-NNN. The
// sequence continues from the numerically largest suffix issued this year,
// so it keeps counting past 999 when NNN outgrows its padding. A missing
// table starts the sequence at 1.
func NextID(ctx context.Context, c *tables.Client, prefix, table string, digits int) (string, error) {
	year := time.Now().Format("2006")
	stem := prefix + "-" + year + "-"
	rows, err := c.Select(ctx, table, tables.Query{
		Columns: []string{"id"},
		Filters: []tables.Filter{tables.HasPrefix("id", stem)},
	})
	if err != nil && !errors.Is(err, tables.ErrTableMissing) {
		return "", fmt.Errorf("next %s id: %w", prefix, err)
	}

	last := 0
	for _, r := range rows {
		id := fmt.Sprint(r["id"])
		if len(id) <= len(stem) {
			continue
		}
		if n, err := strconv.Atoi(id[len(stem):]); err == nil && n > last {
			last = n
		}
	}
	return fmt.Sprintf("%s%0*d", stem, digits, last+1), nil
}

// Now is the timestamp format stored in every *_at column.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
