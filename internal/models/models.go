package models

import "github.com/shopspring/decimal"

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Job is a manufacturing work order. The embedded slices are joined in at
// read time from their own tables.
type Job struct {
	JobNumber   string `json:"job_number"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Progress    int    `json:"progress"`
	WorkCenter  string `json:"work_center"`
	Customer    string `json:"customer"`
	DueDate     string `json:"due_date"`
	StartDate   string `json:"scheduled_date"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`

	SAPData          []Operation       `json:"sap_data,omitempty"`
	VendorOperations []VendorOperation `json:"vendor_operations,omitempty"`
	Notes            []JobNote         `json:"notes,omitempty"`
	Reminders        []Reminder        `json:"reminders,omitempty"`
	Timeline         []TimelineEvent   `json:"timeline,omitempty"`
	NCRs             []NCR             `json:"ncr,omitempty"`
	PurchaseOrders   []PurchaseOrder   `json:"purchase_orders,omitempty"`
}

// Operation is the canonical shape of a routing step, whichever operation
// table it was read from.
type Operation struct {
	Order         string  `json:"Order"`
	SalesDocument string  `json:"Sales Document"`
	OperationNo   string  `json:"operation"`
	WorkCenter    string  `json:"work_center"`
	Description   string  `json:"description"`
	PlannedWork   float64 `json:"planned_work"`
	ActualWork    float64 `json:"actual_work"`
	RemainingWork float64 `json:"remaining_work"`
	Status        string  `json:"status"`
	StartDate     string  `json:"start_date,omitempty"`
	FinishDate    string  `json:"finish_date,omitempty"`
	Source        string  `json:"source"`
}

// VendorOperation is an outside-processing step performed by a vendor.
type VendorOperation struct {
	ID           string `json:"id"`
	JobNumber    string `json:"job_number"`
	Vendor       string `json:"vendor"`
	Operation    string `json:"operation"`
	PONumber     string `json:"po_number"`
	Status       string `json:"status"`
	SentDate     string `json:"sent_date"`
	DueDate      string `json:"due_date"`
	ReceivedDate string `json:"received_date"`
}

// TimelineEvent is one entry in a job's history.
type TimelineEvent struct {
	ID          string `json:"id"`
	JobNumber   string `json:"job_number"`
	EventType   string `json:"event_type"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at"`
}

type JobNote struct {
	ID        string `json:"id"`
	JobNumber string `json:"job_number"`
	Body      string `json:"body"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

type Reminder struct {
	ID        string `json:"id"`
	JobNumber string `json:"job_number"`
	Message   string `json:"message"`
	RemindAt  string `json:"remind_at"`
	Done      bool   `json:"done"`
	CreatedAt string `json:"created_at"`
}

// PurchaseOrder links to a job only through JobID, which the linker fills in
// after the fact.
type PurchaseOrder struct {
	PONumber     string          `json:"po_number"`
	JobID        string          `json:"job_id"`
	Vendor       string          `json:"vendor"`
	Description  string          `json:"description"`
	Reference    string          `json:"reference"`
	Notes        string          `json:"notes"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	OrderDate    string          `json:"order_date"`
	DeliveryDate string          `json:"delivery_date"`
	UpdatedAt    string          `json:"updated_at"`
}

type ShipmentLog struct {
	ID             string `json:"id"`
	PONumber       string `json:"po_number"`
	Vendor         string `json:"vendor"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
	ShipDate       string `json:"ship_date"`
	ExpectedDate   string `json:"expected_date"`
	ReceivedDate   string `json:"received_date"`
	Notes          string `json:"notes"`
	CreatedAt      string `json:"created_at"`
}

type NCR struct {
	ID               string          `json:"id"`
	JobNumber        string          `json:"job_number"`
	WorkOrder        string          `json:"work_order"`
	OperationNo      string          `json:"operation"`
	PartNumber       string          `json:"part_number"`
	Issue            string          `json:"issue"`
	RootCause        string          `json:"root_cause"`
	CorrectiveAction string          `json:"corrective_action"`
	FinancialImpact  decimal.Decimal `json:"financial_impact"`
	Status           string          `json:"status"`
	ReportedBy       string          `json:"reported_by"`
	CreatedAt        string          `json:"created_at"`
	ResolvedAt       *string         `json:"resolved_at"`
}

// NCRSummary is the NCR tracker header.
type NCRSummary struct {
	Total           int             `json:"total"`
	ByStatus        map[string]int  `json:"by_status"`
	FinancialImpact decimal.Decimal `json:"financial_impact"`
	OpenImpact      decimal.Decimal `json:"open_financial_impact"`
}

// WorkCenter is the persisted snapshot row; metrics are always recomputed
// from operations.
type WorkCenter struct {
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Utilization float64 `json:"utilization"`
	UpdatedAt   string  `json:"updated_at"`
}

type WorkCenterMetrics struct {
	Name            string  `json:"name"`
	Operations      int     `json:"operations"`
	PlannedHours    float64 `json:"planned_hours"`
	ActualHours     float64 `json:"actual_hours"`
	RemainingHours  float64 `json:"remaining_hours"`
	Efficiency      float64 `json:"efficiency"`
	Utilization     float64 `json:"utilization"`
	InProgressCount int     `json:"in_progress_count"`
	InProgressHours float64 `json:"in_progress_hours"`
	BacklogCount    int     `json:"backlog_count"`
	BacklogHours    float64 `json:"backlog_hours"`
	Status          string  `json:"status"`
}

type JobSummary struct {
	JobNumber      string          `json:"job_number"`
	Operations     int             `json:"operations"`
	CompletedOps   int             `json:"completed_operations"`
	PlannedHours   float64         `json:"planned_hours"`
	ActualHours    float64         `json:"actual_hours"`
	RemainingHours float64         `json:"remaining_hours"`
	Progress       int             `json:"progress"`
	WorkCenters    []string        `json:"work_centers"`
	PurchaseTotal  decimal.Decimal `json:"purchase_total"`
	OpenNCRs       int             `json:"open_ncrs"`
}

type DashboardData struct {
	TotalJobs          int                 `json:"total_jobs"`
	JobsByStatus       map[string]int      `json:"jobs_by_status"`
	OverdueJobs        int                 `json:"overdue_jobs"`
	OpenNCRs           int                 `json:"open_ncrs"`
	OpenPOs            int                 `json:"open_pos"`
	OpenPOValue        decimal.Decimal     `json:"open_po_value"`
	InTransitShipments int                 `json:"in_transit_shipments"`
	TopWorkCenters     []WorkCenterMetrics `json:"top_work_centers"`
}

// ImportResult reports a best-effort batch upsert.
type ImportResult struct {
	Rows          int      `json:"rows"`
	Unique        int      `json:"unique"`
	Batches       int      `json:"batches"`
	FailedBatches int      `json:"failed_batches"`
	Upserted      int      `json:"upserted"`
	Failed        int      `json:"failed"`
	Skipped       int      `json:"skipped"`
	Errors        []string `json:"errors,omitempty"`
}

type LinkResult struct {
	Scanned   int               `json:"scanned"`
	Linked    int               `json:"linked"`
	Unmatched int               `json:"unmatched"`
	Links     map[string]string `json:"links,omitempty"`
}
