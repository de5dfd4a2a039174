package common

import (
	"cmp"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"opsboard/internal/audit"
	"opsboard/internal/response"
	"opsboard/internal/store"
	"opsboard/internal/validation"
)

// table is an export rendered as a header row plus string cells.
type table struct {
	sheet   string
	headers []string
	rows    [][]string
}

type exporter func(ctx context.Context, s *store.Store, r *http.Request) (table, error)

var exporters = map[string]exporter{
	"jobs":            exportJobs,
	"purchase-orders": exportPurchaseOrders,
	"ncrs":            exportNCRs,
	"work-centers":    exportWorkCenters,
}

// Export handles GET /api/v1/export/:entity?format=csv|xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request, entity string) {
	format := cmp.Or(r.URL.Query().Get("format"), "csv")
	ve := &validation.ValidationErrors{}
	validation.ValidateEnum(ve, "format", format, validation.ValidExportFormats)
	if ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	fn, ok := exporters[entity]
	if !ok {
		response.Err(w, "unknown export "+entity, http.StatusNotFound)
		return
	}

	t, err := fn(r.Context(), h.Store, r)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Username(r), audit.ActionExport, entity, format,
		fmt.Sprintf("Exported %d %s rows as %s", len(t.rows), entity, format))

	write := ExportCSV
	name := entity + ".csv"
	if format == "xlsx" {
		write, name = ExportExcel, t.sheet
	}
	if err := write(w, name, t.headers, t.rows); err != nil {
		h.Log.Warn("export write failed", zap.String("entity", entity), zap.String("format", format), zap.Error(err))
	}
}

func exportJobs(ctx context.Context, s *store.Store, r *http.Request) (table, error) {
	q := r.URL.Query()
	jobs, err := s.ListJobs(ctx, store.JobFilter{Status: q.Get("status"), WorkCenter: q.Get("work_center")})
	if err != nil {
		return table{}, err
	}
	t := table{
		sheet:   "Jobs",
		headers: []string{"Job Number", "Title", "Customer", "Status", "Priority", "Progress", "Work Center", "Scheduled Date", "Due Date"},
	}
	for _, j := range jobs {
		t.rows = append(t.rows, []string{j.JobNumber, j.Title, j.Customer, j.Status, j.Priority,
			strconv.Itoa(j.Progress), j.WorkCenter, j.StartDate, j.DueDate})
	}
	return t, nil
}

func exportPurchaseOrders(ctx context.Context, s *store.Store, r *http.Request) (table, error) {
	q := r.URL.Query()
	pos, err := s.ListPurchaseOrders(ctx, store.POFilter{JobID: q.Get("job_id"), Vendor: q.Get("vendor"), Status: q.Get("status")})
	if err != nil {
		return table{}, err
	}
	t := table{
		sheet:   "PurchaseOrders",
		headers: []string{"PO Number", "Job", "Vendor", "Description", "Reference", "Amount", "Status", "Order Date", "Delivery Date"},
	}
	for _, po := range pos {
		t.rows = append(t.rows, []string{po.PONumber, po.JobID, po.Vendor, po.Description, po.Reference,
			po.Amount.StringFixed(2), po.Status, po.OrderDate, po.DeliveryDate})
	}
	return t, nil
}

func exportNCRs(ctx context.Context, s *store.Store, r *http.Request) (table, error) {
	ncrs, err := s.ListNCRs(ctx, store.NCRFilter{Status: r.URL.Query().Get("status")})
	if err != nil {
		return table{}, err
	}
	t := table{
		sheet:   "NCRs",
		headers: []string{"ID", "Job Number", "Part Number", "Issue", "Root Cause", "Corrective Action", "Financial Impact", "Status", "Created At", "Resolved At"},
	}
	for _, n := range ncrs {
		resolved := ""
		if n.ResolvedAt != nil {
			resolved = *n.ResolvedAt
		}
		t.rows = append(t.rows, []string{n.ID, n.JobNumber, n.PartNumber, n.Issue, n.RootCause, n.CorrectiveAction,
			n.FinancialImpact.StringFixed(2), n.Status, n.CreatedAt, resolved})
	}
	return t, nil
}

func exportWorkCenters(ctx context.Context, s *store.Store, _ *http.Request) (table, error) {
	all, err := s.AllWorkCenterMetrics(ctx)
	if err != nil {
		return table{}, err
	}
	t := table{
		sheet:   "WorkCenters",
		headers: []string{"Work Center", "Operations", "Planned Hours", "Actual Hours", "Remaining Hours", "Efficiency %", "Utilization %", "Status"},
	}
	for _, m := range all {
		t.rows = append(t.rows, []string{m.Name, strconv.Itoa(m.Operations),
			fmt.Sprintf("%.2f", m.PlannedHours), fmt.Sprintf("%.2f", m.ActualHours), fmt.Sprintf("%.2f", m.RemainingHours),
			fmt.Sprintf("%.1f", m.Efficiency), fmt.Sprintf("%.1f", m.Utilization), m.Status})
	}
	return t, nil
}

// ExportCSV streams headers and rows as a CSV attachment.
func ExportCSV(w http.ResponseWriter, filename string, headers []string, rows [][]string) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	return csv.NewWriter(w).WriteAll(append([][]string{headers}, rows...))
}

// Workbook lays rows out on one sheet named sheet, headers bold on a grey
// fill in row 1.
func Workbook(sheet string, headers []string, rows [][]string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	for i, row := range append([][]string{headers}, rows...) {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	if len(headers) > 0 {
		last, _ := excelize.ColumnNumberToName(len(headers))
		_ = f.SetRowStyle(sheet, 1, 1, bold)
		_ = f.SetColWidth(sheet, "A", last, 18)
	}
	return f, nil
}

// ExportExcel streams Workbook(sheet, headers, rows) as an .xlsx attachment.
func ExportExcel(w http.ResponseWriter, sheet string, headers []string, rows [][]string) error {
	f, err := Workbook(sheet, headers, rows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return err
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+sheet+".xlsx")
	_, err = f.WriteTo(w)
	return err
}
