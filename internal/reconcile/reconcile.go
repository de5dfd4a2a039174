// Package reconcile turns rows from the two operation tables into one
// canonical Operation. sap_operations uses snake_case columns while
// job_operations carries the SAP export headers verbatim; both are read
// through the same alias lists so a row from either table, or a hand-edited
// hybrid, lands in the same shape.
package reconcile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"opsboard/internal/models"
	"opsboard/internal/tables"
)

const (
	SourceSAP = "sap_operations"
	SourceJob = "job_operations"
)

// Operation statuses derived from hours when the row carries none.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

var (
	orderCols       = []string{"Order", "order_number", "order", "job_number"}
	salesDocCols    = []string{"Sales Document", "sales_document", "Sales document", "sales_doc"}
	operationCols   = []string{"Oper./Act.", "operation_number", "Operation", "operation"}
	workCenterCols  = []string{"Work Center", "work_center", "Work center", "Main work center"}
	descriptionCols = []string{"Operation short text", "description", "Description", "Short text"}
	plannedCols     = []string{"Work", "planned_work", "Planned work", "planned_hours"}
	actualCols      = []string{"Actual work", "actual_work", "Actual Work", "actual_hours"}
	statusCols      = []string{"System Status", "status", "Status"}
	startCols       = []string{"Earl.start date", "start_date", "Start date"}
	finishCols      = []string{"Earliest end date", "finish_date", "Finish date"}
)

// Canonicalize builds the canonical operation from a row of either table.
// Order and SalesDocument fall back to each other, so both are set whenever
// the row carries either.
func Canonicalize(r tables.Row, source string) models.Operation {
	order := Text(r, orderCols...)
	salesDoc := Text(r, salesDocCols...)
	if order == "" {
		order = salesDoc
	}
	if salesDoc == "" {
		salesDoc = order
	}

	planned := Number(r, plannedCols...)
	actual := Number(r, actualCols...)
	op := models.Operation{
		Order:         order,
		SalesDocument: salesDoc,
		OperationNo:   Text(r, operationCols...),
		WorkCenter:    Text(r, workCenterCols...),
		Description:   Text(r, descriptionCols...),
		PlannedWork:   planned,
		ActualWork:    actual,
		RemainingWork: Remaining(planned, actual),
		Status:        Text(r, statusCols...),
		StartDate:     Text(r, startCols...),
		FinishDate:    Text(r, finishCols...),
		Source:        source,
	}
	if op.Status == "" {
		op.Status = DeriveStatus(planned, actual)
	}
	return op
}

// Remaining is planned minus actual, never negative.
func Remaining(planned, actual float64) float64 {
	return math.Max(0, planned-actual)
}

// DeriveStatus classifies an operation by its hours.
func DeriveStatus(planned, actual float64) string {
	switch {
	case actual <= 0:
		return StatusNotStarted
	case planned > 0 && actual >= planned:
		return StatusCompleted
	default:
		return StatusInProgress
	}
}

// Key identifies an operation within an order.
func Key(order, operation string) string {
	return strings.TrimSpace(order) + "/" + strings.TrimSpace(operation)
}

// Merge combines operations read from both tables. When both tables carry
// the same order/operation pair the job_operations row wins. The result is
// sorted by order, then operation number.
func Merge(jobOps, sapOps []models.Operation) []models.Operation {
	seen := make(map[string]struct{}, len(jobOps)+len(sapOps))
	var out []models.Operation
	for _, list := range [][]models.Operation{jobOps, sapOps} {
		for _, op := range list {
			k := Key(op.Order, op.OperationNo)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, op)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return lessOperation(out[i].OperationNo, out[j].OperationNo)
	})
	return out
}

// Operation numbers are usually zero-padded integers ("0010") but not always.
func lessOperation(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

// ToSAPRow maps an operation onto sap_operations columns.
func ToSAPRow(op models.Operation, updatedAt string) tables.Row {
	return tables.Row{
		"op_key":           Key(op.Order, op.OperationNo),
		"order_number":     op.Order,
		"sales_document":   op.SalesDocument,
		"operation_number": op.OperationNo,
		"work_center":      op.WorkCenter,
		"description":      op.Description,
		"planned_work":     op.PlannedWork,
		"actual_work":      op.ActualWork,
		"status":           op.Status,
		"start_date":       op.StartDate,
		"finish_date":      op.FinishDate,
		"updated_at":       updatedAt,
	}
}

// ToJobOperationRow maps an operation onto the SAP export headers used by
// job_operations.
func ToJobOperationRow(op models.Operation) tables.Row {
	return tables.Row{
		"op_key":               Key(op.Order, op.OperationNo),
		"Order":                op.Order,
		"Sales Document":       op.SalesDocument,
		"Oper./Act.":           op.OperationNo,
		"Work Center":          op.WorkCenter,
		"Operation short text": op.Description,
		"Work":                 op.PlannedWork,
		"Actual work":          op.ActualWork,
		"System Status":        op.Status,
		"Earl.start date":      op.StartDate,
		"Earliest end date":    op.FinishDate,
	}
}

// Text returns the first non-blank value among cols.
func Text(r tables.Row, cols ...string) string {
	for _, c := range cols {
		v, ok := r[c]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case []byte:
			s = string(t)
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Number returns the first parseable numeric value among cols, or 0.
// Numeric strings may carry thousands separators.
func Number(r tables.Row, cols ...string) float64 {
	for _, c := range cols {
		v, ok := r[c]
		if !ok || v == nil {
			continue
		}
		if f, ok := ParseNumber(v); ok {
			return f
		}
	}
	return 0
}

// ParseNumber converts driver values and numeric strings to float64.
func ParseNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case []byte:
		return ParseNumber(string(t))
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case fmt.Stringer:
		return ParseNumber(t.String())
	}
	return 0, false
}
