package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"opsboard/internal/models"
)

// ValidationError represents a structured validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects multiple field errors.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, e := range ve.Errors {
		msgs[i] = e.Field + ": " + e.Message
	}
	return strings.Join(msgs, "; ")
}

// RequireField checks a required string field is non-empty.
func RequireField(ve *ValidationErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		ve.Add(field, "is required")
	}
}

// ValidateEnum checks a non-empty field is one of allowed.
func ValidateEnum(ve *ValidationErrors, field, value string, allowed []string) {
	if value != "" && !slices.Contains(allowed, value) {
		ve.Add(field, "must be one of: "+strings.Join(allowed, ", "))
	}
}

// ValidateDate checks a field starts with a valid YYYY-MM-DD date. Full
// ISO-8601 timestamps are accepted.
func ValidateDate(ve *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	if len(value) < len(time.DateOnly) {
		ve.Add(field, "must be a valid date (YYYY-MM-DD)")
		return
	}
	if _, err := time.Parse(time.DateOnly, value[:len(time.DateOnly)]); err != nil {
		ve.Add(field, "must be a valid date (YYYY-MM-DD)")
	}
}

// ValidateNonNegativeFloat checks a field is >= 0.
func ValidateNonNegativeFloat(ve *ValidationErrors, field string, value float64) {
	if value < 0 {
		ve.Add(field, "must be non-negative")
	}
}

// ValidateNonNegativeDecimal checks a money field is >= 0.
func ValidateNonNegativeDecimal(ve *ValidationErrors, field string, value decimal.Decimal) {
	if value.IsNegative() {
		ve.Add(field, "must be non-negative")
	}
}

// ValidateIntRange checks a field is within a specified range.
func ValidateIntRange(ve *ValidationErrors, field string, value, min, max int) {
	if value < min || value > max {
		ve.Add(field, fmt.Sprintf("must be between %d and %d", min, max))
	}
}

// MaxTextLength bounds free-text fields.
const MaxTextLength = 10000

// ValidateMaxLength checks string doesn't exceed max length.
func ValidateMaxLength(ve *ValidationErrors, field, value string, max int) {
	if len(value) > max {
		ve.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// KeyPattern matches job, order and PO numbers.
var KeyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-_./]*$`)

// ValidateKey validates an identifier used as a primary key.
func ValidateKey(ve *ValidationErrors, field, value string) {
	if value == "" {
		ve.Add(field, "is required")
		return
	}
	if !KeyPattern.MatchString(value) {
		ve.Add(field, "must contain only letters, numbers, hyphens, underscores, dots and slashes")
	}
}

// Job checks a job before it is written.
func Job(j models.Job) *ValidationErrors {
	ve := &ValidationErrors{}
	ValidateKey(ve, "job_number", j.JobNumber)
	ValidateMaxLength(ve, "title", j.Title, 500)
	ValidateMaxLength(ve, "description", j.Description, MaxTextLength)
	ValidateEnum(ve, "status", j.Status, ValidJobStatuses)
	ValidateEnum(ve, "priority", j.Priority, ValidJobPriorities)
	ValidateIntRange(ve, "progress", j.Progress, 0, 100)
	ValidateDate(ve, "due_date", j.DueDate)
	ValidateDate(ve, "scheduled_date", j.StartDate)
	return ve
}

// PurchaseOrder checks a purchase order before it is written.
func PurchaseOrder(po models.PurchaseOrder) *ValidationErrors {
	ve := &ValidationErrors{}
	ValidateKey(ve, "po_number", po.PONumber)
	ValidateNonNegativeDecimal(ve, "amount", po.Amount)
	ValidateDate(ve, "order_date", po.OrderDate)
	ValidateDate(ve, "delivery_date", po.DeliveryDate)
	ValidateMaxLength(ve, "notes", po.Notes, MaxTextLength)
	return ve
}

// Shipment checks a shipment log entry.
func Shipment(s models.ShipmentLog) *ValidationErrors {
	ve := &ValidationErrors{}
	RequireField(ve, "po_number", s.PONumber)
	ValidateEnum(ve, "status", s.Status, ValidShipmentStatuses)
	ValidateDate(ve, "ship_date", s.ShipDate)
	ValidateDate(ve, "expected_date", s.ExpectedDate)
	return ve
}

// NCR checks a new non-conformance report.
func NCR(n models.NCR) *ValidationErrors {
	ve := &ValidationErrors{}
	RequireField(ve, "issue", n.Issue)
	ValidateMaxLength(ve, "issue", n.Issue, MaxTextLength)
	ValidateEnum(ve, "status", n.Status, ValidNCRStatuses)
	ValidateNonNegativeDecimal(ve, "financial_impact", n.FinancialImpact)
	return ve
}

// MaxUploadSize bounds an uploaded spreadsheet.
const MaxUploadSize = 32 << 20

// ValidateSpreadsheet checks an uploaded workbook's name and size.
func ValidateSpreadsheet(ve *ValidationErrors, filename string, size int64) {
	if size == 0 {
		ve.Add("file", "cannot be empty (0 bytes)")
		return
	}
	if size > MaxUploadSize {
		ve.Add("file", fmt.Sprintf("exceeds maximum size of %d MB", MaxUploadSize>>20))
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\\x00") {
		ve.Add("filename", "contains invalid path characters")
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".xlsx" && ext != ".xlsm" {
		ve.Add("filename", "must be an .xlsx workbook")
	}
}
