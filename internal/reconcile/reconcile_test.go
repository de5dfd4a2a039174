package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"opsboard/internal/models"
	"opsboard/internal/tables"
)

func TestCanonicalizeJobOperationRow(t *testing.T) {
	row := tables.Row{
		"Order":                "J-2024-101",
		"Oper./Act.":           "0010",
		"Work Center":          "CNC-1",
		"Operation short text": "Rough mill",
		"Work":                 "12.5",
		"Actual work":          4.0,
	}
	got := Canonicalize(row, SourceJob)
	want := models.Operation{
		Order:         "J-2024-101",
		SalesDocument: "J-2024-101",
		OperationNo:   "0010",
		WorkCenter:    "CNC-1",
		Description:   "Rough mill",
		PlannedWork:   12.5,
		ActualWork:    4,
		RemainingWork: 8.5,
		Status:        StatusInProgress,
		Source:        SourceJob,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Canonicalize mismatch (-want +got):\n%s", diff)
	}
}

func TestCanonicalizeFillsOrderFromSalesDocument(t *testing.T) {
	got := Canonicalize(tables.Row{"sales_document": "SD-77", "operation_number": "0020"}, SourceSAP)
	if got.Order != "SD-77" || got.SalesDocument != "SD-77" {
		t.Errorf("expected both identifiers to be SD-77, got Order=%q SalesDocument=%q", got.Order, got.SalesDocument)
	}
}

func TestCanonicalizeKeepsDistinctIdentifiers(t *testing.T) {
	got := Canonicalize(tables.Row{"order_number": "1000123", "sales_document": "J-2024-102"}, SourceSAP)
	if got.Order != "1000123" || got.SalesDocument != "J-2024-102" {
		t.Errorf("unexpected identifiers: %+v", got)
	}
}

func TestCanonicalizeLenientNumbers(t *testing.T) {
	tests := []struct {
		name      string
		planned   any
		actual    any
		remaining float64
		status    string
	}{
		{"thousands separator", "1,204.0", "204", 1000, StatusInProgress},
		{"unparseable", "abc", nil, 0, StatusNotStarted},
		{"overrun clamps to zero", 5.0, int64(9), 0, StatusCompleted},
		{"bytes", []byte("3.5"), []byte("0"), 3.5, StatusNotStarted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := Canonicalize(tables.Row{"Order": "X", "planned_work": tt.planned, "actual_work": tt.actual}, SourceSAP)
			if op.RemainingWork != tt.remaining {
				t.Errorf("RemainingWork = %v, want %v", op.RemainingWork, tt.remaining)
			}
			if op.Status != tt.status {
				t.Errorf("Status = %q, want %q", op.Status, tt.status)
			}
		})
	}
}

func TestCanonicalizePrefersStoredStatus(t *testing.T) {
	op := Canonicalize(tables.Row{"Order": "X", "Work": 10, "Actual work": 0, "System Status": "REL"}, SourceJob)
	if op.Status != "REL" {
		t.Errorf("Status = %q, want REL", op.Status)
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	for _, c := range [][2]float64{{10, 3}, {3, 10}, {0, 0}, {0, 5}} {
		if got := Remaining(c[0], c[1]); got < 0 {
			t.Errorf("Remaining(%v, %v) = %v", c[0], c[1], got)
		}
	}
	if got := Remaining(10, 3); got != 7 {
		t.Errorf("Remaining(10, 3) = %v, want 7", got)
	}
}

func TestMergeJobOperationsWin(t *testing.T) {
	sap := []models.Operation{
		{Order: "J-1", OperationNo: "0100", Source: SourceSAP},
		{Order: "J-1", OperationNo: "0020", ActualWork: 1, Source: SourceSAP},
		{Order: "J-1", OperationNo: "0010", Source: SourceSAP},
	}
	job := []models.Operation{
		{Order: "J-1", OperationNo: "0020", ActualWork: 7, Source: SourceJob},
	}
	got := Merge(job, sap)
	if len(got) != 3 {
		t.Fatalf("expected 3 operations, got %d", len(got))
	}
	var order []string
	for _, op := range got {
		order = append(order, op.OperationNo)
	}
	if diff := cmp.Diff([]string{"0010", "0020", "0100"}, order); diff != "" {
		t.Errorf("operation order (-want +got):\n%s", diff)
	}
	if got[1].Source != SourceJob || got[1].ActualWork != 7 {
		t.Errorf("expected job_operations row to win, got %+v", got[1])
	}
}

func TestJobOperationRowRoundTrip(t *testing.T) {
	op := models.Operation{
		Order: "J-9", SalesDocument: "J-9", OperationNo: "0030", WorkCenter: "WELD",
		Description: "Tack weld", PlannedWork: 6, ActualWork: 2, RemainingWork: 4,
		Status: StatusInProgress, StartDate: "2024-03-01", FinishDate: "2024-03-04", Source: SourceJob,
	}
	row := ToJobOperationRow(op)
	if row["op_key"] != "J-9/0030" {
		t.Errorf("op_key = %v", row["op_key"])
	}
	if diff := cmp.Diff(op, Canonicalize(row, SourceJob)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
