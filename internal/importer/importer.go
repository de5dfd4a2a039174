// Package importer loads purchase orders from an SAP spreadsheet export and
// pushes them to the backend in fixed-size batches.
package importer

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"opsboard/internal/models"
)

// DefaultBatchSize keeps each upsert under the backend's request-size limit.
const DefaultBatchSize = 50

// DefaultDelay is the pause between batches.
const DefaultDelay = 500 * time.Millisecond

// excelEpochOffset is the serial number of 1970-01-01 in Excel's 1900 date
// system.
const excelEpochOffset = 25569

// Upserter writes one batch of purchase orders in a single backend call.
type Upserter interface {
	UpsertPurchaseOrders(ctx context.Context, batch []models.PurchaseOrder) error
}

// field names a PurchaseOrder attribute a spreadsheet column can map to.
type field int

const (
	fieldNone field = iota
	fieldPONumber
	fieldOrderDate
	fieldVendor
	fieldAmount
	fieldDescription
	fieldStatus
	fieldDeliveryDate
	fieldReference
	fieldNotes
)

var headerAliases = map[string]field{
	"purchasing document": fieldPONumber,
	"po number":           fieldPONumber,
	"po_number":           fieldPONumber,
	"po":                  fieldPONumber,
	"purchase order":      fieldPONumber,
	"document date":       fieldOrderDate,
	"order date":          fieldOrderDate,
	"vendor":              fieldVendor,
	"name of vendor":      fieldVendor,
	"supplier":            fieldVendor,
	"net order value":     fieldAmount,
	"net value":           fieldAmount,
	"amount":              fieldAmount,
	"total":               fieldAmount,
	"short text":          fieldDescription,
	"description":         fieldDescription,
	"status":              fieldStatus,
	"delivery date":       fieldDeliveryDate,
	"order":               fieldReference,
	"reference":           fieldReference,
	"job":                 fieldReference,
	"job number":          fieldReference,
	"notes":               fieldNotes,
	"comments":            fieldNotes,
}

// ExcelSerialToISO converts an Excel serial date to an ISO-8601 UTC
// timestamp with millisecond precision.
func ExcelSerialToISO(serial float64) string {
	ms := (serial - excelEpochOffset) * 86400 * 1000
	return time.UnixMilli(int64(math.Round(ms))).UTC().Format("2006-01-02T15:04:05.000Z")
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"01-02-06",
}

// NormalizeDate accepts an Excel serial, an ISO date or a few common
// spreadsheet layouts and returns ISO-8601. Unrecognized text is returned
// unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return ExcelSerialToISO(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format("2006-01-02T15:04:05.000Z")
		}
	}
	return s
}

// ParseAmount reads a currency cell such as "$1,250.00".
func ParseAmount(s string) decimal.Decimal {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ReadFile reads purchase orders from an .xlsx file on disk.
func ReadFile(path, sheet string) ([]models.PurchaseOrder, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadWorkbook(f, sheet)
}

// ReadWorkbook reads purchase orders from the named sheet, or the first sheet
// when sheet is empty. It returns the orders and the number of data rows
// skipped for lacking a PO number.
func ReadWorkbook(r io.Reader, sheet string) ([]models.PurchaseOrder, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, 0, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, 0, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	cols := make([]field, len(rows[0]))
	havePO := false
	for i, h := range rows[0] {
		cols[i] = headerAliases[strings.ToLower(strings.TrimSpace(h))]
		if cols[i] == fieldPONumber {
			havePO = true
		}
	}
	if !havePO {
		return nil, 0, fmt.Errorf("sheet %q has no purchase order column", sheet)
	}

	var out []models.PurchaseOrder
	skipped := 0
	for _, row := range rows[1:] {
		po := models.PurchaseOrder{Status: "open"}
		for i, cell := range row {
			if i >= len(cols) {
				break
			}
			cell = strings.TrimSpace(cell)
			switch cols[i] {
			case fieldPONumber:
				po.PONumber = cell
			case fieldOrderDate:
				po.OrderDate = NormalizeDate(cell)
			case fieldVendor:
				if po.Vendor == "" {
					po.Vendor = cell
				}
			case fieldAmount:
				po.Amount = ParseAmount(cell)
			case fieldDescription:
				po.Description = cell
			case fieldStatus:
				if cell != "" {
					po.Status = strings.ToLower(cell)
				}
			case fieldDeliveryDate:
				po.DeliveryDate = NormalizeDate(cell)
			case fieldReference:
				po.Reference = cell
			case fieldNotes:
				po.Notes = cell
			}
		}
		if po.PONumber == "" {
			skipped++
			continue
		}
		out = append(out, po)
	}
	return out, skipped, nil
}

// Dedupe keeps one purchase order per po_number. The last occurrence's
// values win; the surviving order sits where the number first appeared.
func Dedupe(pos []models.PurchaseOrder) []models.PurchaseOrder {
	index := make(map[string]int, len(pos))
	out := make([]models.PurchaseOrder, 0, len(pos))
	for _, po := range pos {
		if i, ok := index[po.PONumber]; ok {
			out[i] = po
			continue
		}
		index[po.PONumber] = len(out)
		out = append(out, po)
	}
	return out
}

// Importer batches purchase orders into an Upserter.
type Importer struct {
	Dest      Upserter
	BatchSize int
	Delay     time.Duration
	Log       *zap.Logger
}

// BatchUpsert de-duplicates pos, then writes them in batches of BatchSize
// with Delay between batches. A failed batch is logged and counted and the
// import carries on with the next one; nothing is rolled back.
func (im *Importer) BatchUpsert(ctx context.Context, pos []models.PurchaseOrder) models.ImportResult {
	size := im.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	log := im.Log
	if log == nil {
		log = zap.NewNop()
	}

	unique := Dedupe(pos)
	res := models.ImportResult{Rows: len(pos), Unique: len(unique)}
	for start := 0; start < len(unique); start += size {
		if start > 0 && im.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(im.Delay):
			}
		}
		end := min(start+size, len(unique))
		if err := ctx.Err(); err != nil {
			res.Failed += len(unique) - start
			res.Errors = append(res.Errors, err.Error())
			break
		}
		batch := unique[start:end]
		res.Batches++
		if err := im.Dest.UpsertPurchaseOrders(ctx, batch); err != nil {
			res.FailedBatches++
			res.Failed += len(batch)
			res.Errors = append(res.Errors, fmt.Sprintf("batch %d: %v", res.Batches, err))
			log.Error("purchase order batch failed",
				zap.Int("batch", res.Batches), zap.Int("size", len(batch)), zap.Error(err))
			continue
		}
		res.Upserted += len(batch)
		log.Info("purchase order batch upserted",
			zap.Int("batch", res.Batches), zap.Int("size", len(batch)))
	}
	return res
}
