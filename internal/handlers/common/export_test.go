package common_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"opsboard/internal/audit"
	"opsboard/internal/database"
	"opsboard/internal/handlers/common"
	"opsboard/internal/tables"
	"opsboard/internal/testutil"
)

func newHandler(t *testing.T, c *tables.Client) *common.Handler {
	t.Helper()
	return &common.Handler{Store: testutil.NewStore(t, c), Audit: testutil.NewAudit(c), Log: zap.NewNop()}
}

func TestExportExcel(t *testing.T) {
	w := httptest.NewRecorder()
	common.ExportExcel(w, "Jobs", []string{"Job Number", "Title"}, [][]string{{"J-1", "Frame"}, {"J-2", "Shaft"}})
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Jobs"}, f.GetSheetList())
	rows, err := f.GetRows("Jobs")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Job Number", "Title"}, {"J-1", "Frame"}, {"J-2", "Shaft"}}, rows)
}

func TestExportPurchaseOrdersXLSXIsAudited(t *testing.T) {
	c := testutil.SetupTestDB(t)
	h := newHandler(t, c)
	testutil.Insert(t, c, database.TablePurchaseOrders,
		tables.Row{"po_number": "4500012001", "vendor": "Metals Depot", "amount": "1842.5", "order_date": "2024-03-01"},
	)

	w := httptest.NewRecorder()
	h.Export(w, httptest.NewRequest(http.MethodGet, "/?format=xlsx", nil), "purchase-orders")
	testutil.AssertStatus(t, w, http.StatusOK)

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("PurchaseOrders")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1842.50", rows[1][5])

	w = httptest.NewRecorder()
	h.ListAudit(w, httptest.NewRequest(http.MethodGet, "/?module=purchase-orders", nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var entries []audit.Entry
	testutil.DecodeEnvelope(t, w, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionExport, entries[0].Action)
}

func TestListAuditLimits(t *testing.T) {
	c := testutil.SetupTestDB(t)
	h := newHandler(t, c)

	for _, bad := range []string{"0", "1001", "ten"} {
		w := httptest.NewRecorder()
		h.ListAudit(w, httptest.NewRequest(http.MethodGet, "/?limit="+bad, nil))
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	}
}

func TestListAuditWithoutTable(t *testing.T) {
	c := testutil.SetupEmptyDB(t)
	h := newHandler(t, c)

	w := httptest.NewRecorder()
	h.ListAudit(w, httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var entries []audit.Entry
	testutil.DecodeEnvelope(t, w, &entries)
	assert.Empty(t, entries)
}
