package logistics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsboard/internal/database"
	"opsboard/internal/handlers/logistics"
	"opsboard/internal/models"
	"opsboard/internal/tables"
	"opsboard/internal/testutil"
)

func newHandler(t *testing.T) (*logistics.Handler, *tables.Client) {
	t.Helper()
	c := testutil.SetupTestDB(t)
	return &logistics.Handler{Store: testutil.NewStore(t, c), Audit: testutil.NewAudit(c), Log: zap.NewNop()}, c
}

func TestShipmentLifecycle(t *testing.T) {
	h, _ := newHandler(t)

	w := httptest.NewRecorder()
	h.CreateShipment(w, testutil.JSONRequest(http.MethodPost, "/", map[string]string{"carrier": "UPS"}))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = httptest.NewRecorder()
	h.CreateShipment(w, testutil.JSONRequest(http.MethodPost, "/", models.ShipmentLog{PONumber: "4500012001", Carrier: "UPS", Status: "in_transit"}))
	testutil.AssertStatus(t, w, http.StatusCreated)
	var sh models.ShipmentLog
	testutil.DecodeEnvelope(t, w, &sh)
	require.NotEmpty(t, sh.ID)

	w = httptest.NewRecorder()
	h.UpdateShipmentStatus(w, testutil.JSONRequest(http.MethodPut, "/", map[string]string{"status": "teleported"}), sh.ID)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = httptest.NewRecorder()
	h.UpdateShipmentStatus(w, testutil.JSONRequest(http.MethodPut, "/", map[string]string{"status": "delivered"}), sh.ID)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = httptest.NewRecorder()
	h.UpdateShipmentStatus(w, testutil.JSONRequest(http.MethodPut, "/", map[string]string{"status": "delivered"}), "missing")
	testutil.AssertStatus(t, w, http.StatusNotFound)

	w = httptest.NewRecorder()
	h.ListShipments(w, httptest.NewRequest(http.MethodGet, "/?status=delivered", nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var list []models.ShipmentLog
	testutil.DecodeEnvelope(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, testutil.Clock.Format("2006-01-02T15:04:05Z"), list[0].ReceivedDate)
}

func TestVendorOperations(t *testing.T) {
	h, c := newHandler(t)
	testutil.Insert(t, c, database.TableJobs, tables.Row{"job_number": "J-1", "title": "Heat sink"})

	w := httptest.NewRecorder()
	h.UpsertVendorOperation(w, testutil.JSONRequest(http.MethodPost, "/", map[string]string{"vendor": "Precision Anodize"}), "J-1")
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	body := map[string]string{"vendor": "Precision Anodize", "operation": "Anodize", "due_date": "2024-03-22"}
	w = httptest.NewRecorder()
	h.UpsertVendorOperation(w, testutil.JSONRequest(http.MethodPost, "/", body), "J-404")
	testutil.AssertStatus(t, w, http.StatusNotFound)

	w = httptest.NewRecorder()
	h.UpsertVendorOperation(w, testutil.JSONRequest(http.MethodPost, "/", body), "J-1")
	testutil.AssertStatus(t, w, http.StatusOK)
	var v models.VendorOperation
	testutil.DecodeEnvelope(t, w, &v)
	assert.Equal(t, "pending", v.Status)
	assert.Equal(t, "J-1", v.JobNumber)

	w = httptest.NewRecorder()
	h.ListVendorOperations(w, httptest.NewRequest(http.MethodGet, "/", nil), "J-1")
	testutil.AssertStatus(t, w, http.StatusOK)
	var list []models.VendorOperation
	testutil.DecodeEnvelope(t, w, &list)
	assert.Len(t, list, 1)
}

func TestPurchaseOrders(t *testing.T) {
	h, _ := newHandler(t)

	w := httptest.NewRecorder()
	h.UpsertPurchaseOrder(w, testutil.JSONRequest(http.MethodPost, "/", map[string]string{"po_number": "P 1"}))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	for _, po := range []map[string]string{
		{"po_number": "4500012001", "vendor": "Metals Depot", "job_id": "J-1", "amount": "10.50"},
		{"po_number": "4500012002", "vendor": "Precision Anodize", "amount": "5"},
	} {
		w = httptest.NewRecorder()
		h.UpsertPurchaseOrder(w, testutil.JSONRequest(http.MethodPost, "/", po))
		require.Less(t, w.Code, 300, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ListPurchaseOrders(w, httptest.NewRequest(http.MethodGet, "/?unlinked=true", nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var pos []models.PurchaseOrder
	testutil.DecodeEnvelope(t, w, &pos)
	require.Len(t, pos, 1)
	assert.Equal(t, "4500012002", pos[0].PONumber)

	w = httptest.NewRecorder()
	h.ListPurchaseOrders(w, httptest.NewRequest(http.MethodGet, "/?vendor=metals", nil))
	testutil.DecodeEnvelope(t, w, &pos)
	require.Len(t, pos, 1)
	assert.Equal(t, "J-1", pos[0].JobID)

	w = httptest.NewRecorder()
	h.GetPurchaseOrder(w, httptest.NewRequest(http.MethodGet, "/", nil), "4500019999")
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestLinkDryRunWritesNothing(t *testing.T) {
	h, c := newHandler(t)
	testutil.Insert(t, c, database.TableJobs, tables.Row{"job_number": "J-2024-104", "title": "Heat sink"})
	testutil.Insert(t, c, database.TablePurchaseOrders, tables.Row{"po_number": "P1", "reference": "2024-104"})

	w := httptest.NewRecorder()
	h.LinkPurchaseOrders(w, httptest.NewRequest(http.MethodPost, "/?dry_run=true", nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var res models.LinkResult
	testutil.DecodeEnvelope(t, w, &res)
	assert.Equal(t, 1, res.Linked)

	n, err := c.Count(t.Context(), database.TablePurchaseOrders, tables.Eq("job_id", "J-2024-104"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
