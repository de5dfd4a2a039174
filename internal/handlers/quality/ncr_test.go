package quality_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsboard/internal/handlers/quality"
	"opsboard/internal/models"
	"opsboard/internal/testutil"
)

func newHandler(t *testing.T) *quality.Handler {
	t.Helper()
	c := testutil.SetupTestDB(t)
	return &quality.Handler{Store: testutil.NewStore(t, c), Audit: testutil.NewAudit(c), Log: zap.NewNop()}
}

func createNCR(t *testing.T, h *quality.Handler, body map[string]interface{}) models.NCR {
	t.Helper()
	req := testutil.JSONRequest(http.MethodPost, "/", body)
	req.Header.Set("X-Opsboard-User", "qc-lead")
	w := httptest.NewRecorder()
	h.CreateNCR(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var n models.NCR
	testutil.DecodeEnvelope(t, w, &n)
	return n
}

func TestCreateNCR(t *testing.T) {
	h := newHandler(t)

	n := createNCR(t, h, map[string]interface{}{"job_number": "J-1", "issue": "Chatter marks", "financial_impact": "120.00"})
	assert.Equal(t, "qc-lead", n.ReportedBy)
	assert.Equal(t, "open", n.Status)
	assert.Regexp(t, `^NCR-\d{4}-001$`, n.ID)

	w := httptest.NewRecorder()
	h.CreateNCR(w, testutil.JSONRequest(http.MethodPost, "/", map[string]string{"job_number": "J-1"}))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = httptest.NewRecorder()
	h.CreateNCR(w, testutil.JSONRequest(http.MethodPost, "/", map[string]interface{}{"issue": "x", "financial_impact": "-1"}))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestListAndFilterNCRs(t *testing.T) {
	h := newHandler(t)
	createNCR(t, h, map[string]interface{}{"job_number": "J-1", "issue": "Chatter marks"})
	createNCR(t, h, map[string]interface{}{"job_number": "J-2", "issue": "Wrong thread pitch", "status": "closed"})

	w := httptest.NewRecorder()
	h.ListNCRs(w, httptest.NewRequest(http.MethodGet, "/?job_number=J-2", nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var items []models.NCR
	testutil.DecodeEnvelope(t, w, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "closed", items[0].Status)
	assert.NotNil(t, items[0].ResolvedAt)

	w = httptest.NewRecorder()
	h.ListNCRs(w, httptest.NewRequest(http.MethodGet, "/?search=chatter", nil))
	testutil.DecodeEnvelope(t, w, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "J-1", items[0].JobNumber)

	w = httptest.NewRecorder()
	h.Summary(w, httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var sum models.NCRSummary
	testutil.DecodeEnvelope(t, w, &sum)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, map[string]int{"open": 1, "closed": 1}, sum.ByStatus)
}

func TestUpdateNCR(t *testing.T) {
	h := newHandler(t)
	n := createNCR(t, h, map[string]interface{}{"issue": "Porosity"})

	w := httptest.NewRecorder()
	h.UpdateNCR(w, testutil.JSONRequest(http.MethodPut, "/", map[string]string{"status": "investigating", "root_cause": "Gas flow"}), n.ID)
	testutil.AssertStatus(t, w, http.StatusOK)
	var got models.NCR
	testutil.DecodeEnvelope(t, w, &got)
	assert.Equal(t, "investigating", got.Status)
	assert.Equal(t, "Gas flow", got.RootCause)
	assert.Equal(t, "Porosity", got.Issue)
	assert.Nil(t, got.ResolvedAt)

	w = httptest.NewRecorder()
	h.UpdateNCR(w, testutil.JSONRequest(http.MethodPut, "/", map[string]string{"status": ""}), n.ID)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = httptest.NewRecorder()
	h.UpdateNCR(w, testutil.JSONRequest(http.MethodPut, "/", map[string]string{"status": "closed"}), "NCR-1999-404")
	testutil.AssertStatus(t, w, http.StatusNotFound)

	w = httptest.NewRecorder()
	h.GetNCR(w, httptest.NewRequest(http.MethodGet, "/", nil), n.ID)
	testutil.AssertStatus(t, w, http.StatusOK)
}
