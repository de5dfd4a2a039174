package manufacturing

import (
	"net/http"

	"opsboard/internal/audit"
	"opsboard/internal/models"
	"opsboard/internal/response"
)

// Dashboard handles GET /api/v1/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Store.Dashboard(r.Context())
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	if d.TopWorkCenters == nil {
		d.TopWorkCenters = []models.WorkCenterMetrics{}
	}
	response.JSON(w, d)
}

// ListWorkCenters handles GET /api/v1/work-centers.
func (h *Handler) ListWorkCenters(w http.ResponseWriter, r *http.Request) {
	all, err := h.Store.AllWorkCenterMetrics(r.Context())
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	response.JSONMeta(w, all, len(all))
}

// GetWorkCenter handles GET /api/v1/work-centers/:name. It returns the
// metrics together with the operations they were computed from.
func (h *Handler) GetWorkCenter(w http.ResponseWriter, r *http.Request, name string) {
	ops, err := h.Store.OperationsForWorkCenter(r.Context(), name)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	m, err := h.Store.WorkCenterMetrics(r.Context(), name)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	if ops == nil {
		ops = []models.Operation{}
	}
	response.JSON(w, struct {
		models.WorkCenterMetrics
		SAPData []models.Operation `json:"sap_data"`
	}{m, ops})
}

// RefreshWorkCenters handles POST /api/v1/work-centers/refresh.
func (h *Handler) RefreshWorkCenters(w http.ResponseWriter, r *http.Request) {
	all, err := h.Store.RefreshWorkCenters(r.Context())
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Username(r), "refresh", "work_center", "*", "Work center snapshot refreshed")
	response.JSONMeta(w, all, len(all))
}
