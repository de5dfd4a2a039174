package quality

import (
	"fmt"
	"net/http"

	"opsboard/internal/audit"
	"opsboard/internal/models"
	"opsboard/internal/response"
	"opsboard/internal/store"
	"opsboard/internal/validation"
)

// ListNCRs handles GET /api/v1/ncrs.
func (h *Handler) ListNCRs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.Store.ListNCRs(r.Context(), store.NCRFilter{
		JobNumber: q.Get("job_number"),
		Status:    q.Get("status"),
		Search:    q.Get("search"),
	})
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	if items == nil {
		items = []models.NCR{}
	}
	response.JSONMeta(w, items, len(items))
}

// GetNCR handles GET /api/v1/ncrs/:id.
func (h *Handler) GetNCR(w http.ResponseWriter, r *http.Request, id string) {
	n, err := h.Store.GetNCR(r.Context(), id)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	response.JSON(w, n)
}

// CreateNCR handles POST /api/v1/ncrs.
func (h *Handler) CreateNCR(w http.ResponseWriter, r *http.Request) {
	var n models.NCR
	if err := response.DecodeBody(r, &n); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	if n.ReportedBy == "" {
		n.ReportedBy = audit.Username(r)
	}
	if ve := validation.NCR(n); ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	saved, err := h.Store.CreateNCR(r.Context(), n)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Username(r), audit.ActionCreate, "ncr", saved.ID,
		fmt.Sprintf("Created %s for %s", saved.ID, saved.JobNumber))
	response.Created(w, saved)
}

// UpdateNCR handles PUT /api/v1/ncrs/:id. Only the fields present in the
// body change.
func (h *Handler) UpdateNCR(w http.ResponseWriter, r *http.Request, id string) {
	var u store.NCRUpdate
	if err := response.DecodeBody(r, &u); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	if u.Status != nil {
		validation.RequireField(ve, "status", *u.Status)
		validation.ValidateEnum(ve, "status", *u.Status, validation.ValidNCRStatuses)
	}
	if u.RootCause != nil {
		validation.ValidateMaxLength(ve, "root_cause", *u.RootCause, validation.MaxTextLength)
	}
	if u.CorrectiveAction != nil {
		validation.ValidateMaxLength(ve, "corrective_action", *u.CorrectiveAction, validation.MaxTextLength)
	}
	if u.FinancialImpact != nil {
		validation.ValidateNonNegativeDecimal(ve, "financial_impact", *u.FinancialImpact)
	}
	if ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	saved, err := h.Store.UpdateNCR(r.Context(), id, u)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Username(r), audit.ActionUpdate, "ncr", id, "Updated "+id+" ("+saved.Status+")")
	response.JSON(w, saved)
}

// Summary handles GET /api/v1/reports/ncr-summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Store.NCRSummary(r.Context())
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	response.JSON(w, sum)
}
