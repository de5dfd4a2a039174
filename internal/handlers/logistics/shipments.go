package logistics

import (
	"net/http"

	"opsboard/internal/audit"
	"opsboard/internal/models"
	"opsboard/internal/response"
	"opsboard/internal/validation"
)

// ListShipments handles GET /api/v1/shipments.
func (h *Handler) ListShipments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.Store.ListShipments(r.Context(), q.Get("status"), q.Get("po_number"))
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	response.JSONMeta(w, items, len(items))
}

// CreateShipment handles POST /api/v1/shipments.
func (h *Handler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	var s models.ShipmentLog
	if err := response.DecodeBody(r, &s); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	if ve := validation.Shipment(s); ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	saved, err := h.Store.CreateShipment(r.Context(), s)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Username(r), audit.ActionCreate, "shipment", saved.ID,
		"Shipment logged for "+saved.PONumber)
	response.Created(w, saved)
}

// UpdateShipmentStatus handles PUT /api/v1/shipments/:id/status.
func (h *Handler) UpdateShipmentStatus(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Status string `json:"status"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "status", body.Status)
	validation.ValidateEnum(ve, "status", body.Status, validation.ValidShipmentStatuses)
	if ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	if err := h.Store.UpdateShipmentStatus(r.Context(), id, body.Status); err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Username(r), audit.ActionUpdate, "shipment", id, "Status set to "+body.Status)
	response.JSON(w, map[string]string{"id": id, "status": body.Status})
}

// ListVendorOperations handles GET /api/v1/jobs/:id/vendor-operations.
func (h *Handler) ListVendorOperations(w http.ResponseWriter, r *http.Request, jobNumber string) {
	items, err := h.Store.VendorOperationsForJob(r.Context(), jobNumber)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	response.JSON(w, items)
}

// UpsertVendorOperation handles POST /api/v1/jobs/:id/vendor-operations.
func (h *Handler) UpsertVendorOperation(w http.ResponseWriter, r *http.Request, jobNumber string) {
	var v models.VendorOperation
	if err := response.DecodeBody(r, &v); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "vendor", v.Vendor)
	validation.RequireField(ve, "operation", v.Operation)
	validation.ValidateDate(ve, "due_date", v.DueDate)
	if ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	if _, err := h.Store.GetJob(r.Context(), jobNumber); err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	v.JobNumber = jobNumber
	saved, err := h.Store.UpsertVendorOperation(r.Context(), v)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Username(r), audit.ActionUpdate, "vendor_operation", saved.ID,
		v.Operation+" at "+v.Vendor+" for "+jobNumber)
	response.JSON(w, saved)
}
