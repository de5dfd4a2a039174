package logistics

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"opsboard/internal/audit"
	"opsboard/internal/importer"
	"opsboard/internal/models"
	"opsboard/internal/response"
	"opsboard/internal/store"
	"opsboard/internal/validation"
)

// ListPurchaseOrders handles GET /api/v1/purchase-orders.
func (h *Handler) ListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unlinked, _ := strconv.ParseBool(q.Get("unlinked"))
	pos, err := h.Store.ListPurchaseOrders(r.Context(), store.POFilter{
		JobID:    q.Get("job_id"),
		Vendor:   q.Get("vendor"),
		Status:   q.Get("status"),
		Search:   q.Get("search"),
		Unlinked: unlinked,
	})
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	response.JSONMeta(w, pos, len(pos))
}

// GetPurchaseOrder handles GET /api/v1/purchase-orders/:id. Shipments logged
// against the order are included.
func (h *Handler) GetPurchaseOrder(w http.ResponseWriter, r *http.Request, id string) {
	po, err := h.Store.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	shipments, err := h.Store.ListShipments(r.Context(), "", id)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	response.JSON(w, struct {
		models.PurchaseOrder
		Shipments []models.ShipmentLog `json:"shipments"`
	}{po, shipments})
}

// UpsertPurchaseOrder handles POST /api/v1/purchase-orders.
func (h *Handler) UpsertPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var po models.PurchaseOrder
	if err := response.DecodeBody(r, &po); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	if ve := validation.PurchaseOrder(po); ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	saved, err := h.Store.UpsertPurchaseOrder(r.Context(), po)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Username(r), audit.ActionUpdate, "purchase_order", saved.PONumber,
		fmt.Sprintf("Saved %s (%s, %s)", saved.PONumber, saved.Vendor, saved.Amount.StringFixed(2)))
	response.JSON(w, saved)
}

// ImportPurchaseOrders handles POST /api/v1/purchase-orders/import. The body
// is a multipart form with the workbook in "file" and an optional "sheet".
func (h *Handler) ImportPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(validation.MaxUploadSize); err != nil {
		response.Err(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		response.Err(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ve := &validation.ValidationErrors{}
	validation.ValidateSpreadsheet(ve, header.Filename, header.Size)
	if ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}

	pos, skipped, err := importer.ReadWorkbook(file, r.FormValue("sheet"))
	if err != nil {
		response.Err(w, err.Error(), http.StatusBadRequest)
		return
	}
	im := &importer.Importer{Dest: h.Store, BatchSize: h.ImportBatchSize, Delay: h.ImportDelay, Log: h.Log}
	res := im.BatchUpsert(r.Context(), pos)
	res.Skipped = skipped
	h.Log.Info("purchase order import finished",
		zap.String("file", header.Filename), zap.Int("rows", res.Rows), zap.Int("upserted", res.Upserted),
		zap.Int("failed", res.Failed), zap.Int("skipped", res.Skipped))

	h.Audit.Record(r.Context(), audit.Username(r), audit.ActionImport, "purchase_order", header.Filename,
		fmt.Sprintf("Imported %d of %d purchase orders", res.Upserted, res.Unique))
	response.JSON(w, res)
}

// LinkPurchaseOrders handles POST /api/v1/purchase-orders/link. With
// ?dry_run=true the planned links are returned without being stored.
func (h *Handler) LinkPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))
	res, err := h.Store.LinkPurchaseOrders(r.Context(), dryRun)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	if !dryRun && res.Linked > 0 {
		h.Audit.Record(r.Context(), audit.Username(r), audit.ActionLink, "purchase_order", "*",
			fmt.Sprintf("Linked %d purchase orders to jobs", res.Linked))
	}
	response.JSON(w, res)
}
