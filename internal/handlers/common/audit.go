package common

import (
	"errors"
	"net/http"
	"strconv"

	"opsboard/internal/audit"
	"opsboard/internal/response"
	"opsboard/internal/tables"
)

const defaultAuditLimit = 100

// ListAudit handles GET /api/v1/audit?module=&limit=.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			response.Err(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := h.Audit.Recent(r.Context(), r.URL.Query().Get("module"), limit)
	if errors.Is(err, tables.ErrTableMissing) {
		entries, err = []audit.Entry{}, nil
	}
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	response.JSONMeta(w, entries, len(entries))
}
