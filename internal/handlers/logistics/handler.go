package logistics

import (
	"time"

	"go.uber.org/zap"

	"opsboard/internal/audit"
	"opsboard/internal/store"
)

// Handler holds dependencies for purchase order, shipment and vendor
// operation handlers.
type Handler struct {
	Store *store.Store
	Audit *audit.Logger
	Log   *zap.Logger

	// ImportBatchSize and ImportDelay configure spreadsheet uploads.
	ImportBatchSize int
	ImportDelay     time.Duration
}
