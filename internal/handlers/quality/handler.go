package quality

import (
	"go.uber.org/zap"

	"opsboard/internal/audit"
	"opsboard/internal/store"
)

// Handler holds dependencies for quality handlers.
type Handler struct {
	Store *store.Store
	Audit *audit.Logger
	Log   *zap.Logger
}
