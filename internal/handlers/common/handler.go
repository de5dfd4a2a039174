package common

import (
	"go.uber.org/zap"

	"opsboard/internal/audit"
	"opsboard/internal/store"
)

// Handler holds dependencies for cross-cutting handlers: exports and the
// audit trail.
type Handler struct {
	Store *store.Store
	Audit *audit.Logger
	Log   *zap.Logger
}
