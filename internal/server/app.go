package server

import (
	"go.uber.org/zap"

	"opsboard/internal/audit"
	"opsboard/internal/config"
	"opsboard/internal/store"
	"opsboard/internal/websocket"
)

// App holds shared dependencies for the HTTP handlers.
type App struct {
	Store  *store.Store
	Hub    *websocket.Hub
	Audit  *audit.Logger
	Config *config.Config
	Log    *zap.Logger
}
