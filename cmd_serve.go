package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"opsboard/internal/audit"
	"opsboard/internal/database"
	"opsboard/internal/server"
	"opsboard/internal/websocket"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if serveMigrate {
			if err := database.Migrate(ctx, e.backend.Service); err != nil {
				return err
			}
		} else if missing, err := database.MissingTables(ctx, e.backend.Public); err == nil && len(missing) > 0 {
			e.log.Warn("tables missing; run init-db", zap.Strings("tables", missing))
		}
		if cmd.Flags().Changed("port") {
			e.cfg.Server.Port = servePort
		}
		if e.cfg.Server.ServiceKey == "" {
			e.log.Warn("no service key configured; the API accepts writes without credentials")
		}

		hub := websocket.NewHub(e.log)
		app := &server.App{
			Store:  e.store,
			Hub:    hub,
			Audit:  &audit.Logger{DB: e.backend.Service, Hub: hub, Log: e.log},
			Config: e.cfg,
			Log:    e.log,
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", e.cfg.Server.Port),
			Handler:           app.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()
		e.log.Info("opsboard listening", zap.String("addr", srv.Addr))

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			e.log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides config)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "create missing tables before serving")
	rootCmd.AddCommand(serveCmd)
}
