package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"opsboard/internal/cache"
	"opsboard/internal/config"
	"opsboard/internal/database"
	"opsboard/internal/logging"
	"opsboard/internal/store"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "opsboard",
	Short: "Manufacturing operations dashboard backend",
	Long: `opsboard serves the job, work-center, logistics and NCR dashboards and
carries the maintenance tasks behind them: schema setup, sample data,
purchase-order spreadsheet import and PO-to-job linking.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func main() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand needs once configuration is loaded.
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	backend *database.Backend
	store   *store.Store
}

func (e *env) Close() {
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.log.Warn("closing backend", zap.Error(err))
		}
	}
	_ = e.log.Sync()
}

// setup loads configuration, builds the logger and connects both backend
// handles.
func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	cfg.LogWarnings(log)

	b, err := database.Connect(cfg.Database.URL, cfg.Database.ServiceURL, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to backend: %w", err)
	}
	if err := b.Ping(ctx); err != nil {
		b.Close()
		return nil, err
	}
	st := store.New(b, cache.New(cfg.CacheTTL), log)
	st.CapacityHours = cfg.WorkCenters.CapacityHours
	return &env{cfg: cfg, log: log, backend: b, store: st}, nil
}
