package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"opsboard/internal/importer"
)

var (
	importSheet     string
	importBatchSize int
	importDelay     time.Duration
)

var importCmd = &cobra.Command{
	Use:   "import-pos <file.xlsx>",
	Short: "Import purchase orders from a spreadsheet export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		sheet := e.cfg.Import.Sheet
		if cmd.Flags().Changed("sheet") {
			sheet = importSheet
		}
		im := &importer.Importer{
			Dest:      e.store,
			BatchSize: e.cfg.Import.BatchSize,
			Delay:     e.cfg.Import.Delay,
			Log:       e.log,
		}
		if cmd.Flags().Changed("batch-size") {
			im.BatchSize = importBatchSize
		}
		if cmd.Flags().Changed("delay") {
			im.Delay = importDelay
		}

		pos, skipped, err := importer.ReadFile(args[0], sheet)
		if err != nil {
			return err
		}
		e.log.Info("workbook read", zap.String("file", args[0]), zap.Int("rows", len(pos)), zap.Int("skipped", skipped))

		res := im.BatchUpsert(ctx, pos)
		res.Skipped = skipped
		fmt.Fprintf(cmd.OutOrStdout(), "Rows read:        %d (%d skipped)\n", res.Rows, res.Skipped)
		fmt.Fprintf(cmd.OutOrStdout(), "Unique POs:       %d\n", res.Unique)
		fmt.Fprintf(cmd.OutOrStdout(), "Batches:          %d (%d failed)\n", res.Batches, res.FailedBatches)
		fmt.Fprintf(cmd.OutOrStdout(), "Upserted:         %d\n", res.Upserted)
		if res.Failed > 0 {
			for _, msg := range res.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), "  "+msg)
			}
			return fmt.Errorf("%d of %d purchase orders failed to import", res.Failed, res.Unique)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "worksheet name (default: first sheet)")
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", importer.DefaultBatchSize, "rows per upsert")
	importCmd.Flags().DurationVar(&importDelay, "delay", 500*time.Millisecond, "pause between batches")
	rootCmd.AddCommand(importCmd)
}
