package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"opsboard/internal/database"
	"opsboard/internal/seed"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create any missing tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		missing, err := database.MissingTables(ctx, e.backend.Service)
		if err != nil {
			return err
		}
		if len(missing) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "All tables present.")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Creating %d missing tables: %s\n", len(missing), strings.Join(missing, ", "))
		}
		if err := database.Migrate(ctx, e.backend.Service); err != nil {
			return err
		}
		e.log.Info("schema ready", zap.Strings("created", missing))
		return nil
	},
}

var seedForce bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample jobs, operations, purchase orders and NCRs",
	Long: `Seeds each sample table that is still empty. With --force every sample
table is cleared first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := seed.Run(ctx, e.store, seedForce, e.log)
		if err != nil {
			return err
		}
		for _, table := range slices.Sorted(maps.Keys(res.Tables)) {
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %d rows\n", table, res.Tables[table])
		}
		if len(res.Skipped) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Skipped (already populated): %s\n", strings.Join(res.Skipped, ", "))
		}
		return nil
	},
}

var linkDryRun bool

var linkCmd = &cobra.Command{
	Use:   "link-pos",
	Short: "Link unassigned purchase orders to jobs by job number",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.store.LinkPurchaseOrders(ctx, linkDryRun)
		if err != nil {
			return err
		}
		for po, job := range res.Links {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", po, job)
		}
		verb := "Linked"
		if linkDryRun {
			verb = "Would link"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d unlinked purchase orders (%d unmatched)\n",
			verb, res.Linked, res.Scanned, res.Unmatched)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh-work-centers",
	Short: "Recompute and store the work-center snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		all, err := e.store.RefreshWorkCenters(ctx)
		if err != nil {
			return err
		}
		for _, m := range all {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-10s %6.1f%% utilized, %6.1f%% efficient\n",
				m.Name, m.Status, m.Utilization, m.Efficiency)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "clear sample tables before seeding")
	linkCmd.Flags().BoolVar(&linkDryRun, "dry-run", false, "report matches without writing them")
	rootCmd.AddCommand(initDBCmd, seedCmd, linkCmd, refreshCmd)
}
