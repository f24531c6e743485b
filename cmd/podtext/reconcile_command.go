package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"podtext/internal/index"
	"podtext/internal/ledger"
	"podtext/internal/reconcile"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair drift between the ledger, rendered artifacts, and live feeds",
	}

	reconcileCmd.AddCommand(newReconcileCleanupCommand(ctx))
	reconcileCmd.AddCommand(newReconcileRebuildCommand(ctx))

	return reconcileCmd
}

func newReconcileCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove undersized artifacts and clear their processed marks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconcileEngine(ctx, func(engine *reconcile.Engine) error {
				report, err := engine.CleanupOrphans(cmd.Context())
				if err != nil {
					return err
				}
				printReconcileReport(cmd, report)
				return nil
			})
		},
	}
}

func newReconcileRebuildCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Reconstruct the ledger from artifacts on disk and live feeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconcileEngine(ctx, func(engine *reconcile.Engine) error {
				report, err := engine.Rebuild(cmd.Context())
				if err != nil {
					return err
				}
				printReconcileReport(cmd, report)
				return nil
			})
		},
	}
}

func withReconcileEngine(ctx *commandContext, fn func(*reconcile.Engine) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	lock, err := acquireLock(cfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	guard := newGuard(cfg)
	store := ledger.NewStore(cfg.Paths.LedgerPath)
	fetcher := newFetcher(cfg, guard, logger)
	renderer, err := newRenderer(cfg, logger)
	if err != nil {
		return err
	}

	indexStore, err := index.Open(cfg.Paths.IndexPath)
	if err != nil {
		return err
	}
	defer indexStore.Close()

	engine := reconcile.New(cfg, store, fetcher, renderer, logger,
		reconcile.WithIndexer(indexStore),
	)
	return fn(engine)
}

func printReconcileReport(cmd *cobra.Command, report *reconcile.Report) {
	rows := [][]string{
		{"Kept records", strconv.Itoa(report.KeptRecords)},
		{"Removed artifacts", strconv.Itoa(len(report.RemovedArtifacts))},
		{"Removed records", strconv.Itoa(len(report.RemovedRecords))},
		{"Unmarked guids", strconv.Itoa(len(report.UnmarkedGUIDs))},
		{"Dropped guids", strconv.Itoa(len(report.DroppedGUIDs))},
		{"Unresolved", strconv.Itoa(len(report.Unresolved))},
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"Result", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
	for _, item := range report.Unresolved {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not resolve %s; run again once the feed is reachable\n", item)
	}
}
