package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"podtext/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and adjust the processing ledger",
	}

	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerStatsCommand(ctx))
	ledgerCmd.AddCommand(newLedgerRetryCommand(ctx))
	ledgerCmd.AddCommand(newLedgerClearFailedCommand(ctx))

	return ledgerCmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var showFailed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cataloged episodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, _, err := loadLedger(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if showFailed {
				if len(l.Failed) == 0 {
					fmt.Fprintln(out, "No failed entries")
					return nil
				}
				rows := make([][]string, 0, len(l.Failed))
				for _, guid := range l.Failed {
					rows = append(rows, []string{guid})
				}
				fmt.Fprintln(out, renderTable([]string{"Failed GUID"}, rows, []columnAlignment{alignLeft}))
				return nil
			}

			if len(l.Episodes) == 0 {
				fmt.Fprintln(out, "No episodes in the ledger")
				return nil
			}
			rows := make([][]string, 0, len(l.Episodes))
			for _, ep := range l.Episodes {
				rows = append(rows, []string{ep.FeedName, ep.Title, ep.PublishedDate, ledgerStatus(l, ep)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Feed", "Title", "Published", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFailed, "failed", false, "List failed entry identifiers instead of episodes")
	return cmd
}

func ledgerStatus(l *ledger.Ledger, ep ledger.Episode) string {
	switch {
	case ep.GUID == "":
		return "unresolved"
	case l.IsFailed(ep.GUID):
		return "failed"
	case l.IsProcessed(ep.GUID):
		return "processed"
	default:
		return "pending"
	}
}

func newLedgerStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show ledger counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, store, err := loadLedger(ctx)
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Processed", strconv.Itoa(len(l.Processed))},
				{"Failed", strconv.Itoa(len(l.Failed))},
				{"Episodes", strconv.Itoa(len(l.Episodes))},
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ledger: %s\n", store.Path())
			fmt.Fprintln(out, renderTable(
				[]string{"Counter", "Count"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newLedgerRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <guid>",
		Short: "Clear one failed entry so the next run retries it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := acquireLock(cfg)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			store := ledger.NewStore(cfg.Paths.LedgerPath)
			l, err := store.Load()
			if err != nil {
				return err
			}
			guid := args[0]
			if !l.UnmarkFailed(guid) {
				return fmt.Errorf("guid %q is not in the failed set", guid)
			}
			if err := store.Save(l); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s; the next run will retry it\n", guid)
			return nil
		},
	}
}

func newLedgerClearFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Clear every failed entry so the next run retries them all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := acquireLock(cfg)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			store := ledger.NewStore(cfg.Paths.LedgerPath)
			l, err := store.Load()
			if err != nil {
				return err
			}
			cleared := l.ClearFailed()
			if err := store.Save(l); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d failed entries\n", cleared)
			return nil
		},
	}
}

func loadLedger(ctx *commandContext) (*ledger.Ledger, *ledger.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store := ledger.NewStore(cfg.Paths.LedgerPath)
	l, err := store.Load()
	if err != nil {
		return nil, nil, err
	}
	return l, store, nil
}
