package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podtext/internal/ledger"
)

func newRegenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate",
		Short: "Rewrite the site index, RSS feed, and stylesheet from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			store := ledger.NewStore(cfg.Paths.LedgerPath)
			l, err := store.Load()
			if err != nil {
				return err
			}
			renderer, err := newRenderer(cfg, logger)
			if err != nil {
				return err
			}
			if err := renderer.Regenerate(l); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Regenerated site with %d episode(s) in %s\n", len(l.Episodes), cfg.Paths.OutputDir)
			return nil
		},
	}
}
