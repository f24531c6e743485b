package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podtext/internal/index"
	"podtext/internal/ledger"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search transcripts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")

			indexStore, err := index.Open(cfg.Paths.IndexPath)
			if err != nil {
				return err
			}
			defer indexStore.Close()

			// A fresh index is empty; seed it from the ledger so search works
			// without an ingestion run first.
			count, err := indexStore.Count(cmd.Context())
			if err != nil {
				return err
			}
			if count == 0 {
				store := ledger.NewStore(cfg.Paths.LedgerPath)
				l, err := store.Load()
				if err != nil {
					return err
				}
				if err := indexStore.Rebuild(cmd.Context(), l); err != nil {
					return err
				}
			}

			hits, err := indexStore.Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintf(out, "No transcripts match %q\n", query)
				return nil
			}

			rows := make([][]string, 0, len(hits))
			for _, hit := range hits {
				rows = append(rows, []string{hit.FeedName, hit.Title, hit.PublishedDate, hit.Snippet})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Feed", "Title", "Published", "Match"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	return cmd
}
