package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"podtext/internal/config"
	"podtext/internal/gitsync"
	"podtext/internal/index"
	"podtext/internal/ingest"
	"podtext/internal/ledger"
	"podtext/internal/notifications"
	"podtext/internal/transcribe"
)

// Audio downloads run far longer than feed fetches and get their own timeout.
const audioDownloadTimeout = 10 * time.Minute

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch feeds, transcribe new episodes, and publish the site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireTranscriber(); err != nil {
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
			for _, feed := range cfg.Feeds {
				if err := guard.ValidateURL(feed.URL); err != nil {
					return fmt.Errorf("feed %q: %w", feed.Name, err)
				}
			}

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

			transcriber := transcribe.NewClient(transcribe.Config{
				APIKey:              cfg.Transcriber.APIKey,
				BaseURL:             cfg.Transcriber.BaseURL,
				Model:               cfg.Transcriber.Model,
				TimeoutSeconds:      cfg.Transcriber.TimeoutSeconds,
				PollIntervalSeconds: cfg.Transcriber.PollIntervalSeconds,
				RetryAttempts:       cfg.Transcriber.RetryAttempts,
				RetryDelaySeconds:   cfg.Transcriber.RetryDelaySeconds,
			})

			notifier := notifications.NewService(
				cfg.Notifications.NtfyTopic,
				time.Duration(cfg.Notifications.RequestTimeout)*time.Second,
			)

			opts := []ingest.Option{
				ingest.WithAudioClient(guard.NewClient(audioDownloadTimeout)),
				ingest.WithIndexer(indexStore),
				ingest.WithNotifier(notifier),
			}
			if cfg.Git.Enabled {
				opts = append(opts, ingest.WithSyncer(
					gitsync.New(cfg.Paths.OutputDir, logger, gitsync.WithPush(cfg.Git.Push)),
				))
			}

			controller := ingest.New(cfg, store, fetcher, transcriber, renderer, logger, opts...)
			summary, err := controller.Run(cmd.Context())
			if err != nil {
				return err
			}

			printRunSummary(cmd, cfg, summary)
			return nil
		},
	}
}

func printRunSummary(cmd *cobra.Command, cfg *config.Config, summary ingest.Summary) {
	rows := [][]string{
		{"Committed", strconv.Itoa(summary.Committed)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Skipped", strconv.Itoa(summary.Skipped)},
		{"Ignored", strconv.Itoa(summary.Ignored)},
		{"Feed errors", strconv.Itoa(summary.FeedErrs)},
		{"Duration", summary.Duration.Round(time.Second).String()},
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s over %d feed(s)\n", summary.RunID, len(cfg.Feeds))
	fmt.Fprintln(out, renderTable(
		[]string{"Result", "Value"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
}
