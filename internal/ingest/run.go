package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"podtext/internal/feeds"
	"podtext/internal/logging"
)

// Summary aggregates outcomes across all feeds of one run.
type Summary struct {
	RunID     string
	Committed int
	Failed    int
	Skipped   int
	Ignored   int
	FeedErrs  int
	Duration  time.Duration
}

// Run ingests every configured feed. Feed-level fetch failures are counted
// and logged but never abort the remaining feeds; the summary is reported
// via notifications when a notifier is wired.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	runLog := c.logger.With(logging.String(logging.FieldRunID, summary.RunID))

	l, err := c.store.Load()
	if err != nil {
		return summary, err
	}

	runLog.Info("ingestion run started", logging.Int("feeds", len(c.cfg.Feeds)))

	for _, feed := range c.cfg.Feeds {
		src := feeds.Source{Name: feed.Name, URL: feed.URL}
		outcomes, err := c.IngestFeed(ctx, l, src)
		if err != nil {
			summary.FeedErrs++
			runLog.Error("feed ingestion failed",
				logging.String(logging.FieldFeed, feed.Name),
				logging.Error(err),
			)
			if notifyErr := c.notifier.NotifyError(ctx, err, "feed "+feed.Name); notifyErr != nil {
				runLog.Debug("notify feed error", logging.Error(notifyErr))
			}
			continue
		}
		for _, outcome := range outcomes {
			switch outcome.Status {
			case StatusCommitted:
				summary.Committed++
			case StatusFailed:
				summary.Failed++
			case StatusSkipped:
				summary.Skipped++
			case StatusIgnored:
				summary.Ignored++
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	// Derived surfaces track the ledger even when no entry committed, so a
	// run after an offline repair refreshes the index and feed.
	if err := c.renderer.Regenerate(l); err != nil {
		runLog.Error("regenerate site", logging.Error(err))
	}

	summary.Duration = time.Since(start)
	runLog.Info("ingestion run finished",
		logging.Int("committed", summary.Committed),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("ignored", summary.Ignored),
		logging.Int("feed_errors", summary.FeedErrs),
		logging.Duration("duration", summary.Duration),
	)

	if summary.Committed > 0 || summary.Failed > 0 {
		if err := c.notifier.NotifyRunCompleted(ctx, summary.Committed, summary.Failed, summary.Duration); err != nil {
			runLog.Debug("notify run completed", logging.Error(err))
		}
	}
	return summary, ctx.Err()
}
