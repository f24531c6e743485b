// Package reconcile detects and repairs divergence between the ledger, the
// rendered artifact tree, and the live remote feeds. Both modes are
// idempotent and safe to run repeatedly; the engine never forces a ledger
// state it cannot justify and reports every item it could not resolve.
package reconcile

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"podtext/internal/config"
	"podtext/internal/feeds"
	"podtext/internal/ledger"
	"podtext/internal/logging"
	"podtext/internal/render"
	"podtext/internal/textutil"
)

// Indexer is the search-index surface the engine refreshes after repairs.
type Indexer interface {
	Rebuild(ctx context.Context, l *ledger.Ledger) error
}

// Report describes what one reconciliation pass changed.
type Report struct {
	RemovedArtifacts []string
	RemovedRecords   []string
	UnmarkedGUIDs    []string
	DroppedGUIDs     []string
	Unresolved       []string
	KeptRecords      int
}

// Engine repairs ledger/artifact/feed divergence.
type Engine struct {
	cfg      *config.Config
	store    *ledger.Store
	fetcher  *feeds.Fetcher
	renderer *render.Renderer
	indexer  Indexer
	logger   *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithIndexer wires the transcript search index for post-repair refresh.
func WithIndexer(indexer Indexer) Option {
	return func(e *Engine) {
		e.indexer = indexer
	}
}

// New builds a reconciliation engine.
func New(cfg *config.Config, store *ledger.Store, fetcher *feeds.Fetcher, renderer *render.Renderer, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		renderer: renderer,
		logger:   logging.WithComponent(logger, "reconcile"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CleanupOrphans removes artifacts below the size threshold together with
// their catalog records and processed marks, so the next ingestion run
// re-processes them. The remote guid is taken from the stored record first;
// records that predate guid storage fall back to live slug matching, and a
// guid that still cannot be resolved is reported rather than guessed at.
func (e *Engine) CleanupOrphans(ctx context.Context) (*Report, error) {
	l, err := e.store.Load()
	if err != nil {
		return nil, err
	}

	candidates, err := e.undersizedArtifacts()
	if err != nil {
		return nil, err
	}
	report := &Report{}
	if len(candidates) == 0 {
		report.KeptRecords = len(l.Episodes)
		return report, nil
	}

	var liveGuids map[string]string
	for _, artifact := range candidates {
		feedSlug, slug, ok := e.artifactKey(artifact)
		if !ok {
			e.logger.Warn("artifact outside episode layout, leaving in place",
				logging.String("path", artifact),
			)
			report.Unresolved = append(report.Unresolved, artifact)
			continue
		}

		guid := ""
		if record, found := l.FindEpisode(feedSlug, slug); found {
			guid = record.GUID
		}
		if guid == "" {
			if liveGuids == nil {
				liveGuids = e.liveGuidMap(ctx)
			}
			guid = liveGuids[feedSlug+"/"+slug]
		}

		if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove artifact %s: %w", artifact, err)
		}
		report.RemovedArtifacts = append(report.RemovedArtifacts, artifact)
		if _, removed := l.RemoveEpisode(feedSlug, slug); removed {
			report.RemovedRecords = append(report.RemovedRecords, feedSlug+"/"+slug)
		}

		if guid == "" {
			// No stored guid and no live match: shrinking processed here
			// could drop an unrelated identifier, so it stays untouched.
			e.logger.Warn("cannot resolve guid for removed artifact",
				logging.String(logging.FieldSlug, slug),
				logging.String(logging.FieldFeed, feedSlug),
			)
			report.Unresolved = append(report.Unresolved, feedSlug+"/"+slug)
			continue
		}
		l.UnmarkProcessed(guid)
		report.UnmarkedGUIDs = append(report.UnmarkedGUIDs, guid)
	}

	report.KeptRecords = len(l.Episodes)
	if err := e.finish(ctx, l); err != nil {
		return nil, err
	}
	e.logger.Info("orphan cleanup finished",
		logging.Int("removed_artifacts", len(report.RemovedArtifacts)),
		logging.Int("unmarked_guids", len(report.UnmarkedGUIDs)),
		logging.Int("unresolved", len(report.Unresolved)),
	)
	return report, nil
}

// Rebuild reconstructs the ledger from the ground truth that remains: the
// artifact tree and the live feeds. Records whose artifact is missing or
// undersized are dropped; processed becomes exactly the guids of surviving
// records. Records without a resolvable guid survive but are reported, and
// their absent guid means ingestion may process the entry again.
func (e *Engine) Rebuild(ctx context.Context) (*Report, error) {
	l, err := e.store.Load()
	if err != nil {
		return nil, err
	}

	liveGuids := e.liveGuidMap(ctx)
	report := &Report{}

	oldProcessed := append([]string(nil), l.Processed...)
	kept := make([]ledger.Episode, 0, len(l.Episodes))
	processed := make(map[string]bool)

	for _, record := range l.Episodes {
		artifact := e.renderer.EpisodePath(record.FeedSlug, record.Slug)
		if err := e.renderer.VerifyArtifact(artifact, e.cfg.Ingest.MinArtifactBytes); err != nil {
			report.RemovedRecords = append(report.RemovedRecords, record.Key())
			e.logger.Info("dropping record without usable artifact",
				logging.String(logging.FieldSlug, record.Slug),
				logging.String(logging.FieldFeed, record.FeedSlug),
			)
			continue
		}

		if record.GUID == "" {
			if guid, ok := liveGuids[record.Key()]; ok {
				record.GUID = guid
			}
		}
		if record.GUID == "" {
			e.logger.Warn("record has no resolvable guid, keeping without processed mark",
				logging.String(logging.FieldSlug, record.Slug),
				logging.String(logging.FieldFeed, record.FeedSlug),
			)
			report.Unresolved = append(report.Unresolved, record.Key())
		} else {
			processed[record.GUID] = true
		}
		kept = append(kept, record)
	}

	l.Episodes = kept
	l.Processed = l.Processed[:0]
	for _, record := range kept {
		if record.GUID != "" && processed[record.GUID] {
			l.Processed = append(l.Processed, record.GUID)
			processed[record.GUID] = false
		}
	}
	for _, guid := range oldProcessed {
		if !l.IsProcessed(guid) {
			report.DroppedGUIDs = append(report.DroppedGUIDs, guid)
		}
	}
	// Keep the sets disjoint after the rewrite.
	for _, guid := range l.Processed {
		l.Failed = removeString(l.Failed, guid)
	}

	report.KeptRecords = len(kept)
	if err := e.finish(ctx, l); err != nil {
		return nil, err
	}
	e.logger.Info("ledger rebuild finished",
		logging.Int("kept_records", report.KeptRecords),
		logging.Int("removed_records", len(report.RemovedRecords)),
		logging.Int("dropped_guids", len(report.DroppedGUIDs)),
		logging.Int("unresolved", len(report.Unresolved)),
	)
	return report, nil
}

func (e *Engine) finish(ctx context.Context, l *ledger.Ledger) error {
	if err := e.store.Save(l); err != nil {
		return err
	}
	if e.indexer != nil {
		if err := e.indexer.Rebuild(ctx, l); err != nil {
			e.logger.Warn("rebuild search index", logging.Error(err))
		}
	}
	if err := e.renderer.Regenerate(l); err != nil {
		e.logger.Warn("regenerate site", logging.Error(err))
	}
	return nil
}

// undersizedArtifacts walks the episode tree for pages below the threshold.
func (e *Engine) undersizedArtifacts() ([]string, error) {
	root := e.renderer.EpisodesDir()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() < e.cfg.Ingest.MinArtifactBytes {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}
	return out, nil
}

// artifactKey recovers (feed_slug, slug) from an artifact path under the
// episodes directory.
func (e *Engine) artifactKey(path string) (string, string, bool) {
	rel, err := filepath.Rel(e.renderer.EpisodesDir(), path)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || !strings.HasSuffix(parts[1], ".html") {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".html"), true
}

// liveGuidMap fetches every configured feed and maps derived catalog keys to
// remote guids. Fetch failures degrade to an empty contribution; resolution
// then falls back to warnings rather than errors.
func (e *Engine) liveGuidMap(ctx context.Context) map[string]string {
	out := make(map[string]string)
	for _, feed := range e.cfg.Feeds {
		src := feeds.Source{Name: feed.Name, URL: feed.URL}
		fetched, err := e.fetcher.Fetch(ctx, src)
		if err != nil {
			e.logger.Warn("live feed unavailable for guid resolution",
				logging.String(logging.FieldFeed, feed.Name),
				logging.Error(err),
			)
			continue
		}
		feedSlug := textutil.Slugify(feed.Name)
		for _, entry := range fetched.Entries {
			slug := textutil.Slugify(entry.Title)
			if slug == "" || entry.GUID == "" {
				continue
			}
			key := feedSlug + "/" + slug
			if _, exists := out[key]; !exists {
				out[key] = entry.GUID
			}
		}
	}
	return out
}

func removeString(values []string, value string) []string {
	out := values[:0]
	for _, v := range values {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
