package reconcile

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"podtext/internal/config"
	"podtext/internal/feeds"
	"podtext/internal/ledger"
	"podtext/internal/render"
	"podtext/internal/testsupport"
)

type env struct {
	cfg      *config.Config
	store    *ledger.Store
	renderer *render.Renderer
	engine   *Engine
}

// newEnv optionally serves a live feed for slug-to-guid resolution.
func newEnv(t *testing.T, liveItems string) *env {
	t.Helper()

	var feedList []config.Feed
	client := &http.Client{}
	if liveItems != "" {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Example Show</title>%s</channel></rss>`, liveItems)
		}))
		t.Cleanup(ts.Close)
		feedList = []config.Feed{{Name: "Example Show", URL: ts.URL}}
		client = ts.Client()
	}

	cfg := testsupport.NewConfig(t,
		testsupport.WithFeeds(feedList...),
		testsupport.WithMinArtifactBytes(100),
	)
	store := ledger.NewStore(cfg.Paths.LedgerPath)
	renderer, err := render.New(cfg.Paths.OutputDir, render.Site{Title: "Test"}, nil)
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	fetcher := feeds.NewFetcher(nil, feeds.WithHTTPClient(client))
	return &env{
		cfg:      cfg,
		store:    store,
		renderer: renderer,
		engine:   New(cfg, store, fetcher, renderer, nil),
	}
}

func (e *env) writeArtifact(t *testing.T, feedSlug, slug string, size int) string {
	t.Helper()
	path := e.renderer.EpisodePath(feedSlug, slug)
	testsupport.WriteFile(t, path, size)
	return path
}

func (e *env) saveLedger(t *testing.T, l *ledger.Ledger) {
	t.Helper()
	if err := e.store.Save(l); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func record(feedSlug, slug, guid string) ledger.Episode {
	return ledger.Episode{
		GUID:          guid,
		Title:         slug,
		PublishedDate: "2026-01-02",
		Slug:          slug,
		FeedName:      "Example Show",
		FeedSlug:      feedSlug,
		Transcript:    "text",
	}
}

func TestCleanupOrphansRemovesUndersizedArtifacts(t *testing.T) {
	e := newEnv(t, "")

	good := e.writeArtifact(t, "example-show", "good", 200)
	bad := e.writeArtifact(t, "example-show", "bad", 10)

	l := ledger.NewLedger()
	l.UpsertEpisode(record("example-show", "good", "guid-good"))
	l.UpsertEpisode(record("example-show", "bad", "guid-bad"))
	l.MarkProcessed("guid-good")
	l.MarkProcessed("guid-bad")
	e.saveLedger(t, l)

	report, err := e.engine.CleanupOrphans(context.Background())
	if err != nil {
		t.Fatalf("CleanupOrphans: %v", err)
	}

	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Fatal("undersized artifact not removed")
	}
	if _, err := os.Stat(good); err != nil {
		t.Fatal("healthy artifact removed")
	}
	if len(report.RemovedArtifacts) != 1 || len(report.UnmarkedGUIDs) != 1 || report.UnmarkedGUIDs[0] != "guid-bad" {
		t.Fatalf("unexpected report: %#v", report)
	}

	got, _ := e.store.Load()
	if got.IsProcessed("guid-bad") {
		t.Fatal("guid-bad still processed")
	}
	if !got.IsProcessed("guid-good") {
		t.Fatal("guid-good lost its processed mark")
	}
	if _, ok := got.FindEpisode("example-show", "bad"); ok {
		t.Fatal("record for removed artifact survived")
	}
}

func TestCleanupOrphansIsIdempotent(t *testing.T) {
	e := newEnv(t, "")
	e.writeArtifact(t, "example-show", "bad", 10)

	l := ledger.NewLedger()
	l.UpsertEpisode(record("example-show", "bad", "guid-bad"))
	l.MarkProcessed("guid-bad")
	e.saveLedger(t, l)

	if _, err := e.engine.CleanupOrphans(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	report, err := e.engine.CleanupOrphans(context.Background())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(report.RemovedArtifacts) != 0 || len(report.UnmarkedGUIDs) != 0 {
		t.Fatalf("second pass changed state: %#v", report)
	}
}

func TestCleanupOrphansWarnsOnUnresolvableGuid(t *testing.T) {
	e := newEnv(t, "")
	e.writeArtifact(t, "example-show", "mystery", 10)

	// A record without a stored guid and no live feed to resolve against.
	l := ledger.NewLedger()
	l.UpsertEpisode(record("example-show", "mystery", ""))
	l.MarkProcessed("guid-unrelated")
	e.saveLedger(t, l)

	report, err := e.engine.CleanupOrphans(context.Background())
	if err != nil {
		t.Fatalf("CleanupOrphans: %v", err)
	}
	if len(report.Unresolved) != 1 || report.Unresolved[0] != "example-show/mystery" {
		t.Fatalf("unresolved item not reported: %#v", report)
	}

	got, _ := e.store.Load()
	if !got.IsProcessed("guid-unrelated") {
		t.Fatal("processed set shrank despite unresolved mapping")
	}
}

func TestCleanupOrphansResolvesGuidFromLiveFeed(t *testing.T) {
	live := `<item><guid>guid-live</guid><title>Mystery</title></item>`
	e := newEnv(t, live)
	e.writeArtifact(t, "example-show", "mystery", 10)

	l := ledger.NewLedger()
	l.UpsertEpisode(record("example-show", "mystery", ""))
	l.MarkProcessed("guid-live")
	e.saveLedger(t, l)

	report, err := e.engine.CleanupOrphans(context.Background())
	if err != nil {
		t.Fatalf("CleanupOrphans: %v", err)
	}
	if len(report.UnmarkedGUIDs) != 1 || report.UnmarkedGUIDs[0] != "guid-live" {
		t.Fatalf("live resolution failed: %#v", report)
	}
	got, _ := e.store.Load()
	if got.IsProcessed("guid-live") {
		t.Fatal("resolved guid still processed")
	}
}

func TestRebuildKeepsOnlyRecordsWithArtifacts(t *testing.T) {
	e := newEnv(t, "")
	e.writeArtifact(t, "example-show", "kept", 200)
	e.writeArtifact(t, "example-show", "small", 10)

	l := ledger.NewLedger()
	l.UpsertEpisode(record("example-show", "kept", "guid-kept"))
	l.UpsertEpisode(record("example-show", "small", "guid-small"))
	l.UpsertEpisode(record("example-show", "gone", "guid-gone"))
	l.MarkProcessed("guid-kept")
	l.MarkProcessed("guid-small")
	l.MarkProcessed("guid-gone")
	l.MarkFailed("guid-other")
	e.saveLedger(t, l)

	report, err := e.engine.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.KeptRecords != 1 {
		t.Fatalf("unexpected kept count: %#v", report)
	}
	if len(report.RemovedRecords) != 2 {
		t.Fatalf("expected 2 removed records: %#v", report)
	}

	got, _ := e.store.Load()
	if !got.IsProcessed("guid-kept") {
		t.Fatal("surviving record lost processed mark")
	}
	if got.IsProcessed("guid-small") || got.IsProcessed("guid-gone") {
		t.Fatalf("dropped guids survived: %v", got.Processed)
	}
	if !got.IsFailed("guid-other") {
		t.Fatal("failed set not preserved")
	}
	if len(got.Episodes) != 1 || got.Episodes[0].Slug != "kept" {
		t.Fatalf("unexpected catalog: %#v", got.Episodes)
	}
}

func TestRebuildBackfillsGuidFromLiveFeed(t *testing.T) {
	live := `<item><guid>guid-live</guid><title>Legacy</title></item>`
	e := newEnv(t, live)
	e.writeArtifact(t, "example-show", "legacy", 200)

	l := ledger.NewLedger()
	l.UpsertEpisode(record("example-show", "legacy", ""))
	e.saveLedger(t, l)

	if _, err := e.engine.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	got, _ := e.store.Load()
	if !got.IsProcessed("guid-live") {
		t.Fatalf("live guid not rebuilt into processed: %v", got.Processed)
	}
	ep, ok := got.FindEpisode("example-show", "legacy")
	if !ok || ep.GUID != "guid-live" {
		t.Fatalf("guid not backfilled on record: %#v", ep)
	}
}

func TestRebuildReportsUnresolvableRecords(t *testing.T) {
	e := newEnv(t, "")
	e.writeArtifact(t, "example-show", "orphaned", 200)

	l := ledger.NewLedger()
	l.UpsertEpisode(record("example-show", "orphaned", ""))
	e.saveLedger(t, l)

	report, err := e.engine.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if len(report.Unresolved) != 1 {
		t.Fatalf("unresolved record not reported: %#v", report)
	}

	// The record survives with its artifact; only the processed mark is
	// withheld.
	got, _ := e.store.Load()
	if len(got.Episodes) != 1 {
		t.Fatalf("unresolved record dropped: %#v", got.Episodes)
	}
	if len(got.Processed) != 0 {
		t.Fatalf("processed must stay empty: %v", got.Processed)
	}
}
