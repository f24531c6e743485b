package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"podtext/internal/align"
	"podtext/internal/config"
	"podtext/internal/feeds"
	"podtext/internal/ledger"
	"podtext/internal/render"
	"podtext/internal/testsupport"
	"podtext/internal/transcribe"
)

type fakeTranscriber struct {
	calls   int
	failFor map[string]error
	result  transcribe.Result
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath, mimeType string) (transcribe.Result, error) {
	f.calls++
	if err, ok := f.failFor[filepath.Base(audioPath)]; ok {
		return transcribe.Result{}, err
	}
	return f.result, nil
}

func (f *fakeTranscriber) SuggestSpeakerNames(ctx context.Context, transcript string) (map[string]string, error) {
	return nil, errors.New("naming unavailable")
}

func defaultResult() transcribe.Result {
	return transcribe.Result{
		Language: "en",
		Segments: []transcribe.Segment{
			{Speaker: "SPEAKER_00", Start: 0, End: 4, Text: "Welcome to the show."},
		},
		Words: []align.Word{
			{Text: "Welcome", Start: 0, End: 1},
			{Text: "to", Start: 1, End: 1.5},
			{Text: "the", Start: 1.5, End: 2},
			{Text: "show.", Start: 2, End: 4},
		},
		Turns: []align.Turn{
			{Speaker: "SPEAKER_00", Start: 0, End: 4},
		},
	}
}

func entryXML(guid, title, audioPath string) string {
	item := `<item><guid>` + guid + `</guid><title>` + title + `</title><pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate>`
	if audioPath != "" {
		item += `<enclosure url="AUDIO" length="10" type="audio/mpeg"/>`
	}
	return item + `</item>`
}

func TestRunCommitsEpisode(t *testing.T) {
	entries := entryXML("guid-1", "Pilot", "audio")
	controller, store, _, cfg := newFixtureWithServer(t, entries)

	summary, err := controller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Committed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %#v", summary)
	}

	l, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !l.IsProcessed("guid-1") {
		t.Fatal("guid not marked processed")
	}
	ep, ok := l.FindEpisode("example-show", "pilot")
	if !ok {
		t.Fatal("episode record missing")
	}
	if ep.GUID != "guid-1" || ep.Language != "en" {
		t.Fatalf("unexpected record: %#v", ep)
	}
	if len(ep.Segments) != 1 || ep.Segments[0].Speaker != "SPEAKER_00" {
		t.Fatalf("unexpected segments: %#v", ep.Segments)
	}

	artifact := filepath.Join(cfg.Paths.OutputDir, "episodes", "example-show", "pilot.html")
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "index.html")); err != nil {
		t.Fatalf("index missing: %v", err)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	entries := entryXML("guid-1", "Pilot", "audio")
	controller, store, transcriber, _ := newFixtureWithServer(t, entries)

	if _, err := controller.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := store.Load()

	summary, err := controller.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Committed != 0 || summary.Skipped != 1 {
		t.Fatalf("second run should skip: %#v", summary)
	}
	if transcriber.calls != 1 {
		t.Fatalf("transcriber called %d times, want 1", transcriber.calls)
	}

	second, _ := store.Load()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ledger changed across idempotent runs:\n%#v\n%#v", first, second)
	}
}

func TestRunSelfHealsMissingArtifact(t *testing.T) {
	entries := entryXML("guid-1", "Pilot", "audio")
	controller, store, transcriber, cfg := newFixtureWithServer(t, entries)

	if _, err := controller.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	artifact := filepath.Join(cfg.Paths.OutputDir, "episodes", "example-show", "pilot.html")
	if err := os.Remove(artifact); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}

	summary, err := controller.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Committed != 1 {
		t.Fatalf("expected re-processing, got %#v", summary)
	}
	if transcriber.calls != 2 {
		t.Fatalf("transcriber called %d times, want 2", transcriber.calls)
	}
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("artifact not restored: %v", err)
	}
	l, _ := store.Load()
	if len(l.Episodes) != 1 {
		t.Fatalf("re-processing duplicated the record: %d episodes", len(l.Episodes))
	}
}

func TestRunIsolatesEntryFailure(t *testing.T) {
	entries := entryXML("guid-bad", "Broken One", "audio") + entryXML("guid-good", "Working Two", "audio")
	controller, store, transcriber, _ := newFixtureWithServer(t, entries)
	transcriber.failFor = map[string]error{"broken-one.mp3": errors.New("provider exploded")}

	summary, err := controller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Committed != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %#v", summary)
	}

	l, _ := store.Load()
	if !l.IsFailed("guid-bad") {
		t.Fatal("failing guid not recorded")
	}
	if !l.IsProcessed("guid-good") {
		t.Fatal("sibling entry did not commit")
	}
	for _, guid := range l.Processed {
		if l.IsFailed(guid) {
			t.Fatalf("guid %s in both processed and failed", guid)
		}
	}
}

func TestRunSkipsPreviouslyFailed(t *testing.T) {
	entries := entryXML("guid-1", "Pilot", "audio")
	controller, store, transcriber, _ := newFixtureWithServer(t, entries)

	l := ledger.NewLedger()
	l.MarkFailed("guid-1")
	if err := store.Save(l); err != nil {
		t.Fatalf("Save: %v", err)
	}

	summary, err := controller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 || summary.Committed != 0 {
		t.Fatalf("failed guid was not skipped: %#v", summary)
	}
	if transcriber.calls != 0 {
		t.Fatalf("transcriber must not run for failed guids, called %d times", transcriber.calls)
	}
}

func TestRunIgnoresEntriesWithoutAudio(t *testing.T) {
	entries := entryXML("guid-1", "No Audio Here", "")
	controller, store, _, _ := newFixtureWithServer(t, entries)

	summary, err := controller.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Ignored != 1 {
		t.Fatalf("expected ignored entry: %#v", summary)
	}

	l, _ := store.Load()
	if len(l.Processed) != 0 || len(l.Failed) != 0 || len(l.Episodes) != 0 {
		t.Fatalf("ignored entry mutated the ledger: %#v", l)
	}
}

func TestRunReleasesTempAudio(t *testing.T) {
	entries := entryXML("guid-bad", "Broken One", "audio") + entryXML("guid-good", "Working Two", "audio")
	controller, _, transcriber, cfg := newFixtureWithServer(t, entries)
	transcriber.failFor = map[string]error{"broken-one.mp3": errors.New("provider exploded")}

	if _, err := controller.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	leftovers, err := os.ReadDir(cfg.Paths.TempDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("temp audio not released: %v", leftovers)
	}
}

// newFixtureWithServer builds feed entry XML whose AUDIO placeholders point
// back at the fixture's own server.
func newFixtureWithServer(t *testing.T, entries string) (*Controller, *ledger.Store, *fakeTranscriber, *config.Config) {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	resolved := strings.ReplaceAll(entries, "AUDIO", server.URL+"/audio/episode.mp3")
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Example Show</title>%s</channel></rss>`, resolved)
	})
	mux.HandleFunc("/audio/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("fake audio bytes"))
	})

	cfg := testsupport.NewConfig(t,
		testsupport.WithFeeds(config.Feed{Name: "Example Show", URL: server.URL + "/feed.xml"}),
		testsupport.WithMinArtifactBytes(100),
	)

	store := ledger.NewStore(cfg.Paths.LedgerPath)
	fetcher := feeds.NewFetcher(nil, feeds.WithHTTPClient(server.Client()))
	renderer, err := render.New(cfg.Paths.OutputDir, render.Site{Title: "Test"}, nil)
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	transcriber := &fakeTranscriber{result: defaultResult()}

	controller := New(cfg, store, fetcher, transcriber, renderer, nil,
		WithAudioClient(server.Client()),
	)
	return controller, store, transcriber, cfg
}
