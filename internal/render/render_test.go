package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podtext/internal/ledger"
)

func newTestRenderer(t *testing.T) (*Renderer, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := New(dir, Site{
		Title:       "Transcripts",
		Description: "Podcast transcripts",
		BaseURL:     "https://example.org/podtext",
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, dir
}

func sampleEpisode() ledger.Episode {
	return ledger.Episode{
		GUID:          "guid-1",
		Title:         "Pilot & Friends",
		PublishedDate: "2026-01-02",
		Slug:          "pilot-friends",
		FeedName:      "Example Show",
		FeedSlug:      "example-show",
		Language:      "en",
		Transcript:    "Host: Welcome back.",
		Segments: []ledger.SpeakerSegment{
			{Speaker: "Host", Start: 0, End: 3.5, StartLabel: "00:00", Text: "Welcome back."},
			{Speaker: "Guest", Start: 3.5, End: 6, StartLabel: "00:03", Text: "Glad to be here."},
		},
	}
}

func TestRenderEpisode(t *testing.T) {
	r, dir := newTestRenderer(t)

	path, err := r.RenderEpisode(sampleEpisode())
	if err != nil {
		t.Fatalf("RenderEpisode: %v", err)
	}
	want := filepath.Join(dir, "episodes", "example-show", "pilot-friends.html")
	if path != want {
		t.Fatalf("unexpected path %q", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	page := string(content)
	for _, fragment := range []string{
		"Pilot &amp; Friends",
		"<!-- transcript:begin -->",
		"<!-- transcript:end -->",
		`<span class="speaker">Host</span>`,
		`<span class="timestamp">00:03</span>`,
		"Glad to be here.",
		`lang="en"`,
	} {
		if !strings.Contains(page, fragment) {
			t.Errorf("episode page missing %q", fragment)
		}
	}
}

func TestRenderEpisodeEscapesScript(t *testing.T) {
	r, _ := newTestRenderer(t)

	ep := sampleEpisode()
	ep.Segments[0].Text = `<script>alert("x")</script>`
	path, err := r.RenderEpisode(ep)
	if err != nil {
		t.Fatalf("RenderEpisode: %v", err)
	}
	content, _ := os.ReadFile(path)
	if strings.Contains(string(content), "<script>") {
		t.Fatal("segment text not escaped")
	}
}

func TestVerifyArtifact(t *testing.T) {
	r, dir := newTestRenderer(t)

	path := filepath.Join(dir, "page.html")
	if err := r.VerifyArtifact(path, 100); err == nil {
		t.Fatal("expected error for missing artifact")
	}

	if err := os.WriteFile(path, []byte("tiny"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := r.VerifyArtifact(path, 100); err == nil {
		t.Fatal("expected error for undersized artifact")
	}

	if err := os.WriteFile(path, []byte(strings.Repeat("x", 200)), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := r.VerifyArtifact(path, 100); err != nil {
		t.Fatalf("VerifyArtifact: %v", err)
	}
}

func TestRegenerate(t *testing.T) {
	r, dir := newTestRenderer(t)

	l := ledger.NewLedger()
	for i := 0; i < 25; i++ {
		ep := sampleEpisode()
		ep.GUID = "guid-" + strings.Repeat("x", i+1)
		ep.Slug = "episode-" + strings.Repeat("x", i+1)
		l.UpsertEpisode(ep)
	}

	if err := r.Regenerate(l); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	index, err := os.ReadFile(filepath.Join(dir, "index.html"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if got := strings.Count(string(index), "<li>"); got != 25 {
		t.Fatalf("index should list all episodes, got %d items", got)
	}

	rss, err := os.ReadFile(filepath.Join(dir, "rss.xml"))
	if err != nil {
		t.Fatalf("read rss: %v", err)
	}
	if got := strings.Count(string(rss), "<item>"); got != rssItemLimit {
		t.Fatalf("rss should carry %d items, got %d", rssItemLimit, got)
	}
	if !strings.Contains(string(rss), "Pilot &amp; Friends") {
		t.Fatal("rss title not escaped")
	}
	if !strings.Contains(string(rss), "Fri, 02 Jan 2026") {
		t.Fatal("pubDate not formatted from stored date")
	}

	if _, err := os.Stat(filepath.Join(dir, "styles.css")); err != nil {
		t.Fatalf("stylesheet not written: %v", err)
	}
}

func TestRegenerateEmptyLedger(t *testing.T) {
	r, dir := newTestRenderer(t)
	if err := r.Regenerate(ledger.NewLedger()); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	index, _ := os.ReadFile(filepath.Join(dir, "index.html"))
	if !strings.Contains(string(index), "No episodes yet.") {
		t.Fatal("empty state not rendered")
	}
}

func TestSanitizeSummary(t *testing.T) {
	r, _ := newTestRenderer(t)
	got := r.SanitizeSummary(`<p>Hello <a href="https://x">world</a><script>evil()</script></p>`)
	if strings.Contains(got, "<") {
		t.Fatalf("markup survived sanitization: %q", got)
	}
	if !strings.Contains(got, "Hello") || !strings.Contains(got, "world") {
		t.Fatalf("text content lost: %q", got)
	}
}
