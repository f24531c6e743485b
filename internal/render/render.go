// Package render writes the static site: per-episode transcript pages, the
// index, the RSS feed and the stylesheet. Episode content is taken from the
// ledger's first-class segment model; rendered markup is never parsed back.
package render

import (
	"bytes"
	"embed"
	"encoding/xml"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"podtext/internal/fileutil"
	"podtext/internal/ledger"
	"podtext/internal/logging"
)

//go:embed templates/*.html templates/*.xml templates/*.css
var templateFS embed.FS

// rssItemLimit bounds how many episodes the feed carries.
const rssItemLimit = 20

// Site is the channel-level metadata rendered into the index and feed.
type Site struct {
	Title       string
	Description string
	BaseURL     string
}

// Renderer writes artifacts under one output directory.
type Renderer struct {
	outputDir string
	site      Site
	logger    *slog.Logger
	policy    *bluemonday.Policy

	episodeTmpl *template.Template
	indexTmpl   *template.Template
	rssTmpl     *texttemplate.Template
}

// New builds a renderer. Template parse failures are programmer errors and
// surface immediately.
func New(outputDir string, site Site, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Renderer{
		outputDir: outputDir,
		site:      site,
		logger:    logging.WithComponent(logger, "render"),
		policy:    bluemonday.StrictPolicy(),
	}

	var err error
	if r.episodeTmpl, err = template.ParseFS(templateFS, "templates/episode.html"); err != nil {
		return nil, fmt.Errorf("parse episode template: %w", err)
	}
	if r.indexTmpl, err = template.ParseFS(templateFS, "templates/index.html"); err != nil {
		return nil, fmt.Errorf("parse index template: %w", err)
	}
	funcs := texttemplate.FuncMap{
		"xml":     escapeXML,
		"pubdate": formatPubDate,
	}
	if r.rssTmpl, err = texttemplate.New("rss.xml").Funcs(funcs).ParseFS(templateFS, "templates/rss.xml"); err != nil {
		return nil, fmt.Errorf("parse rss template: %w", err)
	}
	return r, nil
}

// EpisodesDir returns the directory holding per-episode pages.
func (r *Renderer) EpisodesDir() string {
	return filepath.Join(r.outputDir, "episodes")
}

// EpisodePath returns the artifact location for a catalog key.
func (r *Renderer) EpisodePath(feedSlug, slug string) string {
	return filepath.Join(r.EpisodesDir(), feedSlug, slug+".html")
}

// RenderEpisode writes the transcript page for one episode and returns its
// path. The write is atomic so a crash never leaves a truncated page that
// the size check would then have to catch.
func (r *Renderer) RenderEpisode(ep ledger.Episode) (string, error) {
	path := r.EpisodePath(ep.FeedSlug, ep.Slug)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create episode dir: %w", err)
	}

	var buf bytes.Buffer
	data := struct {
		Site    Site
		Episode ledger.Episode
	}{Site: r.site, Episode: ep}
	if err := r.episodeTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render episode %s: %w", ep.Key(), err)
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write episode %s: %w", ep.Key(), err)
	}

	r.logger.Debug("episode rendered",
		logging.String(logging.FieldSlug, ep.Slug),
		logging.Int("bytes", buf.Len()),
	)
	return path, nil
}

// VerifyArtifact checks that an episode page exists and is non-trivial.
// Pages below minBytes are treated the same as missing ones.
func (r *Renderer) VerifyArtifact(path string, minBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("artifact missing: %w", err)
	}
	if info.Size() < minBytes {
		return fmt.Errorf("artifact %s too small: %d bytes (minimum %d)", path, info.Size(), minBytes)
	}
	return nil
}

// Regenerate rebuilds the derived site surfaces from the ledger: the index
// over all episodes, the RSS feed over the newest items, and the stylesheet.
// Episode pages are not touched.
func (r *Renderer) Regenerate(l *ledger.Ledger) error {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var buf bytes.Buffer
	indexData := struct {
		Site     Site
		Episodes []ledger.Episode
	}{Site: r.site, Episodes: l.Episodes}
	if err := r.indexTmpl.Execute(&buf, indexData); err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(r.outputDir, "index.html"), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	items := l.Episodes
	if len(items) > rssItemLimit {
		items = items[:rssItemLimit]
	}
	buf.Reset()
	rssData := struct {
		Site      Site
		Episodes  []ledger.Episode
		BuildDate string
	}{Site: r.site, Episodes: items, BuildDate: time.Now().UTC().Format(time.RFC1123Z)}
	if err := r.rssTmpl.Execute(&buf, rssData); err != nil {
		return fmt.Errorf("render rss: %w", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(r.outputDir, "rss.xml"), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write rss: %w", err)
	}

	css, err := templateFS.ReadFile("templates/styles.css")
	if err != nil {
		return fmt.Errorf("read stylesheet: %w", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(r.outputDir, "styles.css"), css, 0o644); err != nil {
		return fmt.Errorf("write stylesheet: %w", err)
	}

	r.logger.Info("site regenerated",
		logging.Int("episodes", len(l.Episodes)),
		logging.Int("rss_items", len(items)),
	)
	return nil
}

// SanitizeSummary strips markup from feed-provided summary text.
func (r *Renderer) SanitizeSummary(summary string) string {
	return strings.TrimSpace(r.policy.Sanitize(summary))
}

func escapeXML(value string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(value)); err != nil {
		return ""
	}
	return buf.String()
}

// formatPubDate renders a stored YYYY-MM-DD date as an RFC 1123 pubDate.
// Unparseable dates pass through escaped rather than dropping the item.
func formatPubDate(published string) string {
	if t, err := time.Parse("2006-01-02", published); err == nil {
		return t.UTC().Format(time.RFC1123Z)
	}
	return escapeXML(published)
}
