// Package feeds fetches podcast RSS/Atom feeds and converts them into the
// pipeline's entry model.
package feeds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"podtext/internal/logging"
)

// Source identifies one configured feed.
type Source struct {
	Name string
	URL  string
}

// Entry is one feed item reduced to what ingestion needs. GUID is never
// empty for a usable entry; AudioURL is empty when the item carries no audio
// enclosure.
type Entry struct {
	GUID      string
	Title     string
	Published time.Time
	AudioURL  string
	Summary   string
}

// Feed is a fetched feed: channel metadata plus entries in document order.
type Feed struct {
	Title   string
	Image   string
	Entries []Entry
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	logger       *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client used for fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header sent with fetch requests.
func WithUserAgent(agent string) Option {
	return func(f *Fetcher) {
		if agent != "" {
			f.userAgent = agent
		}
	}
}

// WithMaxBodyBytes caps how much of a feed document is read.
func WithMaxBodyBytes(limit int64) Option {
	return func(f *Fetcher) {
		if limit > 0 {
			f.maxBodyBytes = limit
		}
	}
}

// NewFetcher builds a fetcher with sane defaults.
func NewFetcher(logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	f := &Fetcher{
		client:       &http.Client{Timeout: 60 * time.Second},
		userAgent:    "podtext/1.0",
		maxBodyBytes: 10 << 20,
		logger:       logging.WithComponent(logger, "feeds"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads and parses one feed.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", src.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: unexpected status %d", src.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", src.Name, err)
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.Name, err)
	}

	feed := &Feed{
		Title:   strings.TrimSpace(parsed.Title),
		Entries: convertItems(parsed.Items),
	}
	if parsed.Image != nil {
		feed.Image = parsed.Image.URL
	}
	if feed.Title == "" {
		feed.Title = src.Name
	}

	f.logger.Debug("feed fetched",
		logging.String(logging.FieldFeed, src.Name),
		logging.Int("entries", len(feed.Entries)),
	)
	return feed, nil
}

// Latest fetches a feed and returns at most n entries from the top of the
// document, which podcast feeds publish newest-first.
func (f *Fetcher) Latest(ctx context.Context, src Source, n int) (*Feed, error) {
	feed, err := f.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(feed.Entries) > n {
		feed.Entries = feed.Entries[:n]
	}
	return feed, nil
}

func convertItems(items []*gofeed.Item) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entry := Entry{
			GUID:     strings.TrimSpace(item.GUID),
			Title:    strings.TrimSpace(item.Title),
			AudioURL: audioEnclosure(item),
			Summary:  strings.TrimSpace(item.Description),
		}
		// Some feeds omit guid; the link is the next most stable identifier.
		if entry.GUID == "" {
			entry.GUID = strings.TrimSpace(item.Link)
		}
		if item.PublishedParsed != nil {
			entry.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			entry.Published = *item.UpdatedParsed
		}
		entries = append(entries, entry)
	}
	return entries
}

func audioEnclosure(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(enc.Type), "audio/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}
