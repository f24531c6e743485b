package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"podtext/internal/align"
	"podtext/internal/config"
	"podtext/internal/feeds"
	"podtext/internal/ledger"
	"podtext/internal/logging"
	"podtext/internal/notifications"
	"podtext/internal/render"
	"podtext/internal/textutil"
	"podtext/internal/transcribe"
)

// Status is the terminal state of one remote entry for this run.
type Status string

const (
	// StatusCommitted means the artifact was rendered, verified and the
	// ledger advanced.
	StatusCommitted Status = "committed"
	// StatusFailed means the pipeline failed terminally for this entry.
	StatusFailed Status = "failed"
	// StatusSkipped means the ledger already accounted for the entry.
	StatusSkipped Status = "skipped"
	// StatusIgnored means the entry carried no audio; no record is kept.
	StatusIgnored Status = "ignored"
)

// Outcome reports what happened to one entry.
type Outcome struct {
	GUID   string
	Title  string
	Status Status
	Err    error
}

// Transcriber is the provider surface the controller depends on.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, mimeType string) (transcribe.Result, error)
	SuggestSpeakerNames(ctx context.Context, transcript string) (map[string]string, error)
}

// Syncer publishes committed changes; gitsync implements it.
type Syncer interface {
	Sync(ctx context.Context, message string) error
}

// Indexer keeps the transcript search index current; index.Store implements
// it.
type Indexer interface {
	Upsert(ctx context.Context, ep ledger.Episode) error
}

// Controller runs ingestion for the configured feeds.
type Controller struct {
	cfg         *config.Config
	store       *ledger.Store
	fetcher     *feeds.Fetcher
	transcriber Transcriber
	renderer    *render.Renderer
	logger      *slog.Logger

	audioClient *http.Client
	indexer     Indexer
	syncer      Syncer
	notifier    notifications.Service
}

// Option customizes a Controller.
type Option func(*Controller)

// WithAudioClient overrides the HTTP client used for enclosure downloads.
func WithAudioClient(client *http.Client) Option {
	return func(c *Controller) {
		if client != nil {
			c.audioClient = client
		}
	}
}

// WithIndexer wires the transcript search index.
func WithIndexer(indexer Indexer) Option {
	return func(c *Controller) {
		c.indexer = indexer
	}
}

// WithSyncer wires post-commit publishing.
func WithSyncer(syncer Syncer) Option {
	return func(c *Controller) {
		c.syncer = syncer
	}
}

// WithNotifier wires push notifications.
func WithNotifier(notifier notifications.Service) Option {
	return func(c *Controller) {
		if notifier != nil {
			c.notifier = notifier
		}
	}
}

// New builds an ingestion controller.
func New(cfg *config.Config, store *ledger.Store, fetcher *feeds.Fetcher, transcriber Transcriber, renderer *render.Renderer, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Controller{
		cfg:         cfg,
		store:       store,
		fetcher:     fetcher,
		transcriber: transcriber,
		renderer:    renderer,
		logger:      logging.WithComponent(logger, "ingest"),
		audioClient: &http.Client{Timeout: 10 * time.Minute},
		notifier:    notifications.NewService("", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IngestFeed processes the newest entries of one feed against the ledger.
// The ledger is persisted after every terminal outcome, so a crash mid-feed
// loses at most the entry in flight.
func (c *Controller) IngestFeed(ctx context.Context, l *ledger.Ledger, src feeds.Source) ([]Outcome, error) {
	bound := c.cfg.Ingest.MaxEntriesPerFeed
	feed, err := c.fetcher.Latest(ctx, src, bound)
	if err != nil {
		return nil, fmt.Errorf("ingest feed %s: %w", src.Name, err)
	}

	feedSlug := textutil.Slugify(src.Name)
	outcomes := make([]Outcome, 0, len(feed.Entries))

	for _, entry := range feed.Entries {
		outcome := c.ingestEntry(ctx, l, src, feed, feedSlug, entry)
		outcomes = append(outcomes, outcome)
		if ctx.Err() != nil {
			break
		}
	}
	return outcomes, nil
}

func (c *Controller) ingestEntry(ctx context.Context, l *ledger.Ledger, src feeds.Source, feed *feeds.Feed, feedSlug string, entry feeds.Entry) Outcome {
	outcome := Outcome{GUID: entry.GUID, Title: entry.Title}
	entryLog := c.logger.With(
		logging.String(logging.FieldFeed, src.Name),
		logging.String(logging.FieldGUID, entry.GUID),
	)

	if entry.GUID == "" {
		entryLog.Warn("entry has no usable identifier, ignoring", logging.String("title", entry.Title))
		outcome.Status = StatusIgnored
		return outcome
	}
	if l.IsFailed(entry.GUID) {
		entryLog.Debug("entry previously failed, skipping")
		outcome.Status = StatusSkipped
		return outcome
	}

	slug := textutil.Slugify(entry.Title)
	if l.IsProcessed(entry.GUID) {
		artifact := c.renderer.EpisodePath(feedSlug, slug)
		if err := c.renderer.VerifyArtifact(artifact, c.cfg.Ingest.MinArtifactBytes); err == nil {
			outcome.Status = StatusSkipped
			return outcome
		}
		// Processed but the artifact is gone or truncated: the read path
		// heals itself by treating the entry as pending again.
		entryLog.Warn("artifact missing for processed entry, re-processing",
			logging.String(logging.FieldSlug, slug),
		)
	}

	if entry.AudioURL == "" {
		entryLog.Info("entry has no audio enclosure, ignoring")
		outcome.Status = StatusIgnored
		return outcome
	}
	if slug == "" {
		entryLog.Warn("entry title yields empty slug, ignoring", logging.String("title", entry.Title))
		outcome.Status = StatusIgnored
		return outcome
	}

	ep, err := c.processEntry(ctx, src, feed, feedSlug, slug, entry)
	if err != nil {
		entryLog.Error("entry failed", logging.Error(err))
		l.MarkFailed(entry.GUID)
		if saveErr := c.store.Save(l); saveErr != nil {
			entryLog.Error("persist ledger after failure", logging.Error(saveErr))
		}
		if notifyErr := c.notifier.NotifyEpisodeFailed(ctx, src.Name, entry.Title, err); notifyErr != nil {
			entryLog.Debug("notify episode failed", logging.Error(notifyErr))
		}
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}

	l.MarkProcessed(entry.GUID)
	l.UpsertEpisode(ep)
	if err := c.store.Save(l); err != nil {
		// The artifact exists but the ledger did not advance; the next run
		// re-processes this guid, which is safe.
		entryLog.Error("persist ledger after commit", logging.Error(err))
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}

	if c.indexer != nil {
		if err := c.indexer.Upsert(ctx, ep); err != nil {
			entryLog.Warn("index transcript", logging.Error(err))
		}
	}
	if err := c.renderer.Regenerate(l); err != nil {
		entryLog.Warn("regenerate site", logging.Error(err))
	}
	if c.syncer != nil {
		if err := c.syncer.Sync(ctx, fmt.Sprintf("Add episode: %s", entry.Title)); err != nil {
			entryLog.Warn("sync output repository", logging.Error(err))
		}
	}
	if err := c.notifier.NotifyEpisodeProcessed(ctx, src.Name, entry.Title); err != nil {
		entryLog.Debug("notify episode processed", logging.Error(err))
	}

	entryLog.Info("episode committed", logging.String(logging.FieldSlug, slug))
	outcome.Status = StatusCommitted
	return outcome
}

// processEntry runs download, transcription, alignment, rendering and the
// artifact size check. The temporary audio file is removed on every path.
func (c *Controller) processEntry(ctx context.Context, src feeds.Source, feed *feeds.Feed, feedSlug, slug string, entry feeds.Entry) (ledger.Episode, error) {
	var empty ledger.Episode

	audioPath, mimeType, err := downloadAudio(ctx, c.audioClient, entry.AudioURL, c.cfg.Paths.TempDir, slug)
	if err != nil {
		return empty, err
	}
	defer os.Remove(audioPath)

	result, err := c.transcriber.Transcribe(ctx, audioPath, mimeType)
	if err != nil {
		return empty, err
	}

	segments := buildSegments(result)
	if len(segments) == 0 {
		return empty, fmt.Errorf("transcription produced no segments")
	}
	transcript := plainTranscript(segments)
	segments = c.enrichSpeakerNames(ctx, segments, transcript)
	transcript = plainTranscript(segments)

	ep := ledger.Episode{
		GUID:          entry.GUID,
		Title:         entry.Title,
		PublishedDate: publishedDate(entry.Published),
		Slug:          slug,
		FeedName:      src.Name,
		FeedSlug:      feedSlug,
		FeedImage:     feed.Image,
		Summary:       c.renderer.SanitizeSummary(entry.Summary),
		AudioURL:      entry.AudioURL,
		Language:      result.Language,
		Transcript:    transcript,
		Segments:      toLedgerSegments(segments),
	}

	artifact, err := c.renderer.RenderEpisode(ep)
	if err != nil {
		return empty, err
	}
	if err := c.renderer.VerifyArtifact(artifact, c.cfg.Ingest.MinArtifactBytes); err != nil {
		return empty, err
	}
	return ep, nil
}

// enrichSpeakerNames asks the provider to replace placeholder labels with
// real names. Best effort only: any failure keeps the original labels.
func (c *Controller) enrichSpeakerNames(ctx context.Context, segments []align.Segment, transcript string) []align.Segment {
	hasPlaceholder := false
	for _, seg := range segments {
		if strings.HasPrefix(seg.Speaker, "SPEAKER_") {
			hasPlaceholder = true
			break
		}
	}
	if !hasPlaceholder {
		return segments
	}

	names, err := c.transcriber.SuggestSpeakerNames(ctx, transcript)
	if err != nil {
		c.logger.Debug("speaker naming unavailable", logging.Error(err))
		return segments
	}
	return align.RenameSpeakers(segments, names)
}

// buildSegments prefers re-deriving segments from word timings and
// diarization turns; without word timings the provider's own segment
// grouping is used as-is.
func buildSegments(result transcribe.Result) []align.Segment {
	if len(result.Words) > 0 {
		return align.Attribute(result.Words, result.Turns)
	}
	segments := make([]align.Segment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		speaker := strings.TrimSpace(seg.Speaker)
		if speaker == "" {
			speaker = align.UnknownSpeaker
		}
		segments = append(segments, align.Segment{
			Speaker:    speaker,
			Start:      seg.Start,
			End:        seg.End,
			StartLabel: align.FormatTimestamp(seg.Start),
			Text:       text,
		})
	}
	return segments
}

func toLedgerSegments(segments []align.Segment) []ledger.SpeakerSegment {
	out := make([]ledger.SpeakerSegment, 0, len(segments))
	for _, seg := range segments {
		out = append(out, ledger.SpeakerSegment{
			Speaker:    seg.Speaker,
			Start:      seg.Start,
			End:        seg.End,
			StartLabel: seg.StartLabel,
			Text:       seg.Text,
		})
	}
	return out
}

func plainTranscript(segments []align.Segment) string {
	var builder strings.Builder
	for i, seg := range segments {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(seg.Speaker)
		builder.WriteString(": ")
		builder.WriteString(seg.Text)
	}
	return builder.String()
}

func publishedDate(published time.Time) string {
	if published.IsZero() {
		return time.Now().UTC().Format("2006-01-02")
	}
	return published.UTC().Format("2006-01-02")
}
