package ledger

import "strings"

// SpeakerSegment is one speaker-attributed span of the transcript as stored
// on an episode record.
type SpeakerSegment struct {
	Speaker    string  `json:"speaker"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	StartLabel string  `json:"start_label"`
	Text       string  `json:"text"`
}

// Episode is one rendered catalog entry. GUID is the remote identifier the
// entry was ingested under; it is stored directly so repairs never have to
// re-derive identity from slugs.
type Episode struct {
	GUID          string           `json:"guid,omitempty"`
	Title         string           `json:"title"`
	PublishedDate string           `json:"published_date"`
	Slug          string           `json:"slug"`
	FeedName      string           `json:"feed_name"`
	FeedSlug      string           `json:"feed_slug"`
	FeedImage     string           `json:"feed_image,omitempty"`
	Summary       string           `json:"summary,omitempty"`
	AudioURL      string           `json:"audio_url,omitempty"`
	Language      string           `json:"language,omitempty"`
	Transcript    string           `json:"transcript,omitempty"`
	Segments      []SpeakerSegment `json:"segments,omitempty"`
}

// Key returns the catalog identity of the episode. Slugs are only unique
// within a feed, so the feed slug is part of the key.
func (e Episode) Key() string {
	return e.FeedSlug + "/" + e.Slug
}

// Ledger holds the persisted pipeline state: which remote identifiers were
// processed or permanently failed, and the episode catalog newest-first.
type Ledger struct {
	Processed []string  `json:"processed"`
	Failed    []string  `json:"failed"`
	Episodes  []Episode `json:"episodes"`
}

// NewLedger returns an empty, usable ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Processed: []string{},
		Failed:    []string{},
		Episodes:  []Episode{},
	}
}

// IsProcessed reports whether guid is in the processed set.
func (l *Ledger) IsProcessed(guid string) bool {
	return contains(l.Processed, guid)
}

// IsFailed reports whether guid is in the failed set.
func (l *Ledger) IsFailed(guid string) bool {
	return contains(l.Failed, guid)
}

// MarkProcessed adds guid to the processed set. The processed and failed
// sets stay disjoint: a guid marked processed leaves the failed set.
func (l *Ledger) MarkProcessed(guid string) {
	guid = strings.TrimSpace(guid)
	if guid == "" {
		return
	}
	l.Failed = remove(l.Failed, guid)
	if !contains(l.Processed, guid) {
		l.Processed = append(l.Processed, guid)
	}
}

// MarkFailed adds guid to the failed set and removes it from processed.
func (l *Ledger) MarkFailed(guid string) {
	guid = strings.TrimSpace(guid)
	if guid == "" {
		return
	}
	l.Processed = remove(l.Processed, guid)
	if !contains(l.Failed, guid) {
		l.Failed = append(l.Failed, guid)
	}
}

// UnmarkProcessed removes guid from the processed set so the next ingestion
// run treats the entry as pending again.
func (l *Ledger) UnmarkProcessed(guid string) {
	l.Processed = remove(l.Processed, guid)
}

// UnmarkFailed removes guid from the failed set and reports whether it was
// present, making the entry eligible for another attempt.
func (l *Ledger) UnmarkFailed(guid string) bool {
	if !contains(l.Failed, guid) {
		return false
	}
	l.Failed = remove(l.Failed, guid)
	return true
}

// ClearFailed empties the failed set, making every failed entry eligible for
// another attempt.
func (l *Ledger) ClearFailed() int {
	n := len(l.Failed)
	l.Failed = []string{}
	return n
}

// UpsertEpisode prepends the episode to the catalog, preserving newest-first
// order. An existing record with the same (feed_slug, slug) is replaced in
// place rather than duplicated; duplicate titles within one feed therefore
// converge on a single record.
func (l *Ledger) UpsertEpisode(ep Episode) {
	for i := range l.Episodes {
		if l.Episodes[i].Key() == ep.Key() {
			l.Episodes[i] = ep
			return
		}
	}
	l.Episodes = append([]Episode{ep}, l.Episodes...)
}

// RemoveEpisode deletes the record with the given catalog key and returns it.
func (l *Ledger) RemoveEpisode(feedSlug, slug string) (Episode, bool) {
	key := feedSlug + "/" + slug
	for i := range l.Episodes {
		if l.Episodes[i].Key() == key {
			removed := l.Episodes[i]
			l.Episodes = append(l.Episodes[:i], l.Episodes[i+1:]...)
			return removed, true
		}
	}
	return Episode{}, false
}

// FindEpisode returns the record with the given catalog key.
func (l *Ledger) FindEpisode(feedSlug, slug string) (Episode, bool) {
	key := feedSlug + "/" + slug
	for i := range l.Episodes {
		if l.Episodes[i].Key() == key {
			return l.Episodes[i], true
		}
	}
	return Episode{}, false
}

func (l *Ledger) normalize() {
	if l.Processed == nil {
		l.Processed = []string{}
	}
	// Older ledgers predate failure tracking and omit the key entirely.
	if l.Failed == nil {
		l.Failed = []string{}
	}
	if l.Episodes == nil {
		l.Episodes = []Episode{}
	}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func remove(values []string, value string) []string {
	out := values[:0]
	for _, v := range values {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
