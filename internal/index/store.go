// Package index maintains a SQLite search index over transcript text. The
// index is derived data: it can always be rebuilt from the ledger, so losing
// it never loses content.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"podtext/internal/ledger"
)

// Store manages the transcript index database.
type Store struct {
	db   *sql.DB
	path string
}

// Hit is one search result.
type Hit struct {
	FeedSlug      string
	Slug          string
	Title         string
	FeedName      string
	PublishedDate string
	Snippet       string
}

// Open initializes or connects to the index database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure index dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert records or replaces the transcript for one episode.
func (s *Store) Upsert(ctx context.Context, ep ledger.Episode) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO transcripts (
            feed_slug, slug, guid, title, feed_name, published_date,
            language, transcript, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (feed_slug, slug) DO UPDATE SET
            guid = excluded.guid,
            title = excluded.title,
            feed_name = excluded.feed_name,
            published_date = excluded.published_date,
            language = excluded.language,
            transcript = excluded.transcript,
            updated_at = excluded.updated_at`,
		ep.FeedSlug,
		ep.Slug,
		ep.GUID,
		ep.Title,
		ep.FeedName,
		ep.PublishedDate,
		ep.Language,
		ep.Transcript,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert transcript %s: %w", ep.Key(), err)
	}
	return nil
}

// Delete removes one episode's transcript from the index.
func (s *Store) Delete(ctx context.Context, feedSlug, slug string) error {
	_, err := s.db.ExecContext(
		ctx,
		"DELETE FROM transcripts WHERE feed_slug = ? AND slug = ?",
		feedSlug,
		slug,
	)
	if err != nil {
		return fmt.Errorf("delete transcript %s/%s: %w", feedSlug, slug, err)
	}
	return nil
}

// Count reports how many transcripts are indexed.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM transcripts")
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count transcripts: %w", err)
	}
	return count, nil
}

// Search returns episodes whose title or transcript contains the query,
// newest first, with a text snippet around the first transcript match.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT feed_slug, slug, title, feed_name, published_date, transcript
        FROM transcripts
        WHERE title LIKE ? ESCAPE '\' OR transcript LIKE ? ESCAPE '\'
        ORDER BY published_date DESC, slug ASC
        LIMIT ?`,
		pattern,
		pattern,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search transcripts: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		var transcript string
		if err := rows.Scan(&hit.FeedSlug, &hit.Slug, &hit.Title, &hit.FeedName, &hit.PublishedDate, &transcript); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hit.Snippet = snippet(transcript, query)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}
	return hits, nil
}

// Rebuild replaces the whole index with the ledger's episode catalog.
func (s *Store) Rebuild(ctx context.Context, l *ledger.Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM transcripts"); err != nil {
		return fmt.Errorf("clear transcripts: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, ep := range l.Episodes {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO transcripts (
                feed_slug, slug, guid, title, feed_name, published_date,
                language, transcript, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ep.FeedSlug,
			ep.Slug,
			ep.GUID,
			ep.Title,
			ep.FeedName,
			ep.PublishedDate,
			ep.Language,
			ep.Transcript,
			now,
		); err != nil {
			return fmt.Errorf("index transcript %s: %w", ep.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	return nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

// snippet extracts a window of transcript text around the first
// case-insensitive match.
func snippet(transcript, query string) string {
	const window = 60

	idx := strings.Index(strings.ToLower(transcript), strings.ToLower(query))
	if idx < 0 {
		if len(transcript) > 2*window {
			return transcript[:2*window] + "..."
		}
		return transcript
	}

	start := idx - window
	if start < 0 {
		start = 0
	}
	end := idx + len(query) + window
	if end > len(transcript) {
		end = len(transcript)
	}

	out := transcript[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(transcript) {
		out += "..."
	}
	return out
}
