package ingest

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// downloadAudio fetches the enclosure into the temp directory and returns
// the local path plus the MIME type to report to the provider. The caller
// owns the file and must remove it on every exit path.
func downloadAudio(ctx context.Context, client *http.Client, audioURL, tempDir, slug string) (string, string, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create temp dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build audio request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch audio: unexpected status %d", resp.StatusCode)
	}

	mimeType := audioMIMEType(resp.Header.Get("Content-Type"), audioURL)
	dest := filepath.Join(tempDir, slug+audioExtension(audioURL))

	out, err := os.Create(dest)
	if err != nil {
		return "", "", fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return "", "", fmt.Errorf("write audio file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", "", fmt.Errorf("close audio file: %w", err)
	}
	return dest, mimeType, nil
}

func audioMIMEType(contentType, audioURL string) string {
	if contentType != "" {
		if parsed, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(parsed, "audio/") {
			return parsed
		}
	}
	switch audioExtension(audioURL) {
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	default:
		return "audio/mpeg"
	}
}

func audioExtension(audioURL string) string {
	parsed, err := url.Parse(audioURL)
	if err != nil {
		return ".mp3"
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	switch ext {
	case ".mp3", ".m4a", ".ogg", ".wav", ".aac", ".flac":
		return ext
	default:
		return ".mp3"
	}
}
