package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"podtext/internal/align"
)

const (
	defaultBaseURL      = "https://generativelanguage.googleapis.com"
	defaultModel        = "gemini-3-flash-preview"
	defaultHTTPTimeout  = 300 * time.Second
	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 150
	defaultRetries      = 3
	defaultRetryDelay   = 5 * time.Second
)

// Config captures the runtime settings required to talk to the provider.
type Config struct {
	APIKey              string
	BaseURL             string
	Model               string
	TimeoutSeconds      int
	PollIntervalSeconds int
	RetryAttempts       int
	RetryDelaySeconds   int
}

// Segment is one speaker-attributed span of provider output.
type Segment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// Result is a completed transcription. Words and Turns are present only
// when the provider produced word-level timings; callers prefer re-deriving
// segments from them over trusting Segments directly.
type Result struct {
	Language string
	Segments []Segment
	Words    []align.Word
	Turns    []align.Turn
}

// Client wraps the Gemini file upload and generation endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryAttempts int
	retryDelay    time.Duration
	pollInterval  time.Duration
	maxPolls      int
	sleeper       func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how retry and poll sleeps are performed (useful for
// tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithMaxPolls caps how many times a pending upload is polled before the
// attempt is abandoned.
func WithMaxPolls(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPolls = n
		}
	}
}

// NewClient constructs a provider client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:   strings.TrimSpace(cfg.Model),
		},
		httpClient:    &http.Client{Timeout: timeout},
		retryAttempts: defaultRetries,
		retryDelay:    defaultRetryDelay,
		pollInterval:  defaultPollInterval,
		maxPolls:      defaultMaxPolls,
	}
	if cfg.RetryAttempts > 0 {
		client.retryAttempts = cfg.RetryAttempts
	}
	if cfg.RetryDelaySeconds > 0 {
		client.retryDelay = time.Duration(cfg.RetryDelaySeconds) * time.Second
	}
	if cfg.PollIntervalSeconds > 0 {
		client.pollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("transcribe: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type payloadError struct {
	Op  string
	Err error
}

func (e *payloadError) Error() string {
	return fmt.Sprintf("transcribe: %s: %v", e.Op, e.Err)
}

func (e *payloadError) Unwrap() error { return e.Err }

// Transcribe runs the full provider exchange for one audio file. Transient
// failures (rate limits, server errors, malformed payloads) are retried with
// a fixed delay up to the configured attempt cap; exhausting the cap returns
// the last error. The uploaded server-side file is deleted on every path.
func (c *Client) Transcribe(ctx context.Context, audioPath, mimeType string) (Result, error) {
	var empty Result
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return empty, errors.New("transcribe: api key required")
	}
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}

	attempts := c.retryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := c.transcribeOnce(ctx, audioPath, mimeType)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt >= attempts || !c.shouldRetry(ctx, err) {
			break
		}
		delay := c.retryDelay
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter > delay {
			delay = statusErr.RetryAfter
		}
		if err := c.sleep(ctx, delay); err != nil {
			return empty, err
		}
	}
	return empty, lastErr
}

func (c *Client) transcribeOnce(ctx context.Context, audioPath, mimeType string) (Result, error) {
	var empty Result

	file, err := c.uploadFile(ctx, audioPath, mimeType)
	if err != nil {
		return empty, err
	}
	defer c.deleteFile(file.Name)

	file, err = c.awaitActive(ctx, file)
	if err != nil {
		return empty, err
	}

	content, err := c.generate(ctx, []part{
		{FileData: &fileData{FileURI: file.URI, MimeType: mimeType}},
		{Text: transcriptionPrompt},
	})
	if err != nil {
		return empty, err
	}

	var payload struct {
		Language string    `json:"language"`
		Segments []Segment `json:"segments"`
		Words    []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
		Turns []struct {
			Speaker string  `json:"speaker"`
			Start   float64 `json:"start"`
			End     float64 `json:"end"`
		} `json:"turns"`
	}
	if err := DecodeJSON(content, &payload); err != nil {
		return empty, &payloadError{Op: "parse transcript payload", Err: err}
	}
	if len(payload.Segments) == 0 {
		return empty, &payloadError{Op: "parse transcript payload", Err: errors.New("no segments")}
	}

	result := Result{
		Language: strings.TrimSpace(payload.Language),
		Segments: payload.Segments,
	}
	for _, w := range payload.Words {
		result.Words = append(result.Words, align.Word{Text: w.Word, Start: w.Start, End: w.End})
	}
	for _, t := range payload.Turns {
		result.Turns = append(result.Turns, align.Turn{Speaker: t.Speaker, Start: t.Start, End: t.End})
	}
	return result, nil
}

// SuggestSpeakerNames asks the provider to map placeholder labels to real
// names found in the transcript. Callers treat any error as "no mapping";
// the underlying segments are never at risk.
func (c *Client) SuggestSpeakerNames(ctx context.Context, transcript string) (map[string]string, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, errors.New("transcribe: empty transcript")
	}
	content, err := c.generate(ctx, []part{{Text: speakerNamesPrompt + transcript}})
	if err != nil {
		return nil, err
	}
	names := map[string]string{}
	if err := DecodeJSON(content, &names); err != nil {
		return nil, &payloadError{Op: "parse speaker names", Err: err}
	}
	return names, nil
}

type fileData struct {
	FileURI  string `json:"file_uri"`
	MimeType string `json:"mime_type"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type remoteFile struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
}

func (c *Client) uploadFile(ctx context.Context, audioPath, mimeType string) (remoteFile, error) {
	var empty remoteFile

	f, err := os.Open(audioPath)
	if err != nil {
		return empty, fmt.Errorf("transcribe: open audio: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return empty, fmt.Errorf("transcribe: stat audio: %w", err)
	}

	endpoint, err := url.JoinPath(c.cfg.BaseURL, "/upload/v1beta/files")
	if err != nil {
		return empty, fmt.Errorf("transcribe: build upload url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, f)
	if err != nil {
		return empty, fmt.Errorf("transcribe: upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")
	req.Header.Set("Content-Type", mimeType)

	var response struct {
		File remoteFile `json:"file"`
	}
	if err := c.doJSON(req, &response); err != nil {
		return empty, err
	}
	if response.File.Name == "" {
		return empty, &payloadError{Op: "upload audio", Err: errors.New("no file name in response")}
	}
	return response.File, nil
}

// awaitActive polls the uploaded file until the provider finishes server-side
// processing.
func (c *Client) awaitActive(ctx context.Context, file remoteFile) (remoteFile, error) {
	for polls := 0; ; polls++ {
		switch file.State {
		case "ACTIVE":
			return file, nil
		case "FAILED":
			return file, &payloadError{Op: "process audio", Err: fmt.Errorf("remote file %s failed", file.Name)}
		}
		if polls >= c.maxPolls {
			return file, &payloadError{Op: "process audio", Err: fmt.Errorf("remote file %s not active after %d polls", file.Name, polls)}
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return file, err
		}

		endpoint, err := url.JoinPath(c.cfg.BaseURL, "/v1beta/", file.Name)
		if err != nil {
			return file, fmt.Errorf("transcribe: build poll url: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return file, fmt.Errorf("transcribe: poll request: %w", err)
		}
		req.Header.Set("x-goog-api-key", c.cfg.APIKey)

		var polled remoteFile
		if err := c.doJSON(req, &polled); err != nil {
			return file, err
		}
		if polled.URI == "" {
			polled.URI = file.URI
		}
		file = polled
	}
}

func (c *Client) generate(ctx context.Context, parts []part) (string, error) {
	body := map[string]any{
		"contents": []map[string]any{
			{"parts": parts},
		},
		"generationConfig": map[string]any{
			"response_mime_type": "application/json",
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("transcribe: encode request: %w", err)
	}

	endpoint, err := url.JoinPath(c.cfg.BaseURL, "/v1beta/models/", c.cfg.Model+":generateContent")
	if err != nil {
		return "", fmt.Errorf("transcribe: build generate url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("transcribe: generate request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.doJSON(req, &response); err != nil {
		return "", err
	}
	if response.Error != nil {
		return "", &payloadError{Op: "generate", Err: errors.New(strings.TrimSpace(response.Error.Message))}
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", &payloadError{Op: "generate", Err: errors.New("empty candidates")}
	}
	content := strings.TrimSpace(response.Candidates[0].Content.Parts[0].Text)
	if content == "" {
		return "", &payloadError{Op: "generate", Err: errors.New("empty content")}
	}
	return content, nil
}

// deleteFile removes the uploaded server-side file. Best effort: deletion
// failures must never fail a transcription that already has its payload, so
// the request uses its own deadline and errors are swallowed.
func (c *Client) deleteFile(name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	endpoint, err := url.JoinPath(c.cfg.BaseURL, "/v1beta/", name)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return
	}
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

func (c *Client) doJSON(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcribe: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("transcribe: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("transcribe: decode response: %w", err)
	}
	return nil
}

func (c *Client) shouldRetry(ctx context.Context, err error) bool {
	if err == nil || ctx == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Malformed or empty payloads are treated as transient model behavior.
	var pErr *payloadError
	if errors.As(err, &pErr) {
		return true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
