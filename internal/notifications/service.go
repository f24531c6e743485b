package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "podtext/1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyEpisodeProcessed(ctx context.Context, feedName, title string) error
	NotifyEpisodeFailed(ctx context.Context, feedName, title string, cause error) error
	NotifyRunCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when a topic is
// configured; otherwise a noop implementation is returned.
func NewService(topic string, requestTimeout time.Duration) Service {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return noopService{}
	}
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyEpisodeProcessed(ctx context.Context, feedName, title string) error {
	feedName = strings.TrimSpace(feedName)
	title = strings.TrimSpace(title)
	data := payload{
		title:   "podtext - Episode Transcribed",
		message: fmt.Sprintf("New transcript: %s (%s)", title, feedName),
		tags:    []string{"podtext", "episode", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyEpisodeFailed(ctx context.Context, feedName, title string, cause error) error {
	feedName = strings.TrimSpace(feedName)
	title = strings.TrimSpace(title)
	reason := "unknown"
	if cause != nil {
		reason = strings.TrimSpace(cause.Error())
	}
	data := payload{
		title:   "podtext - Episode Failed",
		message: fmt.Sprintf("Failed: %s (%s)\n%s", title, feedName, reason),
		tags:    []string{"podtext", "episode", "failed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "podtext - Run Complete"
		message = fmt.Sprintf("Ingestion complete: %d episodes processed in %s", processed, durationText)
	} else {
		title = "podtext - Run Complete (with errors)"
		message = fmt.Sprintf("Ingestion complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"podtext", "run", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "podtext - Error",
		message:  builder.String(),
		tags:     []string{"podtext", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "podtext - Test",
		message:  "Notification system test",
		tags:     []string{"podtext", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyEpisodeProcessed(context.Context, string, string) error        { return nil }
func (noopService) NotifyEpisodeFailed(context.Context, string, string, error) error    { return nil }
func (noopService) NotifyRunCompleted(context.Context, int, int, time.Duration) error   { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
