// Package notifications pushes import lifecycle events to an ntfy topic.
// Without a configured topic every call is a no-op.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"curator/internal/config"
)

const userAgent = "Curator-Go/1.0"

// Service defines the notification surface exposed to the import pipeline.
type Service interface {
	NotifyImportStarted(ctx context.Context, sourceURL string) error
	NotifyImportCompleted(ctx context.Context, title string) error
	NotifyReviewNeeded(ctx context.Context, title, reason string) error
	NotifyImportFailed(ctx context.Context, sourceURL, message string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
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

func (n *ntfyService) NotifyImportStarted(ctx context.Context, sourceURL string) error {
	return n.send(ctx, payload{
		title:   "Curator - Import Started",
		message: fmt.Sprintf("Importing: %s", strings.TrimSpace(sourceURL)),
		tags:    []string{"curator", "import", "started"},
	})
}

func (n *ntfyService) NotifyImportCompleted(ctx context.Context, title string) error {
	return n.send(ctx, payload{
		title:   "Curator - Import Complete",
		message: fmt.Sprintf("Added to library: %s", strings.TrimSpace(title)),
		tags:    []string{"curator", "import", "completed"},
	})
}

func (n *ntfyService) NotifyReviewNeeded(ctx context.Context, title, reason string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "unidentified item"
	}
	return n.send(ctx, payload{
		title:    "Curator - Review Needed",
		message:  fmt.Sprintf("Needs review (%s): %s", strings.TrimSpace(reason), title),
		tags:     []string{"curator", "inbox", "review"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyImportFailed(ctx context.Context, sourceURL, message string) error {
	return n.send(ctx, payload{
		title:    "Curator - Import Failed",
		message:  fmt.Sprintf("Failed: %s (%s)", strings.TrimSpace(sourceURL), strings.TrimSpace(message)),
		tags:     []string{"curator", "import", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:   "Curator - Test",
		message: "Test notification from curator",
		tags:    []string{"curator", "test"},
	})
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

func (noopService) NotifyImportStarted(context.Context, string) error { return nil }
func (noopService) NotifyImportCompleted(context.Context, string) error { return nil }
func (noopService) NotifyReviewNeeded(context.Context, string, string) error { return nil }
func (noopService) NotifyImportFailed(context.Context, string, string) error { return nil }
func (noopService) TestNotification(context.Context) error { return nil }
