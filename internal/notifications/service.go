package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"callwave/internal/config"
)

const userAgent = "Callwave/0.1.0"

// Service defines the notification surface exposed to the scheduler.
type Service interface {
	NotifyAnalysisCompleted(ctx context.Context, callID, sentiment string, attempts int) error
	NotifyAnalysisFailed(ctx context.Context, callID, reason string, attempts int) error
	NotifyDaemonStarted(ctx context.Context) error
	NotifyDaemonStopped(ctx context.Context, processed, failed int64) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.Notifications.RequestTimeoutDuration()
	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:       topic,
		client:         client,
		analysisEvents: cfg.Notifications.Analysis,
		errorEvents:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	analysisEvents bool
	errorEvents    bool
}

func (n *ntfyService) NotifyAnalysisCompleted(ctx context.Context, callID, sentiment string, attempts int) error {
	if !n.analysisEvents {
		return nil
	}
	data := payload{
		title:   "Callwave - Analysis Complete",
		message: fmt.Sprintf("Call %s analyzed (%s) after %d attempt(s)", callID, sentiment, attempts),
		tags:    []string{"callwave", "analysis", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAnalysisFailed(ctx context.Context, callID, reason string, attempts int) error {
	if !n.analysisEvents {
		return nil
	}
	data := payload{
		title:    "Callwave - Analysis Failed",
		message:  fmt.Sprintf("Call %s failed after %d attempt(s): %s", callID, attempts, reason),
		tags:     []string{"callwave", "analysis", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context) error {
	data := payload{
		title:   "Callwave - Started",
		message: "Call processing daemon started",
		tags:    []string{"callwave", "daemon", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonStopped(ctx context.Context, processed, failed int64) error {
	data := payload{
		title:   "Callwave - Stopped",
		message: fmt.Sprintf("Daemon stopped. Processed %d call(s), %d failed", processed, failed),
		tags:    []string{"callwave", "daemon", "stopped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, context string) error {
	if !n.errorEvents {
		return nil
	}
	message := "Unknown error"
	if err != nil {
		message = err.Error()
	}
	data := payload{
		title:    "Callwave - Error",
		message:  fmt.Sprintf("Error with %s: %s", context, message),
		tags:     []string{"callwave", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Callwave - Test",
		message: "Test notification from callwave",
		tags:    []string{"callwave", "test"},
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

func (noopService) NotifyAnalysisCompleted(context.Context, string, string, int) error { return nil }
func (noopService) NotifyAnalysisFailed(context.Context, string, string, int) error    { return nil }
func (noopService) NotifyDaemonStarted(context.Context) error                          { return nil }
func (noopService) NotifyDaemonStopped(context.Context, int64, int64) error            { return nil }
func (noopService) NotifyError(context.Context, error, string) error                   { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
