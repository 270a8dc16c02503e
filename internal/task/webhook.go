package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/tasker/internal/config"
	"github.com/phrazzld/tasker/internal/domain"
)

// webhookBackoffBase is the delay before the second delivery attempt;
// it doubles after every further failure.
const webhookBackoffBase = 100 * time.Millisecond

// WebhookExecutor delivers a task's body to its URL with an HTTP POST.
//
// Success means the transport produced any HTTP response at all; the
// status code is logged but deliberately not inspected. Only transport
// failures (timeout, refused connection, unreachable host) count as
// execution failure, and only after the attempt budget is spent.
type WebhookExecutor struct {
	client      *http.Client
	maxAttempts int
	logger      *slog.Logger
}

// NewWebhookExecutor creates a webhook executor with the configured
// per-attempt timeout and attempt budget.
func NewWebhookExecutor(cfg config.WebhookConfig, logger *slog.Logger) *WebhookExecutor {
	return &WebhookExecutor{
		client:      &http.Client{Timeout: cfg.RequestTimeout},
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
	}
}

// Kind returns domain.TaskKindWebhook.
func (e *WebhookExecutor) Kind() domain.TaskKind {
	return domain.TaskKindWebhook
}

// Execute POSTs the task body to the task URL, retrying transport
// failures with doubling backoff until the attempt budget is spent.
func (e *WebhookExecutor) Execute(ctx context.Context, task *domain.Task) error {
	log := e.logger.With("task_id", task.ID, "url", task.URL)

	backoff := webhookBackoffBase
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		resp, err := e.post(ctx, task)
		if err == nil {
			log.Info("webhook delivered", "status", resp.StatusCode)
			return nil
		}
		lastErr = err

		if attempt == e.maxAttempts {
			break
		}
		log.Debug("webhook delivery attempt failed, backing off",
			"attempt", attempt,
			"max_attempts", e.maxAttempts,
			"backoff", backoff,
			"error", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	log.Warn("webhook delivery failed, no further retries",
		"attempts", e.maxAttempts,
		"error", lastErr)
	return fmt.Errorf("webhook delivery to %s failed after %d attempts: %w",
		task.URL, e.maxAttempts, lastErr)
}

// post performs one delivery attempt. The response body is drained and
// closed so the client's connection can be reused.
func (e *WebhookExecutor) post(ctx context.Context, task *domain.Task) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.URL, strings.NewReader(task.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	if cerr := resp.Body.Close(); cerr != nil {
		e.logger.Warn("failed to close webhook response body", "error", cerr)
	}

	return resp, nil
}
