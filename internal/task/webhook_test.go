package task_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasker/internal/config"
	"github.com/phrazzld/tasker/internal/domain"
	"github.com/phrazzld/tasker/internal/task"
)

func newWebhookExecutor(maxAttempts int) *task.WebhookExecutor {
	cfg := config.WebhookConfig{
		RequestTimeout: 2 * time.Second,
		MaxAttempts:    maxAttempts,
	}
	return task.NewWebhookExecutor(cfg, testLogger())
}

func webhookTask(t *testing.T, url, body string) *domain.Task {
	t.Helper()
	created, err := domain.NewWebhookTask(url, body, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	return created
}

func TestWebhookExecutorPostsBody(t *testing.T) {
	var gotMethod, gotBody atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotMethod.Store(r.Method)
		gotBody.Store(string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := newWebhookExecutor(1)
	err := executor.Execute(context.Background(), webhookTask(t, server.URL, `{"ping":true}`))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod.Load())
	assert.Equal(t, `{"ping":true}`, gotBody.Load())
}

func TestWebhookExecutorTreatsAnyResponseAsDelivered(t *testing.T) {
	statuses := []int{
		http.StatusOK,
		http.StatusNoContent,
		http.StatusNotFound,
		http.StatusInternalServerError,
	}

	for _, status := range statuses {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		executor := newWebhookExecutor(1)
		err := executor.Execute(context.Background(), webhookTask(t, server.URL, "payload"))
		assert.NoError(t, err, "status %d still means the endpoint responded", status)

		server.Close()
	}
}

func TestWebhookExecutorFailsAfterAttemptBudget(t *testing.T) {
	// Closing the server first turns every attempt into a transport failure.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	executor := newWebhookExecutor(3)
	err := executor.Execute(context.Background(), webhookTask(t, url, "payload"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestWebhookExecutorRetriesTransportFailures(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			// Kill the connection without writing a response.
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := newWebhookExecutor(5)
	err := executor.Execute(context.Background(), webhookTask(t, server.URL, "payload"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load(), "delivery succeeds on the third attempt")
}

func TestWebhookExecutorStopsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := newWebhookExecutor(5)
	err := executor.Execute(ctx, webhookTask(t, url, "payload"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
