package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasker/internal/domain"
)

func TestCreateTaskRequestValidate(t *testing.T) {
	webhook := &CreateWebhookPayload{ExecutionTime: "t", URL: "u", Body: "b"}
	hash := &CreateHashPayload{ExecutionTime: "t", Secret: "s"}

	assert.NoError(t, (&CreateTaskRequest{Webhook: webhook}).Validate())
	assert.NoError(t, (&CreateTaskRequest{Hash: hash}).Validate())
	assert.ErrorIs(t, (&CreateTaskRequest{}).Validate(), ErrAmbiguousTaskKind)
	assert.ErrorIs(t, (&CreateTaskRequest{Webhook: webhook, Hash: hash}).Validate(), ErrAmbiguousTaskKind)
}

func TestParseExecutionTime(t *testing.T) {
	parsed, err := parseExecutionTime("2031-04-05T06:07:08Z")
	require.NoError(t, err)
	assert.Equal(t, 2031, parsed.Year())

	_, err = parseExecutionTime("next tuesday")
	assert.ErrorIs(t, err, domain.ErrExecutionTimeNotSet)
}

func TestTaskToResponseTagsByKind(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour)

	webhook, err := domain.NewWebhookTask("http://example.com", "payload", future)
	require.NoError(t, err)
	resp := taskToResponse(webhook)
	require.NotNil(t, resp.Webhook)
	assert.Nil(t, resp.Hash)
	assert.Equal(t, webhook.ID.String(), resp.Webhook.ID)
	assert.Equal(t, "http://example.com", resp.Webhook.URL)

	hash, err := domain.NewHashTask("s3cr3t", future)
	require.NoError(t, err)
	resp = taskToResponse(hash)
	require.NotNil(t, resp.Hash)
	assert.Nil(t, resp.Webhook)
}
