package api

import (
	"errors"
	"time"

	"github.com/phrazzld/tasker/internal/domain"
)

// Common request/response structures. Tasks are tagged by kind on the
// wire: a JSON object with exactly one of the "webhook" or "hash" keys.

// ErrAmbiguousTaskKind is returned when a create request carries zero
// or both kind payloads.
var ErrAmbiguousTaskKind = errors.New("request must contain exactly one of 'webhook' or 'hash'")

// CreateWebhookPayload defines the webhook variant of the task creation payload.
type CreateWebhookPayload struct {
	ExecutionTime string `json:"execution_time" validate:"required"`
	URL           string `json:"url"            validate:"required"`
	Body          string `json:"body"           validate:"required"`
}

// CreateHashPayload defines the hash variant of the task creation payload.
type CreateHashPayload struct {
	ExecutionTime string `json:"execution_time" validate:"required"`
	Secret        string `json:"secret"         validate:"required"`
}

// CreateTaskRequest defines the payload for the task creation endpoint.
// Exactly one of the kind payloads must be present.
type CreateTaskRequest struct {
	Webhook *CreateWebhookPayload `json:"webhook,omitempty"`
	Hash    *CreateHashPayload    `json:"hash,omitempty"`
}

// Validate checks that the request carries exactly one kind payload.
func (r *CreateTaskRequest) Validate() error {
	if (r.Webhook == nil) == (r.Hash == nil) {
		return ErrAmbiguousTaskKind
	}
	return nil
}

// CreateTaskResponse defines the successful response for task creation.
type CreateTaskResponse struct {
	ID string `json:"id"`
}

// WebhookTaskData is the wire representation of a webhook task.
type WebhookTaskData struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	ExecutionTime string `json:"execution_time"`
	URL           string `json:"url"`
	Body          string `json:"body"`
}

// HashTaskData is the wire representation of a hash task.
type HashTaskData struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	ExecutionTime string `json:"execution_time"`
	Secret        string `json:"secret"`
}

// TaskResponse is a kind-tagged task record. Exactly one field is set.
type TaskResponse struct {
	Webhook *WebhookTaskData `json:"webhook,omitempty"`
	Hash    *HashTaskData    `json:"hash,omitempty"`
}

// parseExecutionTime parses an RFC 3339 execution time string.
func parseExecutionTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, domain.ErrExecutionTimeNotSet
	}
	return parsed, nil
}

// taskToResponse converts a domain.Task to its kind-tagged wire form.
func taskToResponse(task *domain.Task) TaskResponse {
	executionTime := task.ExecutionTime.Format(time.RFC3339)

	switch task.Kind {
	case domain.TaskKindHash:
		return TaskResponse{
			Hash: &HashTaskData{
				ID:            task.ID.String(),
				State:         string(task.State),
				ExecutionTime: executionTime,
				Secret:        task.Secret,
			},
		}
	default:
		return TaskResponse{
			Webhook: &WebhookTaskData{
				ID:            task.ID.String(),
				State:         string(task.State),
				ExecutionTime: executionTime,
				URL:           task.URL,
				Body:          task.Body,
			},
		}
	}
}

// tasksToResponse converts a list of tasks, yielding an empty slice
// rather than nil so the wire form is always a JSON array.
func tasksToResponse(tasks []*domain.Task) []TaskResponse {
	responses := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, taskToResponse(task))
	}
	return responses
}
