package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

// Possible task state values. Transitions are monotonic:
// todo -> in_progress -> done|failed. A task never re-enters todo after
// leaving it, except when startup recovery reclaims an interrupted
// in_progress task before any worker is running.
const (
	TaskStateTodo       TaskState = "todo"
	TaskStateInProgress TaskState = "in_progress"
	TaskStateDone       TaskState = "done"
	TaskStateFailed     TaskState = "failed"
)

// TaskKind identifies the execution behavior of a task.
type TaskKind string

// Possible task kind values
const (
	TaskKindWebhook TaskKind = "webhook"
	TaskKindHash    TaskKind = "hash"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID         = errors.New("task ID cannot be empty")
	ErrInvalidTaskKind     = errors.New("invalid task kind")
	ErrInvalidTaskState    = errors.New("invalid task state")
	ErrEmptyWebhookURL     = errors.New("field 'url' must contain a URL")
	ErrEmptyWebhookBody    = errors.New("field 'body' must contain a request body")
	ErrEmptyHashSecret     = errors.New("field 'secret' must contain a string")
	ErrExecutionTimeNotSet = errors.New("field 'execution_time' must contain a valid RFC 3339 datetime, including timezone")
	ErrExecutionTimeInPast = errors.New("field 'execution_time' must contain a datetime that lies in the future")
	ErrWebhookFieldsOnHash = errors.New("hash tasks cannot carry webhook fields")
	ErrHashFieldsOnWebhook = errors.New("webhook tasks cannot carry a secret")
)

// Task represents a unit of deferred work. Exactly one kind-specific
// payload is populated: URL+Body for webhook tasks, Secret for hash
// tasks. IDs are UUIDv7 so that lexicographic order is creation order.
type Task struct {
	ID            uuid.UUID
	Kind          TaskKind
	State         TaskState
	ExecutionTime time.Time
	URL           string
	Body          string
	Secret        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewWebhookTask creates a webhook task in state todo with a fresh
// UUIDv7. The execution time must lie strictly in the future. Bare URLs
// without a scheme get "http://" prepended.
func NewWebhookTask(url, body string, executionTime time.Time) (*Task, error) {
	if url == "" {
		return nil, ErrEmptyWebhookURL
	}
	if body == "" {
		return nil, ErrEmptyWebhookBody
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate task ID: %w", err)
	}

	now := time.Now().UTC()
	task := &Task{
		ID:            id,
		Kind:          TaskKindWebhook,
		State:         TaskStateTodo,
		ExecutionTime: executionTime,
		URL:           NormalizeWebhookURL(url),
		Body:          body,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	if !task.ExecutionTime.After(now) {
		return nil, ErrExecutionTimeInPast
	}

	return task, nil
}

// NewHashTask creates a hash task in state todo with a fresh UUIDv7.
// The execution time must lie strictly in the future.
func NewHashTask(secret string, executionTime time.Time) (*Task, error) {
	if secret == "" {
		return nil, ErrEmptyHashSecret
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate task ID: %w", err)
	}

	now := time.Now().UTC()
	task := &Task{
		ID:            id,
		Kind:          TaskKindHash,
		State:         TaskStateTodo,
		ExecutionTime: executionTime,
		Secret:        secret,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	if !task.ExecutionTime.After(now) {
		return nil, ErrExecutionTimeInPast
	}

	return task, nil
}

// Validate checks structural invariants of the task. It does not check
// that the execution time is in the future; that constraint only holds
// at creation time and is enforced by the constructors.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if !IsValidTaskState(t.State) {
		return ErrInvalidTaskState
	}
	if t.ExecutionTime.IsZero() {
		return ErrExecutionTimeNotSet
	}

	switch t.Kind {
	case TaskKindWebhook:
		if t.URL == "" {
			return ErrEmptyWebhookURL
		}
		if t.Body == "" {
			return ErrEmptyWebhookBody
		}
		if t.Secret != "" {
			return ErrHashFieldsOnWebhook
		}
	case TaskKindHash:
		if t.Secret == "" {
			return ErrEmptyHashSecret
		}
		if t.URL != "" || t.Body != "" {
			return ErrWebhookFieldsOnHash
		}
	default:
		return ErrInvalidTaskKind
	}

	return nil
}

// NormalizeWebhookURL prepends "http://" when the URL carries no scheme,
// so that "example.com/hook" is accepted the same way browsers accept it.
func NormalizeWebhookURL(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "http://" + url
}

// IsValidTaskState checks if the given state is a valid TaskState.
func IsValidTaskState(state TaskState) bool {
	switch state {
	case TaskStateTodo, TaskStateInProgress, TaskStateDone, TaskStateFailed:
		return true
	default:
		return false
	}
}

// IsValidTaskKind checks if the given kind is a valid TaskKind.
func IsValidTaskKind(kind TaskKind) bool {
	switch kind {
	case TaskKindWebhook, TaskKindHash:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state admits no further transitions.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateDone || s == TaskStateFailed
}
