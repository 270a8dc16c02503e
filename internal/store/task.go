package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/phrazzld/tasker/internal/domain"
)

// TaskStore defines the interface for task persistence. It is the
// single source of truth for task state; the in-memory scheduler only
// ever mirrors rows whose durable state is todo.
// Version: 1.0
type TaskStore interface {
	// Create saves a new task to the store.
	// Returns ErrDuplicate if a task with the same ID already exists.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ListByKind retrieves all tasks of the given kind, ordered by ID.
	// UUIDv7 IDs sort chronologically, so this is creation order.
	// Returns an empty slice if no tasks match.
	ListByKind(ctx context.Context, kind domain.TaskKind) ([]*domain.Task, error)

	// ListByState retrieves all tasks in the given state, any kind,
	// ordered by ID. Returns an empty slice if no tasks match.
	ListByState(ctx context.Context, state domain.TaskState) ([]*domain.Task, error)

	// CompareAndSetState atomically transitions a task from the expected
	// state to the new state. It reports whether the transition was
	// applied; false means the task is absent or its state no longer
	// matches expected. This conditional update is the mutual-exclusion
	// point that prevents double dispatch of a task.
	CompareAndSetState(ctx context.Context, id uuid.UUID, expected, next domain.TaskState) (bool, error)

	// Delete removes a task from the store.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListPendingForRecovery retrieves every task whose state is todo or
	// in_progress, ordered by execution time. Used once at startup to
	// rebuild the in-memory schedule.
	ListPendingForRecovery(ctx context.Context) ([]*domain.Task, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
