package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/tasker/internal/domain"
	"github.com/phrazzld/tasker/internal/scheduler"
	"github.com/phrazzld/tasker/internal/store"
)

// TaskScheduler is the slice of the scheduler the service needs: adding
// work to the timeline, and finding and withdrawing pending entries.
type TaskScheduler interface {
	// Schedule registers the task ID to fire at the given time.
	Schedule(id uuid.UUID, at time.Time) (*scheduler.Entry, error)

	// Lookup returns the pending entry for the ID, or nil if the entry
	// already fired or was cancelled.
	Lookup(id uuid.UUID) *scheduler.Entry

	// Cancel withdraws a pending entry. It reports whether the entry
	// was still pending.
	Cancel(entry *scheduler.Entry) bool
}

// TaskService provides task lifecycle operations.
type TaskService interface {
	// CreateWebhookTask persists and schedules a webhook delivery task.
	CreateWebhookTask(ctx context.Context, url, body string, executionTime time.Time) (*domain.Task, error)

	// CreateHashTask persists and schedules a secret hashing task.
	CreateHashTask(ctx context.Context, secret string, executionTime time.Time) (*domain.Task, error)

	// GetTask retrieves a task by its ID.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ListTasksByKind retrieves all tasks of the given kind.
	ListTasksByKind(ctx context.Context, kind domain.TaskKind) ([]*domain.Task, error)

	// ListTasksByState retrieves all tasks in the given state.
	ListTasksByState(ctx context.Context, state domain.TaskState) ([]*domain.Task, error)

	// DeleteTask removes a task's record and withdraws its pending
	// schedule entry, if any.
	DeleteTask(ctx context.Context, id uuid.UUID) error
}

// TaskServiceError wraps errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "create_task", "delete_task")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
// It returns known sentinel errors directly without wrapping.
func NewTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTaskNotFound) {
		return ErrTaskNotFound
	}
	if errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}

	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	taskStore store.TaskStore
	sched     TaskScheduler
	logger    *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	taskStore store.TaskStore,
	sched TaskScheduler,
	logger *slog.Logger,
) (TaskService, error) {
	if taskStore == nil {
		return nil, &TaskServiceError{
			Operation: "create_service",
			Message:   "taskStore cannot be nil",
		}
	}
	if sched == nil {
		return nil, &TaskServiceError{
			Operation: "create_service",
			Message:   "scheduler cannot be nil",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		taskStore: taskStore,
		sched:     sched,
		logger:    logger.With("component", "task_service"),
	}, nil
}

// CreateWebhookTask validates, persists and schedules a webhook task.
func (s *taskServiceImpl) CreateWebhookTask(
	ctx context.Context,
	url, body string,
	executionTime time.Time,
) (*domain.Task, error) {
	task, err := domain.NewWebhookTask(url, body, executionTime)
	if err != nil {
		s.logger.Warn("rejected invalid webhook task", "error", err)
		return nil, NewTaskServiceError("create_task", "invalid webhook task", err)
	}
	return s.persistAndSchedule(ctx, task)
}

// CreateHashTask validates, persists and schedules a hash task.
func (s *taskServiceImpl) CreateHashTask(
	ctx context.Context,
	secret string,
	executionTime time.Time,
) (*domain.Task, error) {
	task, err := domain.NewHashTask(secret, executionTime)
	if err != nil {
		s.logger.Warn("rejected invalid hash task", "error", err)
		return nil, NewTaskServiceError("create_task", "invalid hash task", err)
	}
	return s.persistAndSchedule(ctx, task)
}

// persistAndSchedule writes the task record and registers it on the
// timeline. The record is written first: a task that fires without a
// record is silently skipped by the dispatcher, while a record that was
// never scheduled would sit in todo forever. If scheduling fails the
// record is removed again so neither half survives alone.
func (s *taskServiceImpl) persistAndSchedule(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if err := s.taskStore.Create(ctx, task); err != nil {
		s.logger.Error("failed to save task",
			"error", err,
			"task_id", task.ID,
			"task_kind", task.Kind)
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	if _, err := s.sched.Schedule(task.ID, task.ExecutionTime); err != nil {
		s.logger.Error("failed to schedule task, rolling back record",
			"error", err,
			"task_id", task.ID)
		if delErr := s.taskStore.Delete(ctx, task.ID); delErr != nil {
			s.logger.Error("failed to roll back unscheduled task record",
				"error", delErr,
				"task_id", task.ID)
		}
		return nil, NewTaskServiceError("create_task", "failed to schedule task", err)
	}

	s.logger.Info("task created and scheduled",
		"task_id", task.ID,
		"task_kind", task.Kind,
		"execution_time", task.ExecutionTime)

	return task, nil
}

// GetTask retrieves a task by its ID.
func (s *taskServiceImpl) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("failed to retrieve task", "error", err, "task_id", id)
		return nil, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}
	return task, nil
}

// ListTasksByKind retrieves all tasks of the given kind.
func (s *taskServiceImpl) ListTasksByKind(ctx context.Context, kind domain.TaskKind) ([]*domain.Task, error) {
	tasks, err := s.taskStore.ListByKind(ctx, kind)
	if err != nil {
		s.logger.Error("failed to list tasks by kind", "error", err, "task_kind", kind)
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks by kind", err)
	}
	return tasks, nil
}

// ListTasksByState retrieves all tasks in the given state.
func (s *taskServiceImpl) ListTasksByState(ctx context.Context, state domain.TaskState) ([]*domain.Task, error) {
	tasks, err := s.taskStore.ListByState(ctx, state)
	if err != nil {
		s.logger.Error("failed to list tasks by state", "error", err, "task_state", state)
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks by state", err)
	}
	return tasks, nil
}

// DeleteTask removes the task record, then withdraws any pending
// schedule entry. A task observed due concurrently may still fire; the
// dispatcher finds the record gone and drops it. That race is accepted.
func (s *taskServiceImpl) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if err := s.taskStore.Delete(ctx, id); err != nil {
		if store.IsNotFoundError(err) {
			return ErrTaskNotFound
		}
		s.logger.Error("failed to delete task", "error", err, "task_id", id)
		return NewTaskServiceError("delete_task", "failed to delete task", err)
	}

	cancelled := false
	if entry := s.sched.Lookup(id); entry != nil {
		cancelled = s.sched.Cancel(entry)
	}

	s.logger.Info("task deleted",
		"task_id", id,
		"schedule_entry_cancelled", cancelled)

	return nil
}
