package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/tasker/internal/domain"
	"github.com/phrazzld/tasker/internal/platform/logger"
	"github.com/phrazzld/tasker/internal/store"
)

// taskColumns is the column list shared by every SELECT in this file.
const taskColumns = "id, kind, state, execution_time, url, body, secret, created_at, updated_at"

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// Compile-time check that PostgresTaskStore satisfies store.TaskStore.
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

// WithTx returns a new TaskStore instance backed by the given transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx}
}

// Create saves a new task to the database. The task is validated before
// it is written; a duplicate ID maps to store.ErrDuplicateTaskID.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, kind, state, execution_time, url, body, secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Kind,
		task.State,
		task.ExecutionTime,
		nullString(task.URL),
		nullString(task.Body),
		nullString(task.Secret),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("task ID uniqueness violated",
				"task_id", task.ID)
			return store.ErrDuplicateTaskID
		}
		log.Error("failed to save task",
			"task_id", task.ID,
			"task_kind", task.Kind,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetByID retrieves a task by its unique ID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE id = $1", taskColumns)

	row := s.db.QueryRowContext(ctx, query, id)
	task, err := scanTask(row)
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	return task, nil
}

// ListByKind retrieves all tasks of the given kind. Ordering by ID is
// chronological because IDs are UUIDv7.
func (s *PostgresTaskStore) ListByKind(ctx context.Context, kind domain.TaskKind) ([]*domain.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE kind = $1 ORDER BY id", taskColumns)
	return s.queryTasks(ctx, query, kind)
}

// ListByState retrieves all tasks in the given state, any kind.
func (s *PostgresTaskStore) ListByState(ctx context.Context, state domain.TaskState) ([]*domain.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE state = $1 ORDER BY id", taskColumns)
	return s.queryTasks(ctx, query, state)
}

// ListPendingForRecovery retrieves every todo and in_progress task,
// ordered by execution time so the scheduler is rebuilt in due order.
func (s *PostgresTaskStore) ListPendingForRecovery(ctx context.Context) ([]*domain.Task, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM tasks WHERE state IN ($1, $2) ORDER BY execution_time, id",
		taskColumns,
	)
	return s.queryTasks(ctx, query, domain.TaskStateTodo, domain.TaskStateInProgress)
}

// CompareAndSetState atomically transitions a task between states. The
// WHERE clause on the prior state makes concurrent claim attempts
// mutually exclusive: exactly one UPDATE reports an affected row.
func (s *PostgresTaskStore) CompareAndSetState(
	ctx context.Context,
	id uuid.UUID,
	expected, next domain.TaskState,
) (bool, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET state = $1, updated_at = $2
		WHERE id = $3 AND state = $4
	`

	result, err := s.db.ExecContext(ctx, query, next, time.Now().UTC(), id, expected)
	if err != nil {
		log.Error("failed to transition task state",
			"task_id", id,
			"expected_state", expected,
			"next_state", next,
			"error", err)
		return false, MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// Delete removes a task from the database.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// queryTasks runs a multi-row task query and scans the results.
func (s *PostgresTaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks", "error", err)
		return nil, MapError(err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close rows", "error", cerr)
		}
	}()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return tasks, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask maps a tasks row onto a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task              domain.Task
		url, body, secret sql.NullString
	)

	err := row.Scan(
		&task.ID,
		&task.Kind,
		&task.State,
		&task.ExecutionTime,
		&url,
		&body,
		&secret,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.URL = url.String
	task.Body = body.String
	task.Secret = secret.String

	return &task, nil
}

// nullString maps an empty string to SQL NULL so kind-specific payload
// columns stay NULL for the other kind.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
