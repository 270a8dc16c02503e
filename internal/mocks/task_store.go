package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/tasker/internal/domain"
	"github.com/phrazzld/tasker/internal/store"
)

// MockTaskStore is an in-memory store.TaskStore for tests. Individual
// operations can be made to fail by setting the corresponding Err field.
type MockTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	CreateErr   error
	GetErr      error
	ListErr     error
	CASErr      error
	DeleteErr   error
	RecoveryErr error
}

// Compile-time check that MockTaskStore satisfies store.TaskStore.
var _ store.TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore creates an empty mock store.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

// Put seeds the store with a task, bypassing validation.
func (m *MockTaskStore) Put(task *domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *task
	m.tasks[task.ID] = &copied
}

// StateOf returns the current state of the task, or "" if absent.
func (m *MockTaskStore) StateOf(id uuid.UUID) domain.TaskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[id]; ok {
		return task.State
	}
	return ""
}

// Len returns the number of stored tasks.
func (m *MockTaskStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if err := task.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[task.ID]; exists {
		return store.ErrDuplicateTaskID
	}
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (m *MockTaskStore) ListByKind(ctx context.Context, kind domain.TaskKind) ([]*domain.Task, error) {
	return m.list(func(t *domain.Task) bool { return t.Kind == kind }, byID)
}

func (m *MockTaskStore) ListByState(ctx context.Context, state domain.TaskState) ([]*domain.Task, error) {
	return m.list(func(t *domain.Task) bool { return t.State == state }, byID)
}

func (m *MockTaskStore) ListPendingForRecovery(ctx context.Context) ([]*domain.Task, error) {
	if m.RecoveryErr != nil {
		return nil, m.RecoveryErr
	}
	return m.list(func(t *domain.Task) bool {
		return t.State == domain.TaskStateTodo || t.State == domain.TaskStateInProgress
	}, byExecutionTime)
}

func (m *MockTaskStore) CompareAndSetState(
	ctx context.Context,
	id uuid.UUID,
	expected, next domain.TaskState,
) (bool, error) {
	if m.CASErr != nil {
		return false, m.CASErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok || task.State != expected {
		return false, nil
	}
	task.State = next
	return true, nil
}

func (m *MockTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *MockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}

func (m *MockTaskStore) list(match func(*domain.Task) bool, less func(a, b *domain.Task) bool) ([]*domain.Task, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Task, 0)
	for _, task := range m.tasks {
		if match(task) {
			copied := *task
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return less(result[i], result[j]) })
	return result, nil
}

func byID(a, b *domain.Task) bool {
	return a.ID.String() < b.ID.String()
}

func byExecutionTime(a, b *domain.Task) bool {
	if a.ExecutionTime.Equal(b.ExecutionTime) {
		return byID(a, b)
	}
	return a.ExecutionTime.Before(b.ExecutionTime)
}
