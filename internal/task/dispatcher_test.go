package task_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasker/internal/domain"
	"github.com/phrazzld/tasker/internal/mocks"
	"github.com/phrazzld/tasker/internal/task"
)

// stubExecutor records executed tasks and returns a configured error.
type stubExecutor struct {
	kind domain.TaskKind
	err  error

	mu    sync.Mutex
	calls []uuid.UUID
}

func (s *stubExecutor) Kind() domain.TaskKind {
	return s.kind
}

func (s *stubExecutor) Execute(ctx context.Context, t *domain.Task) error {
	s.mu.Lock()
	s.calls = append(s.calls, t.ID)
	s.mu.Unlock()
	return s.err
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedTask(t *testing.T, store *mocks.MockTaskStore, state domain.TaskState) *domain.Task {
	t.Helper()
	created, err := domain.NewHashTask("s3cr3t", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	created.State = state
	store.Put(created)
	return created
}

func startDispatcher(
	t *testing.T,
	store *mocks.MockTaskStore,
	executors []task.Executor,
) (chan<- uuid.UUID, func()) {
	t.Helper()
	due := make(chan uuid.UUID)
	d := task.NewDispatcher(store, due, executors, task.DispatcherConfig{WorkerCount: 2}, testLogger())
	d.Start()
	return due, d.Stop
}

func TestDispatcherExecutesAndRecordsDone(t *testing.T) {
	store := mocks.NewMockTaskStore()
	seeded := seedTask(t, store, domain.TaskStateTodo)
	executor := &stubExecutor{kind: domain.TaskKindHash}

	due, stop := startDispatcher(t, store, []task.Executor{executor})
	defer stop()

	due <- seeded.ID

	assert.Eventually(t, func() bool {
		return store.StateOf(seeded.ID) == domain.TaskStateDone
	}, 2*time.Second, 10*time.Millisecond, "task should end up done")
	assert.Equal(t, 1, executor.callCount())
}

func TestDispatcherRecordsFailureWithoutCrashing(t *testing.T) {
	store := mocks.NewMockTaskStore()
	seeded := seedTask(t, store, domain.TaskStateTodo)
	executor := &stubExecutor{kind: domain.TaskKindHash, err: errors.New("unreachable host")}

	due, stop := startDispatcher(t, store, []task.Executor{executor})
	defer stop()

	due <- seeded.ID

	assert.Eventually(t, func() bool {
		return store.StateOf(seeded.ID) == domain.TaskStateFailed
	}, 2*time.Second, 10*time.Millisecond, "task should end up failed")

	// The loop keeps working after a failure.
	second := seedTask(t, store, domain.TaskStateTodo)
	due <- second.ID
	assert.Eventually(t, func() bool {
		return store.StateOf(second.ID) == domain.TaskStateFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcherSkipsDeletedTask(t *testing.T) {
	store := mocks.NewMockTaskStore()
	executor := &stubExecutor{kind: domain.TaskKindHash}

	due, stop := startDispatcher(t, store, []task.Executor{executor})
	defer stop()

	// An ID whose row was deleted between fire and fetch.
	id, err := uuid.NewV7()
	require.NoError(t, err)
	due <- id

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, executor.callCount(), "deleted task must not execute")
}

func TestDispatcherSkipsAlreadyClaimedTask(t *testing.T) {
	store := mocks.NewMockTaskStore()
	seeded := seedTask(t, store, domain.TaskStateInProgress)
	executor := &stubExecutor{kind: domain.TaskKindHash}

	due, stop := startDispatcher(t, store, []task.Executor{executor})
	defer stop()

	due <- seeded.ID

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, executor.callCount(), "claimed task must not execute twice")
	assert.Equal(t, domain.TaskStateInProgress, store.StateOf(seeded.ID))
}

func TestDispatcherSkipsOnClaimError(t *testing.T) {
	store := mocks.NewMockTaskStore()
	seeded := seedTask(t, store, domain.TaskStateTodo)
	store.CASErr = errors.New("connection reset")
	executor := &stubExecutor{kind: domain.TaskKindHash}

	due, stop := startDispatcher(t, store, []task.Executor{executor})
	defer stop()

	due <- seeded.ID

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, executor.callCount())
	assert.Equal(t, domain.TaskStateTodo, store.StateOf(seeded.ID),
		"an unclaimed task stays todo for a later cycle")
}

func TestDispatcherFailsTaskWithoutExecutor(t *testing.T) {
	store := mocks.NewMockTaskStore()
	seeded := seedTask(t, store, domain.TaskStateTodo)

	// Only a webhook executor is registered; the due task is a hash.
	executor := &stubExecutor{kind: domain.TaskKindWebhook}

	due, stop := startDispatcher(t, store, []task.Executor{executor})
	defer stop()

	due <- seeded.ID

	assert.Eventually(t, func() bool {
		return store.StateOf(seeded.ID) == domain.TaskStateFailed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, executor.callCount())
}

func TestDispatcherProcessesConcurrently(t *testing.T) {
	store := mocks.NewMockTaskStore()

	// A slow executor must not serialize the other workers.
	release := make(chan struct{})
	slow := &blockingExecutor{kind: domain.TaskKindHash, release: release}

	first := seedTask(t, store, domain.TaskStateTodo)
	second := seedTask(t, store, domain.TaskStateTodo)

	due, stop := startDispatcher(t, store, []task.Executor{slow})
	defer stop()

	due <- first.ID
	due <- second.ID

	assert.Eventually(t, func() bool {
		return slow.started() == 2
	}, 2*time.Second, 10*time.Millisecond, "both tasks should be in flight at once")

	close(release)
	assert.Eventually(t, func() bool {
		return store.StateOf(first.ID) == domain.TaskStateDone &&
			store.StateOf(second.ID) == domain.TaskStateDone
	}, 2*time.Second, 10*time.Millisecond)
}

// blockingExecutor parks every execution until release is closed.
type blockingExecutor struct {
	kind    domain.TaskKind
	release chan struct{}

	mu      sync.Mutex
	running int
}

func (b *blockingExecutor) Kind() domain.TaskKind {
	return b.kind
}

func (b *blockingExecutor) Execute(ctx context.Context, t *domain.Task) error {
	b.mu.Lock()
	b.running++
	b.mu.Unlock()
	<-b.release
	return nil
}

func (b *blockingExecutor) started() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}
