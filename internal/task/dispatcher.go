package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/tasker/internal/domain"
	"github.com/phrazzld/tasker/internal/store"
)

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	// WorkerCount determines how many due tasks execute concurrently.
	// A slow webhook occupies one worker; the rest keep draining the
	// due channel.
	WorkerCount int
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WorkerCount: 8,
	}
}

// Dispatcher consumes due task IDs from the scheduler and drives each
// task through its state machine: fetch, claim, execute, record.
//
// The durable todo -> in_progress transition is the mutual-exclusion
// point; whatever happens around it, a task's execution behavior runs
// at most once per scheduled fire.
type Dispatcher struct {
	store     store.TaskStore
	due       <-chan uuid.UUID
	executors map[domain.TaskKind]Executor

	config     DispatcherConfig
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher reading due task IDs from the
// given channel. Executors are indexed by the kind they report.
func NewDispatcher(
	taskStore store.TaskStore,
	due <-chan uuid.UUID,
	executors []Executor,
	config DispatcherConfig,
	logger *slog.Logger,
) *Dispatcher {
	if config.WorkerCount <= 0 {
		defaultCount := DefaultDispatcherConfig().WorkerCount
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", defaultCount)
		config.WorkerCount = defaultCount
	}

	byKind := make(map[domain.TaskKind]Executor, len(executors))
	for _, executor := range executors {
		byKind[executor.Kind()] = executor
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		store:      taskStore,
		due:        due,
		executors:  byKind,
		config:     config,
		ctx:        ctx,
		cancelFunc: cancel,
		logger:     logger,
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	for i := 0; i < d.config.WorkerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("dispatcher started", "worker_count", d.config.WorkerCount)
}

// Stop signals all workers to finish their current task and waits for
// them to exit.
func (d *Dispatcher) Stop() {
	d.cancelFunc()
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// worker processes due task IDs until shutdown.
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug("starting dispatch worker", "worker_id", id)
	defer d.logger.Debug("stopping dispatch worker", "worker_id", id)

	for {
		select {
		case <-d.ctx.Done():
			return
		case taskID := <-d.due:
			d.process(d.ctx, taskID)
		}
	}
}

// process runs one due task through claim, execution and outcome
// recording. Every failure is contained here: storage trouble means the
// task is skipped, executor trouble means the task is marked failed,
// and neither ever escapes into the worker loop.
func (d *Dispatcher) process(ctx context.Context, taskID uuid.UUID) {
	log := d.logger.With("task_id", taskID)

	task, err := d.store.GetByID(ctx, taskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			// Deleted between fire and fetch; nothing to do.
			log.Debug("due task no longer exists, skipping")
			return
		}
		log.Error("failed to fetch due task, skipping", "error", err)
		return
	}

	claimed, err := d.store.CompareAndSetState(
		ctx, taskID, domain.TaskStateTodo, domain.TaskStateInProgress)
	if err != nil {
		log.Error("failed to claim task, skipping", "error", err)
		return
	}
	if !claimed {
		log.Debug("task already claimed or no longer todo, skipping")
		return
	}

	executor, ok := d.executors[task.Kind]
	if !ok {
		log.Error("no executor registered for task kind", "task_kind", task.Kind)
		d.recordOutcome(ctx, taskID, domain.TaskStateFailed)
		return
	}

	log.Debug("executing task", "task_kind", task.Kind)
	if err := executor.Execute(ctx, task); err != nil {
		log.Warn("task execution failed",
			"task_kind", task.Kind,
			"error", err)
		d.recordOutcome(ctx, taskID, domain.TaskStateFailed)
		return
	}

	d.recordOutcome(ctx, taskID, domain.TaskStateDone)
}

// recordOutcome durably finalizes a claimed task. A lost conditional
// update means the task was deleted mid-execution; that race is
// accepted, the side effect cannot be unfired.
func (d *Dispatcher) recordOutcome(ctx context.Context, taskID uuid.UUID, outcome domain.TaskState) {
	log := d.logger.With("task_id", taskID, "outcome", outcome)

	applied, err := d.store.CompareAndSetState(
		ctx, taskID, domain.TaskStateInProgress, outcome)
	if err != nil {
		log.Error("failed to record task outcome", "error", err)
		return
	}
	if !applied {
		log.Debug("task vanished before outcome could be recorded")
		return
	}

	log.Debug("task outcome recorded")
}
