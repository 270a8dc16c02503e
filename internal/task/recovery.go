package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tasker/internal/domain"
	"github.com/phrazzld/tasker/internal/scheduler"
	"github.com/phrazzld/tasker/internal/store"
)

// recoveryGrace is how far into the future a past-due task is scheduled
// during recovery, giving the dispatcher a moment to come up before the
// backlog fires.
const recoveryGrace = 100 * time.Millisecond

// RecoverPending rebuilds the in-memory schedule from durable state.
// It must complete before the HTTP layer accepts traffic; any failure
// is fatal to startup, because serving requests with an incomplete
// schedule would silently drop tasks.
//
// Tasks still in todo are re-scheduled at their original execution
// time, or immediately (plus grace) when that time has passed. Tasks
// stuck in in_progress are evidence of a crash between claim and
// outcome; they are conservatively reclaimed to todo and re-offered,
// which favors re-execution over loss. This makes execution
// at-least-once across crashes: behaviors must tolerate duplicates.
func RecoverPending(
	ctx context.Context,
	taskStore store.TaskStore,
	sched *scheduler.Scheduler,
	clock scheduler.Clock,
	logger *slog.Logger,
) error {
	pending, err := taskStore.ListPendingForRecovery(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending tasks: %w", err)
	}

	now := clock.Now()
	var rescheduled, overdue, reclaimed int

	for _, task := range pending {
		at := task.ExecutionTime

		switch task.State {
		case domain.TaskStateInProgress:
			// The claim protocol guarantees workers only run after a
			// durable in_progress mark, so nobody can be executing this
			// task now; reclaiming it before the dispatcher starts is safe.
			ok, err := taskStore.CompareAndSetState(
				ctx, task.ID, domain.TaskStateInProgress, domain.TaskStateTodo)
			if err != nil {
				return fmt.Errorf("failed to reclaim interrupted task %s: %w", task.ID, err)
			}
			if !ok {
				return fmt.Errorf("interrupted task %s changed state during recovery", task.ID)
			}
			at = now.Add(recoveryGrace)
			reclaimed++

		case domain.TaskStateTodo:
			if !at.After(now) {
				at = now.Add(recoveryGrace)
				overdue++
			} else {
				rescheduled++
			}

		default:
			return fmt.Errorf("unexpected state %q for pending task %s", task.State, task.ID)
		}

		if _, err := sched.Schedule(task.ID, at); err != nil {
			return fmt.Errorf("failed to schedule recovered task %s: %w", task.ID, err)
		}
	}

	logger.Info("recovered pending tasks",
		"rescheduled", rescheduled,
		"overdue", overdue,
		"reclaimed_in_progress", reclaimed)

	return nil
}
