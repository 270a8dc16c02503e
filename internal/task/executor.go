package task

import (
	"context"

	"github.com/phrazzld/tasker/internal/domain"
)

// Executor runs the kind-specific side effect of a claimed task. An
// implementation must tolerate duplicate invocation: a crash between
// the claim and the recorded outcome causes the task to be re-executed
// after restart.
// Version: 1.0
type Executor interface {
	// Kind returns the task kind this executor handles.
	Kind() domain.TaskKind

	// Execute performs the side effect. A returned error marks the task
	// failed; it is recorded, never propagated into the dispatch loop.
	Execute(ctx context.Context, task *domain.Task) error
}
