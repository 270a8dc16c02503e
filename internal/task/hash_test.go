package task_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasker/internal/domain"
	"github.com/phrazzld/tasker/internal/task"
)

func TestHashExecutorKind(t *testing.T) {
	executor := task.NewHashExecutor(testLogger())
	assert.Equal(t, domain.TaskKindHash, executor.Kind())
}

func TestHashExecutorLogsDerivedHash(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	hashed, err := domain.NewHashTask("correct horse battery staple", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	executor := task.NewHashExecutor(logger)
	require.NoError(t, executor.Execute(context.Background(), hashed))

	output := buf.String()
	assert.Contains(t, output, "computed PBKDF2 hash")
	assert.Contains(t, output, `"hash"`)
	assert.Contains(t, output, `"salt"`)
	assert.NotContains(t, output, "correct horse battery staple",
		"the raw secret must never reach the log")
}

func TestHashExecutorSaltsEveryExecution(t *testing.T) {
	var first, second bytes.Buffer

	hashed, err := domain.NewHashTask("same secret", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, task.NewHashExecutor(slog.New(slog.NewJSONHandler(&first, nil))).
		Execute(context.Background(), hashed))
	require.NoError(t, task.NewHashExecutor(slog.New(slog.NewJSONHandler(&second, nil))).
		Execute(context.Background(), hashed))

	assert.NotEqual(t, first.String(), second.String(),
		"fresh salt means the same secret hashes differently")
}
