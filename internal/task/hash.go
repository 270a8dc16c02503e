package task

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/pbkdf2"

	"github.com/phrazzld/tasker/internal/domain"
)

// PBKDF2 parameters. The iteration count matches the current OWASP
// recommendation for PBKDF2-HMAC-SHA256; each task gets a fresh random
// salt, so executing the same secret twice produces different hashes.
const (
	hashIterations = 600_000
	hashKeyLength  = 32
	hashSaltLength = 16
)

// HashExecutor derives a PBKDF2 hash from a task's secret. It never
// fails for a task that passed creation-time validation; the only error
// path is the system's entropy source going away.
type HashExecutor struct {
	logger *slog.Logger
}

// NewHashExecutor creates a hash executor.
func NewHashExecutor(logger *slog.Logger) *HashExecutor {
	return &HashExecutor{logger: logger}
}

// Kind returns domain.TaskKindHash.
func (e *HashExecutor) Kind() domain.TaskKind {
	return domain.TaskKindHash
}

// Execute computes the hash and logs it base64-encoded together with
// its salt. The derived key is not persisted; producing and reporting
// it is the task's entire side effect.
func (e *HashExecutor) Execute(ctx context.Context, task *domain.Task) error {
	salt := make([]byte, hashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(task.Secret), salt, hashIterations, hashKeyLength, sha256.New)

	e.logger.Info("computed PBKDF2 hash for secret",
		"task_id", task.ID,
		"hash", base64.StdEncoding.EncodeToString(key),
		"salt", base64.StdEncoding.EncodeToString(salt),
		"iterations", hashIterations)

	return nil
}
