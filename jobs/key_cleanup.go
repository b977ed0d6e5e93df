package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tienda-erp/tienda-erp/internal/shared"
)

// keyRetention is how long processed idempotency keys stay queryable. Retries
// arriving after this window create a fresh document instead of replaying.
const keyRetention = 30 * 24 * time.Hour

// KeyCleanupJob prunes idempotency keys past the retention window.
type KeyCleanupJob struct {
	keys   *shared.IdempotencyStore
	logger *slog.Logger
}

// NewKeyCleanupJob constructs the job.
func NewKeyCleanupJob(keys *shared.IdempotencyStore, logger *slog.Logger) *KeyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyCleanupJob{keys: keys, logger: logger}
}

// Handle processes one cleanup task.
func (j *KeyCleanupJob) Handle(ctx context.Context, task *asynq.Task) error {
	if err := j.keys.Cleanup(ctx, keyRetention); err != nil {
		return fmt.Errorf("jobs: idempotency cleanup: %w", err)
	}
	j.logger.Info("idempotency keys pruned", slog.Duration("retention", keyRetention))
	return nil
}
