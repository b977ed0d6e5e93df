package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tienda-erp/tienda-erp/internal/sequence"
)

// counterTables maps each counter to the entity table it issues ids for.
var counterTables = map[string]string{
	sequence.SeqDocument:     "documents",
	sequence.SeqDocumentLine: "document_lines",
	sequence.SeqKardex:       "kardex_entries",
}

// CounterIntegrityJob fast-forwards every known counter to at least the
// maximum id present in its table. Imported data with ids beyond the counter
// stops causing allocation collisions after a sweep.
type CounterIntegrityJob struct {
	pool      *pgxpool.Pool
	allocator *sequence.Allocator
	logger    *slog.Logger
}

// NewCounterIntegrityJob constructs the job.
func NewCounterIntegrityJob(pool *pgxpool.Pool, allocator *sequence.Allocator, logger *slog.Logger) *CounterIntegrityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CounterIntegrityJob{pool: pool, allocator: allocator, logger: logger}
}

// Handle processes one counter integrity task.
func (j *CounterIntegrityJob) Handle(ctx context.Context, task *asynq.Task) error {
	for name, table := range counterTables {
		var maxID int64
		query := fmt.Sprintf(`SELECT COALESCE(MAX(id), 0) FROM %s`, table)
		if err := j.pool.QueryRow(ctx, query).Scan(&maxID); err != nil {
			return fmt.Errorf("jobs: max id for %s: %w", table, err)
		}
		if maxID == 0 {
			continue
		}
		if err := j.allocator.EnsureAtLeast(ctx, name, maxID); err != nil {
			return fmt.Errorf("jobs: fast-forward %s: %w", name, err)
		}
		j.logger.Info("counter checked",
			slog.String("counter", name),
			slog.Int64("observed_max", maxID))
	}
	return nil
}
