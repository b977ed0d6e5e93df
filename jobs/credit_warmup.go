package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tienda-erp/tienda-erp/internal/platform/cache"
	"github.com/tienda-erp/tienda-erp/internal/reporting"
)

// CreditWarmupJob precomputes the credit summary into the report cache so the
// first request of the day is served warm.
type CreditWarmupJob struct {
	service *reporting.Service
	reports *cache.ReportCache
	logger  *slog.Logger
}

// NewCreditWarmupJob constructs the job.
func NewCreditWarmupJob(service *reporting.Service, reports *cache.ReportCache, logger *slog.Logger) *CreditWarmupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreditWarmupJob{service: service, reports: reports, logger: logger}
}

// Handle processes one credit warmup task.
func (j *CreditWarmupJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload CreditWarmupPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("jobs: decode credit warmup payload: %w", err)
		}
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = 30
	}
	report, err := j.service.CreditSummary(ctx, payload.WindowDays)
	if err != nil {
		return fmt.Errorf("jobs: credit summary: %w", err)
	}
	key := fmt.Sprintf("reports:credit:%d", payload.WindowDays)
	if err := j.reports.Set(ctx, key, report); err != nil {
		return fmt.Errorf("jobs: cache credit summary: %w", err)
	}
	j.logger.Info("credit summary warmed",
		slog.Int("window_days", payload.WindowDays),
		slog.Int("clients", len(report.Clients)),
		slog.Int("suppliers", len(report.Suppliers)))
	return nil
}
