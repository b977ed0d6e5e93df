package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// QueueDefault is the queue all scheduled maintenance tasks run on.
const QueueDefault = "default"

// Task type identifiers.
const (
	// TaskCounterIntegrity fast-forwards sequence counters past the maximum
	// ids observed in their entity tables, the allocator's self-healing run
	// as a scheduled sweep.
	TaskCounterIntegrity = "counters:integrity"
	// TaskCreditWarmup precomputes the credit summary into the report cache.
	TaskCreditWarmup = "reports:credit:warmup"
	// TaskKeyCleanup removes idempotency keys past their retention window.
	TaskKeyCleanup = "idempotency:cleanup"
)

// CreditWarmupPayload parameterizes a credit warmup run.
type CreditWarmupPayload struct {
	WindowDays int `json:"windowDays"`
}

// NewCounterIntegrityTask builds the counter integrity task.
func NewCounterIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskCounterIntegrity, nil)
}

// NewKeyCleanupTask builds the idempotency key cleanup task.
func NewKeyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskKeyCleanup, nil)
}

// NewCreditWarmupTask builds a credit warmup task.
func NewCreditWarmupTask(windowDays int) (*asynq.Task, error) {
	payload, err := json.Marshal(CreditWarmupPayload{WindowDays: windowDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCreditWarmup, payload), nil
}
