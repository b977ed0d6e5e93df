package sequence

import (
	"context"
	"fmt"
	"log/slog"
)

// Store persists named counters.
type Store interface {
	// Reserve advances the counter by count and returns the first id of the
	// reserved range.
	Reserve(ctx context.Context, name string, count int) (int64, error)
	// EnsureAtLeast fast-forwards the counter to at least value.
	EnsureAtLeast(ctx context.Context, name string, value int64) error
}

// Probe checks a candidate id range against the entity table. It reports
// whether any id is already materialized and the current observed maximum id,
// so the allocator can reseed past externally imported rows.
type Probe func(ctx context.Context, ids []int64) (conflict bool, observedMax int64, err error)

// Allocator issues gap-tolerant integer ranges from named counters. The
// persisted increment is not paired atomically with verifying the ids are
// unused, so callers minting primary keys go through AllocateVerified.
type Allocator struct {
	store  Store
	logger *slog.Logger
}

// NewAllocator builds an Allocator.
func NewAllocator(store Store, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{store: store, logger: logger}
}

// Allocate reserves count consecutive ids above the current counter value.
// No existence verification is performed.
func (a *Allocator) Allocate(ctx context.Context, name string, count int) ([]int64, error) {
	if count <= 0 {
		return nil, fmt.Errorf("sequence: count must be positive, got %d", count)
	}
	first, err := a.store.Reserve(ctx, name, count)
	if err != nil {
		return nil, fmt.Errorf("sequence: reserve %s: %w", name, err)
	}
	ids := make([]int64, count)
	for i := range ids {
		ids[i] = first + int64(i)
	}
	return ids, nil
}

// Next reserves a single id with no verification step. Used for append-only
// rows like ledger entries where the residual collision risk is accepted.
func (a *Allocator) Next(ctx context.Context, name string) (int64, error) {
	ids, err := a.Allocate(ctx, name, 1)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// EnsureAtLeast fast-forwards the named counter.
func (a *Allocator) EnsureAtLeast(ctx context.Context, name string, value int64) error {
	if err := a.store.EnsureAtLeast(ctx, name, value); err != nil {
		return fmt.Errorf("sequence: ensure %s >= %d: %w", name, value, err)
	}
	return nil
}

// AllocateVerified reserves ids destined to become primary keys. Each range is
// probed against the entity table; on collision the counter is fast-forwarded
// to the observed maximum and the allocation retried. This makes the allocator
// self-healing against imported data whose ids exceed the counter and against
// lost counter updates from concurrent allocation.
func (a *Allocator) AllocateVerified(ctx context.Context, name string, count int, probe Probe) ([]int64, error) {
	if probe == nil {
		return nil, fmt.Errorf("sequence: probe required for verified allocation of %s", name)
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ids, err := a.Allocate(ctx, name, count)
		if err != nil {
			return nil, err
		}
		conflict, observedMax, err := probe(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("sequence: probe %s: %w", name, err)
		}
		if !conflict {
			return ids, nil
		}
		a.logger.Warn("sequence collision, reseeding counter",
			slog.String("name", name),
			slog.Int64("observed_max", observedMax),
			slog.Int("attempt", attempt))
		if err := a.EnsureAtLeast(ctx, name, observedMax); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: counter %q after %d attempts", ErrExhausted, name, maxAttempts)
}
