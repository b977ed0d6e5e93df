package sequence

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists counters in PostgreSQL. The increment is a single
// upsert expression so concurrent reservations never hand out overlapping
// ranges; verification against the entity table still happens in the service.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Reserve advances the counter by count, creating it at count when absent,
// and returns the first id of the reserved range.
func (r *Repository) Reserve(ctx context.Context, name string, count int) (int64, error) {
	var value int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO counters (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + EXCLUDED.value
		RETURNING value`, name, count).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value - int64(count) + 1, nil
}

// EnsureAtLeast fast-forwards the counter, never moving it backwards.
func (r *Repository) EnsureAtLeast(ctx context.Context, name string, value int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO counters (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = GREATEST(counters.value, EXCLUDED.value)`,
		name, value)
	return err
}
