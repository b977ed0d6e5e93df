package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists stock balances and kardex entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ApplyDelta folds the delta into the balance row in one statement so two
// concurrent writers cannot lose an update at the storage layer.
func (r *Repository) ApplyDelta(ctx context.Context, productID, warehouseID int64, delta float64) (float64, error) {
	var quantity float64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO stock_balances (product_id, warehouse_id, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET quantity = stock_balances.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING quantity`, productID, warehouseID, delta).Scan(&quantity)
	if err != nil {
		return 0, err
	}
	return quantity, nil
}

// CurrentQuantity returns the on-hand quantity, 0 when no row exists.
func (r *Repository) CurrentQuantity(ctx context.Context, productID, warehouseID int64) (float64, error) {
	var quantity float64
	err := r.pool.QueryRow(ctx, `
		SELECT quantity FROM stock_balances WHERE product_id=$1 AND warehouse_id=$2`,
		productID, warehouseID).Scan(&quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return quantity, nil
}

// InsertEntry appends a kardex entry.
func (r *Repository) InsertEntry(ctx context.Context, entry Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO kardex_entries
			(id, product_id, warehouse_id, tx_type, quantity, balance,
			 document_id, document_line_id, document_number,
			 unit_cost, unit_price, note, user_id, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		entry.ID, entry.ProductID,
		pgtype.Int8{Int64: entry.WarehouseID, Valid: entry.WarehouseID != 0},
		string(entry.Type), entry.Quantity, entry.Balance,
		pgtype.Int8{Int64: entry.DocumentID, Valid: entry.DocumentID != 0},
		pgtype.Int8{Int64: entry.DocumentLineID, Valid: entry.DocumentLineID != 0},
		entry.DocumentNumber, entry.UnitCost, entry.UnitPrice, entry.Note,
		pgtype.Int8{Int64: entry.UserID, Valid: entry.UserID != 0},
		pgtype.Timestamptz{Time: entry.PostedAt, Valid: true})
	return err
}

// ListEntries returns kardex entries newest first.
func (r *Repository) ListEntries(ctx context.Context, filter Filter) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, COALESCE(warehouse_id, 0), tx_type, quantity, balance,
		       COALESCE(document_id, 0), COALESCE(document_line_id, 0), document_number,
		       unit_cost, unit_price, note, COALESCE(user_id, 0), posted_at
		FROM kardex_entries
		WHERE product_id = $1
		  AND ($2 = 0 OR warehouse_id = $2)
		  AND ($3::timestamptz IS NULL OR posted_at >= $3)
		  AND ($4::timestamptz IS NULL OR posted_at <= $4)
		ORDER BY id DESC
		LIMIT $5`,
		filter.ProductID, filter.WarehouseID,
		pgtype.Timestamptz{Time: filter.From, Valid: !filter.From.IsZero()},
		pgtype.Timestamptz{Time: filter.To, Valid: !filter.To.IsZero()},
		filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var txType string
		var posted pgtype.Timestamptz
		if err := rows.Scan(&e.ID, &e.ProductID, &e.WarehouseID, &txType, &e.Quantity, &e.Balance,
			&e.DocumentID, &e.DocumentLineID, &e.DocumentNumber,
			&e.UnitCost, &e.UnitPrice, &e.Note, &e.UserID, &posted); err != nil {
			return nil, err
		}
		e.Type = MovementType(txType)
		e.PostedAt = posted.Time
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
