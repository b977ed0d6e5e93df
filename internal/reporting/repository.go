package reporting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReadStore is the read-only substrate both reports aggregate over. The
// reporting module never writes.
type ReadStore interface {
	DocumentsInWindow(ctx context.Context, from, to time.Time, limit int) ([]DocumentHeader, error)
	PaymentTotals(ctx context.Context, documentIDs []int64) (map[int64]float64, error)
	ClientNames(ctx context.Context, ids []int64) (map[int64]string, error)
	SupplierNames(ctx context.Context, ids []int64) (map[int64]string, error)
	// VATLineTaxTotal sums a document's persisted line-tax rows whose tax is
	// VAT-like.
	VATLineTaxTotal(ctx context.Context, documentID int64) (float64, error)
	// EstimateLines returns, per line, the discount-adjusted total and the
	// VAT-like rate sum of the line's product.
	EstimateLines(ctx context.Context, documentID int64) ([]EstimateLine, error)
}

// Repository is the PostgreSQL ReadStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DocumentsInWindow lists finalized documents in [from, to) joined with their
// type's stock direction, newest first, capped at limit+1 so callers can
// detect truncation.
func (r *Repository) DocumentsInWindow(ctx context.Context, from, to time.Time, limit int) ([]DocumentHeader, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.id, d.number, d.type_id, dt.stock_direction,
		       COALESCE(d.client_id, 0), COALESCE(d.supplier_id, 0),
		       d.doc_date, d.due_date, d.total, d.paid_status, d.note, d.meta
		FROM documents d
		JOIN document_types dt ON dt.id = d.type_id
		WHERE d.is_finalized AND d.doc_date >= $1 AND d.doc_date < $2
		ORDER BY d.doc_date DESC, d.id DESC
		LIMIT $3`, from, to, limit+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DocumentHeader
	for rows.Next() {
		var h DocumentHeader
		var due pgtype.Timestamptz
		if err := rows.Scan(&h.ID, &h.Number, &h.TypeID, &h.Direction, &h.ClientID, &h.SupplierID,
			&h.Date, &due, &h.Total, &h.PaidStatus, &h.Note, &h.Meta); err != nil {
			return nil, err
		}
		if due.Valid {
			t := due.Time
			h.DueDate = &t
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// PaymentTotals sums recorded payments per document.
func (r *Repository) PaymentTotals(ctx context.Context, documentIDs []int64) (map[int64]float64, error) {
	totals := make(map[int64]float64, len(documentIDs))
	if len(documentIDs) == 0 {
		return totals, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT document_id, COALESCE(SUM(amount), 0)
		FROM payments
		WHERE document_id = ANY($1)
		GROUP BY document_id`, documentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var sum float64
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		totals[id] = sum
	}
	return totals, rows.Err()
}

// ClientNames resolves display names for client ids.
func (r *Repository) ClientNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	return r.names(ctx, "clients", ids)
}

// SupplierNames resolves display names for supplier ids.
func (r *Repository) SupplierNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	return r.names(ctx, "suppliers", ids)
}

func (r *Repository) names(ctx context.Context, table string, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM `+table+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

// VATLineTaxTotal sums persisted per-line tax rows whose tax name or code
// mentions IVA.
func (r *Repository) VATLineTaxTotal(ctx context.Context, documentID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(dlt.amount), 0)
		FROM document_line_taxes dlt
		JOIN document_lines dl ON dl.id = dlt.line_id
		JOIN taxes t ON t.id = dlt.tax_id
		WHERE dl.document_id = $1
		  AND (UPPER(t.name) LIKE '%IVA%' OR UPPER(t.code) LIKE '%IVA%')`, documentID).Scan(&total)
	return total, err
}

// EstimateLines loads, per line, the discount-adjusted total and the summed
// rate of the product's enabled, percentage, VAT-like taxes.
func (r *Repository) EstimateLines(ctx context.Context, documentID int64) ([]EstimateLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT dl.total,
		       COALESCE((
		           SELECT SUM(t.rate)
		           FROM product_taxes pt
		           JOIN taxes t ON t.id = pt.tax_id
		           WHERE pt.product_id = dl.product_id
		             AND t.is_enabled AND NOT t.is_fixed
		             AND (UPPER(t.name) LIKE '%IVA%' OR UPPER(t.code) LIKE '%IVA%')
		       ), 0)
		FROM document_lines dl
		WHERE dl.document_id = $1`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EstimateLine
	for rows.Next() {
		var line EstimateLine
		if err := rows.Scan(&line.Total, &line.VATRateSum); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}
