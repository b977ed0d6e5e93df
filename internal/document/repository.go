package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tienda-erp/tienda-erp/internal/shared"
)

// RepositoryPort abstracts document persistence for the service. The store
// offers no multi-row transactions to the workflow layer: each method is one
// independent write, and workflows are explicit step sequences.
type RepositoryPort interface {
	GetDocument(ctx context.Context, id int64) (Document, error)
	CreateDocument(ctx context.Context, doc Document) error
	SetFinalized(ctx context.Context, id int64) error
	UpdateTotal(ctx context.Context, id int64, total float64) error
	UpdateAnnotations(ctx context.Context, id int64, note, meta string) error
	FindByIdempotencyKey(ctx context.Context, key string) (Document, error)
	// DocumentsProbe reports whether any candidate id is taken and the
	// current maximum document id.
	DocumentsProbe(ctx context.Context, ids []int64) (bool, int64, error)

	ListLines(ctx context.Context, documentID int64) ([]Line, error)
	InsertLine(ctx context.Context, line Line) error
	UpdateLine(ctx context.Context, line Line) error
	DeleteLine(ctx context.Context, lineID int64) error
	LinesProbe(ctx context.Context, ids []int64) (bool, int64, error)

	DeleteLineTaxes(ctx context.Context, lineID int64) error
	InsertLineTax(ctx context.Context, row LineTaxRow) error

	UpsertPriceView(ctx context.Context, line Line) error
	DeletePriceView(ctx context.Context, lineID int64) error
}

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const documentColumns = `id, number, type_id, warehouse_id, COALESCE(client_id, 0), COALESCE(supplier_id, 0),
	doc_date, due_date, total, discount, discount_type, paid_status, is_finalized,
	COALESCE(idempotency_key, ''), COALESCE(reference_number, ''), note, meta, COALESCE(created_by, 0)`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	var due pgtype.Timestamptz
	var discountType, paidStatus string
	err := row.Scan(&d.ID, &d.Number, &d.TypeID, &d.WarehouseID, &d.ClientID, &d.SupplierID,
		&d.Date, &due, &d.Total, &d.Discount, &discountType, &paidStatus, &d.Finalized,
		&d.IdempotencyKey, &d.ReferenceNumber, &d.Note, &d.Meta, &d.CreatedBy)
	if err != nil {
		return Document{}, err
	}
	d.DiscountType = DiscountType(discountType)
	d.PaidStatus = PaidStatus(paidStatus)
	if due.Valid {
		t := due.Time
		d.DueDate = &t
	}
	return d, nil
}

// GetDocument fetches a document header.
func (r *Repository) GetDocument(ctx context.Context, id int64) (Document, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("%w: document %d", shared.ErrNotFound, id)
		}
		return Document{}, err
	}
	return doc, nil
}

// CreateDocument inserts a header with an explicit, allocator-issued id.
func (r *Repository) CreateDocument(ctx context.Context, doc Document) error {
	var due pgtype.Timestamptz
	if doc.DueDate != nil {
		due = pgtype.Timestamptz{Time: *doc.DueDate, Valid: true}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents
			(id, number, type_id, warehouse_id, client_id, supplier_id, doc_date, due_date,
			 total, discount, discount_type, paid_status, is_finalized,
			 idempotency_key, reference_number, note, meta, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        NULLIF($14, ''), NULLIF($15, ''), $16, $17, $18)`,
		doc.ID, doc.Number, doc.TypeID, doc.WarehouseID,
		pgtype.Int8{Int64: doc.ClientID, Valid: doc.ClientID != 0},
		pgtype.Int8{Int64: doc.SupplierID, Valid: doc.SupplierID != 0},
		doc.Date, due, doc.Total, doc.Discount, string(doc.DiscountType), string(doc.PaidStatus),
		doc.Finalized, doc.IdempotencyKey, doc.ReferenceNumber, doc.Note, doc.Meta, doc.CreatedBy)
	return err
}

// SetFinalized freezes the document's financial content.
func (r *Repository) SetFinalized(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE documents SET is_finalized = TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %d", shared.ErrNotFound, id)
	}
	return nil
}

// UpdateTotal persists a recomputed document total.
func (r *Repository) UpdateTotal(ctx context.Context, id int64, total float64) error {
	_, err := r.pool.Exec(ctx, `UPDATE documents SET total=$2 WHERE id=$1`, id, total)
	return err
}

// UpdateAnnotations rewrites only the note and metadata fields.
func (r *Repository) UpdateAnnotations(ctx context.Context, id int64, note, meta string) error {
	_, err := r.pool.Exec(ctx, `UPDATE documents SET note=$2, meta=$3 WHERE id=$1`, id, note, meta)
	return err
}

// FindByIdempotencyKey returns the document claimed by key, if any.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (Document, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE idempotency_key=$1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("%w: idempotency key %q", shared.ErrNotFound, key)
		}
		return Document{}, err
	}
	return doc, nil
}

// DocumentsProbe checks candidate ids against the documents table.
func (r *Repository) DocumentsProbe(ctx context.Context, ids []int64) (bool, int64, error) {
	return r.probe(ctx, "documents", ids)
}

// LinesProbe checks candidate ids against the document_lines table.
func (r *Repository) LinesProbe(ctx context.Context, ids []int64) (bool, int64, error) {
	return r.probe(ctx, "document_lines", ids)
}

func (r *Repository) probe(ctx context.Context, table string, ids []int64) (bool, int64, error) {
	var conflict bool
	var observedMax int64
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = ANY($1)), COALESCE(MAX(id), 0) FROM %s`, table, table)
	if err := r.pool.QueryRow(ctx, query, ids).Scan(&conflict, &observedMax); err != nil {
		return false, 0, err
	}
	return conflict, observedMax, nil
}

const lineColumns = `id, document_id, product_id, quantity, unit_price, discount, discount_type,
	net, tax_amount, total, product_name, product_code, product_unit, product_barcode`

// ListLines returns a document's lines in id order.
func (r *Repository) ListLines(ctx context.Context, documentID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+lineColumns+` FROM document_lines WHERE document_id=$1 ORDER BY id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		var discountType string
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.ProductID, &l.Quantity, &l.UnitPrice,
			&l.Discount, &discountType, &l.Net, &l.TaxAmount, &l.Total,
			&l.ProductName, &l.ProductCode, &l.ProductUnit, &l.ProductBarcode); err != nil {
			return nil, err
		}
		l.DiscountType = DiscountType(discountType)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// InsertLine inserts a line with an explicit, allocator-issued id.
func (r *Repository) InsertLine(ctx context.Context, line Line) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO document_lines
			(id, document_id, product_id, quantity, unit_price, discount, discount_type,
			 net, tax_amount, total, product_name, product_code, product_unit, product_barcode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		line.ID, line.DocumentID, line.ProductID, line.Quantity, line.UnitPrice,
		line.Discount, string(line.DiscountType), line.Net, line.TaxAmount, line.Total,
		line.ProductName, line.ProductCode, line.ProductUnit, line.ProductBarcode)
	return err
}

// UpdateLine rewrites the mutable fields of a line.
func (r *Repository) UpdateLine(ctx context.Context, line Line) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE document_lines
		SET quantity=$2, unit_price=$3, net=$4, tax_amount=$5, total=$6
		WHERE id=$1`,
		line.ID, line.Quantity, line.UnitPrice, line.Net, line.TaxAmount, line.Total)
	return err
}

// DeleteLine removes a line.
func (r *Repository) DeleteLine(ctx context.Context, lineID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM document_lines WHERE id=$1`, lineID)
	return err
}

// DeleteLineTaxes removes all breakdown rows for a line.
func (r *Repository) DeleteLineTaxes(ctx context.Context, lineID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM document_line_taxes WHERE line_id=$1`, lineID)
	return err
}

// InsertLineTax inserts one breakdown row.
func (r *Repository) InsertLineTax(ctx context.Context, row LineTaxRow) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO document_line_taxes (line_id, tax_id, amount) VALUES ($1, $2, $3)`,
		row.LineID, row.TaxID, row.Amount)
	return err
}

// UpsertPriceView maintains the derived last-price row for a line.
func (r *Repository) UpsertPriceView(ctx context.Context, line Line) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO price_views (line_id, product_id, unit_price, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (line_id) DO UPDATE SET unit_price = EXCLUDED.unit_price, updated_at = NOW()`,
		line.ID, line.ProductID, line.UnitPrice)
	return err
}

// DeletePriceView removes the derived price row for a line.
func (r *Repository) DeletePriceView(ctx context.Context, lineID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM price_views WHERE line_id=$1`, lineID)
	return err
}
