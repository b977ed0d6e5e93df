package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tienda-erp/tienda-erp/internal/shared"
)

// Repository provides read-side master data lookups plus the one write the
// ledger engine needs: ensuring a reversal document type exists.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProduct fetches a product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, code, unit, barcode, active FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Code, &p.Unit, &p.Barcode, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
		}
		return Product{}, err
	}
	return p, nil
}

// ProductTaxes returns the taxes assigned to a product, enabled or not;
// filtering is the tax engine's concern.
func (r *Repository) ProductTaxes(ctx context.Context, productID int64) ([]Tax, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.name, t.code, t.rate, t.is_fixed, t.is_enabled
		FROM product_taxes pt
		JOIN taxes t ON t.id = pt.tax_id
		WHERE pt.product_id = $1
		ORDER BY t.id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var taxes []Tax
	for rows.Next() {
		var t Tax
		if err := rows.Scan(&t.ID, &t.Name, &t.Code, &t.Rate, &t.Fixed, &t.Enabled); err != nil {
			return nil, err
		}
		taxes = append(taxes, t)
	}
	return taxes, rows.Err()
}

// GetDocumentType fetches a document type by id.
func (r *Repository) GetDocumentType(ctx context.Context, id int64) (DocumentType, error) {
	var t DocumentType
	err := r.pool.QueryRow(ctx, `SELECT id, name, code, category, stock_direction FROM document_types WHERE id=$1`, id).
		Scan(&t.ID, &t.Name, &t.Code, &t.Category, &t.Direction)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DocumentType{}, fmt.Errorf("%w: document type %d", shared.ErrNotFound, id)
		}
		return DocumentType{}, err
	}
	return t, nil
}

// ResolveReversalType finds a document type in the same category with the
// opposite stock direction, creating one when none exists.
func (r *Repository) ResolveReversalType(ctx context.Context, originalTypeID int64) (DocumentType, error) {
	original, err := r.GetDocumentType(ctx, originalTypeID)
	if err != nil {
		return DocumentType{}, err
	}
	opposite := DirectionNone
	switch original.Direction {
	case DirectionIn:
		opposite = DirectionOut
	case DirectionOut:
		opposite = DirectionIn
	default:
		return DocumentType{}, shared.Invalid("document type %d has no stock direction", originalTypeID)
	}

	var t DocumentType
	err = r.pool.QueryRow(ctx, `
		SELECT id, name, code, category, stock_direction FROM document_types
		WHERE category = $1 AND stock_direction = $2
		ORDER BY id LIMIT 1`, original.Category, opposite).
		Scan(&t.ID, &t.Name, &t.Code, &t.Category, &t.Direction)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return DocumentType{}, err
	}

	name := fmt.Sprintf("Reversal of %s", original.Name)
	code := fmt.Sprintf("%s-REV", original.Code)
	err = r.pool.QueryRow(ctx, `
		INSERT INTO document_types (name, code, category, stock_direction)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, code, category, stock_direction`,
		name, code, original.Category, opposite).
		Scan(&t.ID, &t.Name, &t.Code, &t.Category, &t.Direction)
	if err != nil {
		return DocumentType{}, err
	}
	return t, nil
}

// GetClient fetches a client by id.
func (r *Repository) GetClient(ctx context.Context, id int64) (Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM clients WHERE id=$1`, id).Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, fmt.Errorf("%w: client %d", shared.ErrNotFound, id)
		}
		return Client{}, err
	}
	return c, nil
}

// GetSupplier fetches a supplier by id.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM suppliers WHERE id=$1`, id).Scan(&s.ID, &s.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, fmt.Errorf("%w: supplier %d", shared.ErrNotFound, id)
		}
		return Supplier{}, err
	}
	return s, nil
}
