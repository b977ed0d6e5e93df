package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tienda-erp/tienda-erp/internal/ledger"
	"github.com/tienda-erp/tienda-erp/internal/masterdata"
	"github.com/tienda-erp/tienda-erp/internal/sequence"
	"github.com/tienda-erp/tienda-erp/internal/shared"
)

// LedgerPort is the slice of the stock writer the lifecycle needs.
type LedgerPort interface {
	Move(ctx context.Context, in ledger.MoveInput) (ledger.Movement, error)
}

// CreateLineInput is one line of a document being created.
type CreateLineInput struct {
	ProductID int64
	Quantity  float64
	UnitPrice float64
}

// CreateDocumentInput describes a document to create. When IdempotencyKey is
// set, a retried call returns the document the first call produced.
type CreateDocumentInput struct {
	TypeID          int64
	WarehouseID     int64
	ClientID        int64
	SupplierID      int64
	Date            time.Time
	DueDate         *time.Time
	Discount        float64
	DiscountType    DiscountType
	PaidStatus      PaidStatus
	IdempotencyKey  string
	ReferenceNumber string
	Note            string
	Meta            *Metadata
	CreatedBy       int64
	Lines           []CreateLineInput
}

// LifecyclePort creates documents and moves them through finalization.
type LifecyclePort interface {
	CreateDocument(ctx context.Context, in CreateDocumentInput) (Document, error)
	Finalize(ctx context.Context, documentID, userID int64) error
}

// Lifecycle is the default LifecyclePort implementation.
type Lifecycle struct {
	repo   RepositoryPort
	master MasterData
	taxes  TaxEngine
	seq    AllocatorPort
	stock  LedgerPort
	keys   *shared.IdempotencyStore
	logger *slog.Logger
}

// NewLifecycle builds Lifecycle. keys may be nil when idempotent creation is
// not needed (tests, backfills).
func NewLifecycle(repo RepositoryPort, master MasterData, taxes TaxEngine, seq AllocatorPort,
	stock LedgerPort, keys *shared.IdempotencyStore, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{repo: repo, master: master, taxes: taxes, seq: seq,
		stock: stock, keys: keys, logger: logger}
}

// CreateDocument allocates verified ids, writes the header, lines and tax
// rows, and returns the created document. The document starts non-finalized;
// stock is untouched until Finalize.
func (l *Lifecycle) CreateDocument(ctx context.Context, in CreateDocumentInput) (Document, error) {
	if in.TypeID == 0 {
		return Document{}, shared.Invalid("document type is required")
	}
	if len(in.Lines) == 0 {
		return Document{}, shared.Invalid("a document needs at least one line")
	}
	for _, line := range in.Lines {
		if line.ProductID == 0 || line.Quantity <= 0 {
			return Document{}, shared.Invalid("every line needs a product and a positive quantity")
		}
	}

	if in.IdempotencyKey != "" {
		if existing, err := l.repo.FindByIdempotencyKey(ctx, in.IdempotencyKey); err == nil {
			return existing, nil
		} else if !errors.Is(err, shared.ErrNotFound) {
			return Document{}, err
		}
		if l.keys != nil {
			if err := l.keys.CheckAndInsert(ctx, in.IdempotencyKey, "documents"); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					return l.repo.FindByIdempotencyKey(ctx, in.IdempotencyKey)
				}
				return Document{}, err
			}
		}
	}
	doc, err := l.create(ctx, in)
	if err != nil && in.IdempotencyKey != "" && l.keys != nil {
		if relErr := l.keys.Release(ctx, in.IdempotencyKey); relErr != nil {
			l.logger.Warn("idempotency key release failed",
				slog.String("key", in.IdempotencyKey), slog.Any("error", relErr))
		}
	}
	return doc, err
}

func (l *Lifecycle) create(ctx context.Context, in CreateDocumentInput) (Document, error) {
	dtype, err := l.master.GetDocumentType(ctx, in.TypeID)
	if err != nil {
		return Document{}, err
	}
	inclusive := true
	if dtype.Direction == masterdata.DirectionIn && in.Meta != nil &&
		in.Meta.Purchase != nil && in.Meta.Purchase.PricesIncludeTax != nil {
		inclusive = *in.Meta.Purchase.PricesIncludeTax
	}

	docIDs, err := l.seq.AllocateVerified(ctx, sequence.SeqDocument, 1, l.repo.DocumentsProbe)
	if err != nil {
		return Document{}, err
	}
	lineIDs, err := l.seq.AllocateVerified(ctx, sequence.SeqDocumentLine, len(in.Lines), l.repo.LinesProbe)
	if err != nil {
		return Document{}, err
	}

	lines := make([]Line, 0, len(in.Lines))
	taxRows := make(map[int64][]LineTaxRow, len(in.Lines))
	for i, li := range in.Lines {
		product, err := l.master.GetProduct(ctx, li.ProductID)
		if err != nil {
			return Document{}, err
		}
		gross := li.Quantity * li.UnitPrice
		lt, err := l.taxes.ComputeLine(ctx, li.ProductID, gross, inclusive)
		if err != nil {
			return Document{}, err
		}
		line := Line{
			ID:             lineIDs[i],
			DocumentID:     docIDs[0],
			ProductID:      li.ProductID,
			Quantity:       li.Quantity,
			UnitPrice:      li.UnitPrice,
			Net:            lt.Net,
			TaxAmount:      lt.TaxAmount,
			Total:          gross,
			ProductName:    product.Name,
			ProductCode:    product.Code,
			ProductUnit:    product.Unit,
			ProductBarcode: product.Barcode,
		}
		lines = append(lines, line)
		for _, share := range lt.Shares {
			taxRows[line.ID] = append(taxRows[line.ID], LineTaxRow{LineID: line.ID, TaxID: share.TaxID, Amount: share.Amount})
		}
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	discountType := in.DiscountType
	if discountType == "" {
		discountType = DiscountFlat
	}
	paidStatus := in.PaidStatus
	if paidStatus == "" {
		paidStatus = PaidStatusUnpaid
	}
	meta := ""
	if in.Meta != nil {
		m := *in.Meta
		m.Version = MetadataVersion
		meta = m.Encode()
	}
	doc := Document{
		ID:              docIDs[0],
		Number:          fmt.Sprintf("%s-%06d", dtype.Code, docIDs[0]),
		TypeID:          in.TypeID,
		WarehouseID:     in.WarehouseID,
		ClientID:        in.ClientID,
		SupplierID:      in.SupplierID,
		Date:            date,
		DueDate:         in.DueDate,
		Total:           DocumentTotal(lines, in.Discount, discountType),
		Discount:        in.Discount,
		DiscountType:    discountType,
		PaidStatus:      paidStatus,
		IdempotencyKey:  in.IdempotencyKey,
		ReferenceNumber: in.ReferenceNumber,
		Note:            in.Note,
		Meta:            meta,
		CreatedBy:       in.CreatedBy,
	}
	if err := l.repo.CreateDocument(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("document: create header: %w", err)
	}
	for _, line := range lines {
		if err := l.repo.InsertLine(ctx, line); err != nil {
			return Document{}, fmt.Errorf("document: insert line: %w", err)
		}
		for _, row := range taxRows[line.ID] {
			if err := l.repo.InsertLineTax(ctx, row); err != nil {
				return Document{}, fmt.Errorf("document: insert line tax: %w", err)
			}
		}
	}
	return doc, nil
}

// Finalize applies the document's stock impact and freezes it. Document types
// without a stock direction are frozen without ledger writes. Finalizing an
// already finalized document is a no-op.
func (l *Lifecycle) Finalize(ctx context.Context, documentID, userID int64) error {
	doc, err := l.repo.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Finalized {
		return nil
	}
	dtype, err := l.master.GetDocumentType(ctx, doc.TypeID)
	if err != nil {
		return err
	}
	if dtype.Direction != masterdata.DirectionNone {
		lines, err := l.repo.ListLines(ctx, documentID)
		if err != nil {
			return fmt.Errorf("document: list lines: %w", err)
		}
		for _, line := range lines {
			qty := line.Quantity
			movement := ledger.MovementIn
			if dtype.Direction == masterdata.DirectionOut {
				qty = -qty
				movement = ledger.MovementOut
			}
			_, err := l.stock.Move(ctx, ledger.MoveInput{
				ProductID:      line.ProductID,
				WarehouseID:    doc.WarehouseID,
				Quantity:       qty,
				Type:           movement,
				DocumentID:     doc.ID,
				DocumentLineID: line.ID,
				DocumentNumber: doc.Number,
				UserID:         userID,
				UnitPrice:      line.UnitPrice,
			})
			if err != nil {
				return fmt.Errorf("document: stock move for line %d: %w", line.ID, err)
			}
		}
	}
	if err := l.repo.SetFinalized(ctx, documentID); err != nil {
		return fmt.Errorf("document: finalize: %w", err)
	}
	return nil
}
