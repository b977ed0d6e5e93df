package document

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tienda-erp/tienda-erp/internal/masterdata"
	"github.com/tienda-erp/tienda-erp/internal/sequence"
	"github.com/tienda-erp/tienda-erp/internal/shared"
	"github.com/tienda-erp/tienda-erp/internal/tax"
)

// MasterData provides the lookups the document workflows need.
type MasterData interface {
	GetProduct(ctx context.Context, id int64) (masterdata.Product, error)
	GetDocumentType(ctx context.Context, id int64) (masterdata.DocumentType, error)
	GetClient(ctx context.Context, id int64) (masterdata.Client, error)
	GetSupplier(ctx context.Context, id int64) (masterdata.Supplier, error)
}

// TaxEngine computes per-line tax breakdowns.
type TaxEngine interface {
	ComputeLine(ctx context.Context, productID int64, gross float64, pricesIncludeTax bool) (tax.LineTax, error)
}

// AllocatorPort issues verified primary-key ranges.
type AllocatorPort interface {
	AllocateVerified(ctx context.Context, name string, count int, probe sequence.Probe) ([]int64, error)
}

// TypeResolver finds or creates the opposite-direction document type.
type TypeResolver interface {
	ResolveReversalType(ctx context.Context, originalTypeID int64) (masterdata.DocumentType, error)
}

// Invalidator drops cached reports after successful mutations. Best-effort.
type Invalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// Service owns the document-side workflows: line rewriting and voiding.
type Service struct {
	repo      RepositoryPort
	master    MasterData
	taxes     TaxEngine
	seq       AllocatorPort
	lifecycle LifecyclePort
	resolver  TypeResolver
	audit     shared.AuditPort
	cache     Invalidator
	logger    *slog.Logger
}

// NewService builds Service. audit and cache may be nil.
func NewService(repo RepositoryPort, master MasterData, taxes TaxEngine, seq AllocatorPort,
	lifecycle LifecyclePort, resolver TypeResolver, audit shared.AuditPort, cache Invalidator,
	logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, master: master, taxes: taxes, seq: seq,
		lifecycle: lifecycle, resolver: resolver, audit: audit, cache: cache, logger: logger}
}

// ApplyLineChanges reconciles requested line changes against a non-finalized
// document: deletions, then creations, then updates, then total recompute.
// Validation and not-found checks precede any mutation; once mutation begins,
// earlier steps are never rolled back.
func (s *Service) ApplyLineChanges(ctx context.Context, documentID int64, changes []LineChange, userID int64) error {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Finalized {
		return fmt.Errorf("%w: document %d", ErrFinalized, documentID)
	}
	if len(changes) == 0 {
		return shared.Invalid("no line changes supplied")
	}

	existing, err := s.repo.ListLines(ctx, documentID)
	if err != nil {
		return fmt.Errorf("document: list lines: %w", err)
	}
	byID := make(map[int64]Line, len(existing))
	for _, line := range existing {
		byID[line.ID] = line
	}

	for i, change := range changes {
		if (change.LineID == 0) == (change.ProductID == 0) {
			return shared.Invalid("change %d must reference exactly one of line id or product id", i)
		}
		if change.LineID != 0 {
			if _, ok := byID[change.LineID]; !ok {
				return fmt.Errorf("%w: line %d in document %d", shared.ErrNotFound, change.LineID, documentID)
			}
			continue
		}
		if change.Quantity <= 0 {
			return shared.Invalid("change %d needs a positive quantity for product %d", i, change.ProductID)
		}
	}

	inclusive, err := s.pricesIncludeTax(ctx, doc)
	if err != nil {
		return err
	}
	before := linesSnapshot(existing)

	var creates, updates []LineChange
	for _, change := range changes {
		switch {
		case change.LineID != 0 && (change.Remove || change.Quantity <= 0):
			if err := s.deleteLine(ctx, change.LineID); err != nil {
				return err
			}
			delete(byID, change.LineID)
		case change.LineID != 0:
			updates = append(updates, change)
		default:
			creates = append(creates, change)
		}
	}

	if len(creates) > 0 {
		if err := s.createLines(ctx, doc, creates, inclusive); err != nil {
			return err
		}
	}
	for _, change := range updates {
		if err := s.updateLine(ctx, byID[change.LineID], change, inclusive); err != nil {
			return err
		}
	}

	lines, err := s.repo.ListLines(ctx, documentID)
	if err != nil {
		return fmt.Errorf("document: reload lines: %w", err)
	}
	total := DocumentTotal(lines, doc.Discount, doc.DiscountType)
	if err := s.repo.UpdateTotal(ctx, documentID, total); err != nil {
		return fmt.Errorf("document: update total: %w", err)
	}

	s.recordAudit(ctx, userID, "document:lines:apply", documentID, before, linesSnapshot(lines))
	s.invalidateReports(ctx)
	return nil
}

func (s *Service) deleteLine(ctx context.Context, lineID int64) error {
	if err := s.repo.DeleteLineTaxes(ctx, lineID); err != nil {
		return fmt.Errorf("document: delete line taxes: %w", err)
	}
	if err := s.repo.DeletePriceView(ctx, lineID); err != nil {
		s.logger.Warn("price view delete failed", slog.Int64("line_id", lineID), slog.Any("error", err))
	}
	if err := s.repo.DeleteLine(ctx, lineID); err != nil {
		return fmt.Errorf("document: delete line: %w", err)
	}
	return nil
}

func (s *Service) createLines(ctx context.Context, doc Document, creates []LineChange, inclusive bool) error {
	ids, err := s.seq.AllocateVerified(ctx, sequence.SeqDocumentLine, len(creates), s.repo.LinesProbe)
	if err != nil {
		return err
	}
	for i, change := range creates {
		product, err := s.master.GetProduct(ctx, change.ProductID)
		if err != nil {
			return err
		}
		// No line discount on the create path; gross is quantity x price.
		gross := change.Quantity * change.UnitPrice
		lt, err := s.taxes.ComputeLine(ctx, change.ProductID, gross, inclusive)
		if err != nil {
			return err
		}
		line := Line{
			ID:             ids[i],
			DocumentID:     doc.ID,
			ProductID:      change.ProductID,
			Quantity:       change.Quantity,
			UnitPrice:      change.UnitPrice,
			Net:            lt.Net,
			TaxAmount:      lt.TaxAmount,
			Total:          gross,
			ProductName:    product.Name,
			ProductCode:    product.Code,
			ProductUnit:    product.Unit,
			ProductBarcode: product.Barcode,
		}
		if err := s.repo.InsertLine(ctx, line); err != nil {
			return fmt.Errorf("document: insert line: %w", err)
		}
		if err := s.writeTaxRows(ctx, line.ID, lt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) updateLine(ctx context.Context, line Line, change LineChange, inclusive bool) error {
	line.Quantity = change.Quantity
	line.UnitPrice = change.UnitPrice
	grossAfterDiscount := ApplyDiscount(line.Quantity*line.UnitPrice, line.Discount, line.DiscountType)
	lt, err := s.taxes.ComputeLine(ctx, line.ProductID, grossAfterDiscount, inclusive)
	if err != nil {
		return err
	}
	line.Net = lt.Net
	line.TaxAmount = lt.TaxAmount
	line.Total = grossAfterDiscount
	if err := s.repo.UpdateLine(ctx, line); err != nil {
		return fmt.Errorf("document: update line: %w", err)
	}
	if err := s.repo.DeleteLineTaxes(ctx, line.ID); err != nil {
		return fmt.Errorf("document: rewrite line taxes: %w", err)
	}
	if err := s.writeTaxRows(ctx, line.ID, lt); err != nil {
		return err
	}
	if err := s.repo.UpsertPriceView(ctx, line); err != nil {
		s.logger.Warn("price view upsert failed", slog.Int64("line_id", line.ID), slog.Any("error", err))
	}
	return nil
}

func (s *Service) writeTaxRows(ctx context.Context, lineID int64, lt tax.LineTax) error {
	for _, share := range lt.Shares {
		row := LineTaxRow{LineID: lineID, TaxID: share.TaxID, Amount: share.Amount}
		if err := s.repo.InsertLineTax(ctx, row); err != nil {
			return fmt.Errorf("document: insert line tax: %w", err)
		}
	}
	return nil
}

// pricesIncludeTax resolves the pricing convention for a document. Sale
// documents are always tax-inclusive; purchase documents carry a flag in
// their structured metadata, defaulting to inclusive when absent.
func (s *Service) pricesIncludeTax(ctx context.Context, doc Document) (bool, error) {
	dtype, err := s.master.GetDocumentType(ctx, doc.TypeID)
	if err != nil {
		return false, err
	}
	if dtype.Direction != masterdata.DirectionIn {
		return true, nil
	}
	meta, ok := ParseMetadata(doc.Meta)
	if !ok || meta.Purchase == nil || meta.Purchase.PricesIncludeTax == nil {
		return true, nil
	}
	return *meta.Purchase.PricesIncludeTax, nil
}

func (s *Service) recordAudit(ctx context.Context, userID int64, action string, recordID int64, before, after map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditEntry{
		UserID:    userID,
		Action:    action,
		Table:     "documents",
		RecordID:  strconv.FormatInt(recordID, 10),
		OldValues: before,
		NewValues: after,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) invalidateReports(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "reports:*"); err != nil {
		s.logger.Warn("report cache invalidation failed", slog.Any("error", err))
	}
}

func linesSnapshot(lines []Line) map[string]any {
	items := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		items = append(items, map[string]any{
			"id":         l.ID,
			"product_id": l.ProductID,
			"quantity":   l.Quantity,
			"unit_price": l.UnitPrice,
			"total":      l.Total,
		})
	}
	return map[string]any{"lines": items}
}
