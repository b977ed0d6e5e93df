package document

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tienda-erp/tienda-erp/internal/masterdata"
	"github.com/tienda-erp/tienda-erp/internal/shared"
)

// VoidResult identifies the reversal document produced by a void.
type VoidResult struct {
	ReversalDocumentID int64  `json:"reversalDocumentId"`
	ReversalNumber     string `json:"reversalNumber"`
}

// Void reverses a finalized document by creating and finalizing an
// opposite-direction reversal document, then annotating the original. The
// original is never deleted and its financial fields never change. Annotation
// is best-effort: once the reversal is finalized the void has happened, and an
// annotation failure is logged, not returned.
func (s *Service) Void(ctx context.Context, documentID int64, reason string, userID int64) (VoidResult, error) {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return VoidResult{}, err
	}
	if !doc.Finalized {
		return VoidResult{}, shared.Invalid("document %d is not finalized and cannot be voided", documentID)
	}

	meta, metaOK := ParseMetadata(doc.Meta)
	if metaOK && meta.Void != nil && meta.Void.ReversalDocumentID != 0 {
		return VoidResult{ReversalDocumentID: meta.Void.ReversalDocumentID, ReversalNumber: meta.Void.ReversalNumber}, nil
	}
	if NoteMarksVoided(doc.Note) || (metaOK && meta.MarksVoided()) {
		return VoidResult{}, shared.Invalid("document %d is already voided", documentID)
	}

	dtype, err := s.master.GetDocumentType(ctx, doc.TypeID)
	if err != nil {
		return VoidResult{}, err
	}

	// No stock direction means no reversal document: a timestamped marker on
	// the note is the whole void.
	if dtype.Direction == masterdata.DirectionNone {
		note := appendNote(doc.Note, fmt.Sprintf("VOIDED %s", time.Now().UTC().Format(time.RFC3339)))
		if err := s.repo.UpdateAnnotations(ctx, doc.ID, note, doc.Meta); err != nil {
			return VoidResult{}, fmt.Errorf("document: mark voided: %w", err)
		}
		s.recordAudit(ctx, userID, "document:void", doc.ID,
			map[string]any{"note": doc.Note}, map[string]any{"note": note})
		s.invalidateReports(ctx)
		return VoidResult{}, nil
	}

	lines, err := s.repo.ListLines(ctx, documentID)
	if err != nil {
		return VoidResult{}, fmt.Errorf("document: list lines: %w", err)
	}
	inputs := make([]CreateLineInput, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == 0 || line.Quantity <= 0 {
			continue
		}
		inputs = append(inputs, CreateLineInput{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	if len(inputs) == 0 {
		return VoidResult{}, shared.Invalid("document %d has no reversible lines", documentID)
	}

	rtype, err := s.resolver.ResolveReversalType(ctx, doc.TypeID)
	if err != nil {
		return VoidResult{}, err
	}

	rmeta := &Metadata{
		Kind:            KindVoid,
		SystemGenerated: true,
		IdempotencyKey:  fmt.Sprintf("void-%d", doc.ID),
		Reverses: &Reference{
			DocumentID:  doc.ID,
			Number:      doc.Number,
			TypeID:      doc.TypeID,
			WarehouseID: doc.WarehouseID,
		},
	}
	name := s.counterpartyName(ctx, doc, meta, metaOK)
	if doc.ClientID != 0 {
		rmeta.Sale = &SaleSnapshot{ClientName: name}
	} else if doc.SupplierID != 0 {
		rmeta.Purchase = &PurchaseSnapshot{SupplierName: name}
	}

	note := fmt.Sprintf("Reversal of %s", doc.Number)
	if reason != "" {
		note += " · " + reason
	}
	reversal, err := s.lifecycle.CreateDocument(ctx, CreateDocumentInput{
		TypeID:          rtype.ID,
		WarehouseID:     doc.WarehouseID,
		ClientID:        doc.ClientID,
		SupplierID:      doc.SupplierID,
		Discount:        doc.Discount,
		DiscountType:    doc.DiscountType,
		PaidStatus:      PaidStatusPaid,
		IdempotencyKey:  fmt.Sprintf("void-%d", doc.ID),
		ReferenceNumber: doc.Number,
		Note:            note,
		Meta:            rmeta,
		CreatedBy:       userID,
		Lines:           inputs,
	})
	if err != nil {
		return VoidResult{}, err
	}
	if err := s.lifecycle.Finalize(ctx, reversal.ID, userID); err != nil {
		return VoidResult{}, fmt.Errorf("document: finalize reversal %d: %w", reversal.ID, err)
	}

	s.annotateVoided(ctx, doc, meta, metaOK, reversal, reason)
	s.recordAudit(ctx, userID, "document:void", doc.ID,
		map[string]any{"finalized": true},
		map[string]any{"reversal_document_id": reversal.ID, "reversal_number": reversal.Number})
	s.invalidateReports(ctx)
	return VoidResult{ReversalDocumentID: reversal.ID, ReversalNumber: reversal.Number}, nil
}

// annotateVoided stamps the original document with the reversal linkage.
// Failures are logged and swallowed; the reversal already stands.
func (s *Service) annotateVoided(ctx context.Context, doc Document, meta Metadata, metaOK bool, reversal Document, reason string) {
	note := appendNote(doc.Note, fmt.Sprintf("ANULADO -> %s · ANULADO_ID:%d", reversal.Number, reversal.ID))
	info := &VoidInfo{
		ReversalDocumentID: reversal.ID,
		ReversalNumber:     reversal.Number,
		Reason:             reason,
		At:                 time.Now().UTC(),
	}
	encoded := doc.Meta
	switch {
	case metaOK:
		meta.Void = info
		encoded = meta.Encode()
	case strings.TrimSpace(doc.Meta) == "":
		encoded = Metadata{Version: MetadataVersion, Void: info}.Encode()
	}
	if err := s.repo.UpdateAnnotations(ctx, doc.ID, note, encoded); err != nil {
		s.logger.Error("void annotation failed, reversal already finalized",
			slog.Int64("document_id", doc.ID),
			slog.Int64("reversal_document_id", reversal.ID),
			slog.Any("error", err))
	}
}

// counterpartyName prefers the name snapshotted in the original's metadata,
// then the client/supplier directory, then "Anonymous". Directory lookup
// failures fall through; the name is cosmetic and never blocks a void.
func (s *Service) counterpartyName(ctx context.Context, doc Document, meta Metadata, ok bool) string {
	if ok {
		if meta.Sale != nil && meta.Sale.ClientName != "" {
			return meta.Sale.ClientName
		}
		if meta.Purchase != nil && meta.Purchase.SupplierName != "" {
			return meta.Purchase.SupplierName
		}
	}
	switch {
	case doc.ClientID != 0:
		if c, err := s.master.GetClient(ctx, doc.ClientID); err == nil && c.Name != "" {
			return c.Name
		}
	case doc.SupplierID != 0:
		if sup, err := s.master.GetSupplier(ctx, doc.SupplierID); err == nil && sup.Name != "" {
			return sup.Name
		}
	}
	return "Anonymous"
}

func appendNote(note, marker string) string {
	if note == "" {
		return marker
	}
	return note + "\n" + marker
}
