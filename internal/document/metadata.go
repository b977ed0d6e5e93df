package document

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind tags the structured metadata variant carried on a document.
type Kind string

const (
	KindSale     Kind = "sale"
	KindPurchase Kind = "purchase"
	KindVoid     Kind = "void"
)

// MetadataVersion is written on every metadata payload this code produces.
const MetadataVersion = 1

// Reference points at another document.
type Reference struct {
	DocumentID  int64  `json:"documentId"`
	Number      string `json:"number,omitempty"`
	TypeID      int64  `json:"typeId,omitempty"`
	WarehouseID int64  `json:"warehouseId,omitempty"`
}

// SaleSnapshot is the point-of-sale snapshot embedded on sale documents.
type SaleSnapshot struct {
	ClientName string  `json:"clientName,omitempty"`
	IVATotal   float64 `json:"ivaTotal,omitempty"`
}

// PurchaseSnapshot is the purchase-liquidation snapshot on purchase documents.
type PurchaseSnapshot struct {
	SupplierName      string  `json:"supplierName,omitempty"`
	TotalIVA          float64 `json:"totalIVA,omitempty"`
	IVAIncludedInCost bool    `json:"ivaIncludedInCost,omitempty"`
	PricesIncludeTax  *bool   `json:"pricesIncludeTax,omitempty"`
}

// VoidInfo records the reversal linkage appended to a voided original.
type VoidInfo struct {
	ReversalDocumentID int64     `json:"reversalDocumentId"`
	ReversalNumber     string    `json:"reversalNumber,omitempty"`
	Reason             string    `json:"reason,omitempty"`
	At                 time.Time `json:"at"`
}

// Metadata is the explicitly tagged variant stored in a document's
// machine-readable note. Anything that fails to parse is a plain note.
type Metadata struct {
	Kind            Kind              `json:"kind,omitempty"`
	Version         int               `json:"version,omitempty"`
	SystemGenerated bool              `json:"systemGenerated,omitempty"`
	IdempotencyKey  string            `json:"idempotencyKey,omitempty"`
	Sale            *SaleSnapshot     `json:"sale,omitempty"`
	Purchase        *PurchaseSnapshot `json:"purchase,omitempty"`
	Reverses        *Reference        `json:"reverses,omitempty"`
	Void            *VoidInfo         `json:"void,omitempty"`
}

// ParseMetadata decodes a document's metadata field. The second return is
// false when the field is empty, not an object, or carries an unknown kind;
// callers then treat it as a plain note and skip structured updates.
func ParseMetadata(raw string) (Metadata, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return Metadata{}, false
	}
	var m Metadata
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
		return Metadata{}, false
	}
	switch m.Kind {
	case "", KindSale, KindPurchase, KindVoid:
	default:
		return Metadata{}, false
	}
	return m, true
}

// Encode serializes the metadata for storage.
func (m Metadata) Encode() string {
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

// MarksVoided reports whether the metadata identifies the document as a void
// reversal or as a voided original.
func (m Metadata) MarksVoided() bool {
	if m.Kind == KindVoid {
		return true
	}
	if m.Reverses != nil && m.Reverses.DocumentID != 0 {
		return true
	}
	return m.Void != nil && m.Void.ReversalDocumentID != 0
}

// NoteMarksVoided reports whether a free-text note carries a void marker.
func NoteMarksVoided(note string) bool {
	return strings.Contains(note, "ANULADO_ID:") ||
		strings.Contains(note, "ANULADO ->") ||
		strings.Contains(note, "VOIDED")
}
