package document

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tienda-erp/tienda-erp/internal/shared"
)

// DiscountType selects how a discount value is applied.
type DiscountType string

const (
	// DiscountFlat subtracts the value from the amount.
	DiscountFlat DiscountType = "FLAT"
	// DiscountPercent multiplies the amount by (1 - value/100).
	DiscountPercent DiscountType = "PERCENT"
)

// PaidStatus tracks settlement state for receivables reporting.
type PaidStatus string

const (
	PaidStatusUnpaid  PaidStatus = "UNPAID"
	PaidStatusPartial PaidStatus = "PARTIAL"
	PaidStatusPaid    PaidStatus = "PAID"
)

// ErrFinalized indicates an attempted edit of a finalized document.
var ErrFinalized = shared.ErrDocumentFinalized

// Document is a business document header. Created non-finalized; financial
// fields freeze at finalize and only annotations (Note/Meta) change after.
type Document struct {
	ID              int64
	Number          string
	TypeID          int64
	WarehouseID     int64
	ClientID        int64
	SupplierID      int64
	Date            time.Time
	DueDate         *time.Time
	Total           float64
	Discount        float64
	DiscountType    DiscountType
	PaidStatus      PaidStatus
	Finalized       bool
	IdempotencyKey  string
	ReferenceNumber string
	Note            string
	Meta            string
	CreatedBy       int64
}

// Line is one document line. Product name/code/unit/barcode are snapshots
// taken at write time so the document stays readable if master data changes.
type Line struct {
	ID             int64
	DocumentID     int64
	ProductID      int64
	Quantity       float64
	UnitPrice      float64
	Discount       float64
	DiscountType   DiscountType
	Net            float64
	TaxAmount      float64
	Total          float64
	ProductName    string
	ProductCode    string
	ProductUnit    string
	ProductBarcode string
}

// LineTaxRow is one persisted per-tax breakdown row for a line. Rows are
// fully rewritten whenever the line's price/quantity/discount changes.
type LineTaxRow struct {
	LineID int64
	TaxID  int64
	Amount float64
}

// LineChange describes one requested change against a non-finalized document.
// Exactly one of LineID (update/remove) or ProductID (create) must be set.
type LineChange struct {
	LineID    int64
	ProductID int64
	Quantity  float64
	UnitPrice float64
	Remove    bool
}

// ApplyDiscount applies a discount of the given type to amount.
func ApplyDiscount(amount, discount float64, dt DiscountType) float64 {
	d := decimal.NewFromFloat(amount)
	switch dt {
	case DiscountPercent:
		factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discount).Div(decimal.NewFromInt(100)))
		d = d.Mul(factor)
	case DiscountFlat:
		d = d.Sub(decimal.NewFromFloat(discount))
	}
	f, _ := d.Round(2).Float64()
	return f
}

// DocumentTotal sums quantity x price across lines and applies the
// document-level discount.
func DocumentTotal(lines []Line, discount float64, dt DiscountType) float64 {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(decimal.NewFromFloat(line.Quantity).Mul(decimal.NewFromFloat(line.UnitPrice)))
	}
	f, _ := sum.Round(2).Float64()
	return ApplyDiscount(f, discount, dt)
}
