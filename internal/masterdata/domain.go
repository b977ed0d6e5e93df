package masterdata

// StockDirection is the per-document-type sign convention for stock.
type StockDirection string

const (
	// DirectionIn increases on-hand quantity (purchases, returns in).
	DirectionIn StockDirection = "IN"
	// DirectionOut decreases on-hand quantity (sales, returns out).
	DirectionOut StockDirection = "OUT"
	// DirectionNone has no stock impact (quotes, service documents).
	DirectionNone StockDirection = "NONE"
)

// Product master data. Name/code/unit/barcode are snapshotted onto document
// lines at write time so historical documents stay readable.
type Product struct {
	ID      int64
	Name    string
	Code    string
	Unit    string
	Barcode string
	Active  bool
}

// Tax master data. Fixed taxes contribute a flat per-unit amount; percentage
// taxes contribute a rate summed with other percentage taxes on a line.
type Tax struct {
	ID      int64
	Name    string
	Code    string
	Rate    float64
	Fixed   bool
	Enabled bool
}

// DocumentType carries the category and stock direction for a document kind.
type DocumentType struct {
	ID        int64
	Name      string
	Code      string
	Category  string
	Direction StockDirection
}

// Client is a sale counterparty.
type Client struct {
	ID   int64
	Name string
}

// Supplier is a purchase counterparty.
type Supplier struct {
	ID   int64
	Name string
}
