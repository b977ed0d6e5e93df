package reporting

import "time"

// DocumentHeader is the read-side projection of a document the reports
// aggregate over. Direction comes joined from the document type.
type DocumentHeader struct {
	ID         int64
	Number     string
	TypeID     int64
	Direction  string
	ClientID   int64
	SupplierID int64
	Date       time.Time
	DueDate    *time.Time
	Total      float64
	PaidStatus string
	Note       string
	Meta       string
}

// CounterpartyCredit is one grouped row of the credit summary.
type CounterpartyCredit struct {
	Key            string  `json:"key"`
	CounterpartyID int64   `json:"counterpartyId,omitempty"`
	Name           string  `json:"name"`
	Pending        float64 `json:"pending"`
	DocumentCount  int     `json:"documentCount"`
	MaxDaysOverdue int     `json:"maxDaysOverdue"`
}

// CreditDocument is one open document surfaced as top-pending or most-overdue.
type CreditDocument struct {
	DocumentID  int64     `json:"documentId"`
	Number      string    `json:"number"`
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	Pending     float64   `json:"pending"`
	DaysOverdue int       `json:"daysOverdue"`
}

// CreditReport is the receivables/payables reconciliation result.
type CreditReport struct {
	Clients     []CounterpartyCredit `json:"clients"`
	Suppliers   []CounterpartyCredit `json:"suppliers"`
	TopPending  []CreditDocument     `json:"topPending"`
	MostOverdue []CreditDocument     `json:"mostOverdue"`
	Truncated   bool                 `json:"truncated"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

// VATSource records which resolver tier produced a document's VAT figure.
type VATSource string

const (
	SourceLineTaxes VATSource = "line_taxes"
	SourceMetadata  VATSource = "metadata"
	SourceEstimate  VATSource = "estimate"
	SourceNone      VATSource = "none"
)

// NetTaxRow is the per-document outcome of the VAT resolution.
type NetTaxRow struct {
	DocumentID int64     `json:"documentId"`
	Number     string    `json:"number"`
	Date       time.Time `json:"date"`
	Direction  string    `json:"direction"`
	Gross      float64   `json:"gross"`
	VAT        float64   `json:"vat"`
	Source     VATSource `json:"source"`
}

// NetTaxDay buckets VAT by calendar day.
type NetTaxDay struct {
	Day         string  `json:"day"`
	SalesVAT    float64 `json:"salesVat"`
	PurchaseVAT float64 `json:"purchaseVat"`
}

// NetTaxReport reconciles VAT charged on sales against VAT paid on purchases.
type NetTaxReport struct {
	SalesVAT    float64     `json:"salesVat"`
	PurchaseVAT float64     `json:"purchaseVat"`
	NetVAT      float64     `json:"netVat"`
	ByDay       []NetTaxDay `json:"byDay"`
	Documents   []NetTaxRow `json:"documents"`
	Truncated   bool        `json:"truncated"`
	GeneratedAt time.Time   `json:"generatedAt"`
}

// EstimateLine carries what tier three needs: the line's discount-adjusted
// total and the VAT-like rate sum of its product's taxes.
type EstimateLine struct {
	Total      float64
	VATRateSum float64
}
