package tax

// Share is one percentage tax's portion of a line's tax amount. Only shares
// with a positive amount are persisted as breakdown rows.
type Share struct {
	TaxID  int64
	Name   string
	Rate   float64
	Amount float64
}

// LineTax is the computed net/tax breakdown for one document line.
type LineTax struct {
	Net       float64
	TaxAmount float64
	Shares    []Share
	// RateSum is the combined percentage rate applied, kept for estimates
	// and reporting.
	RateSum float64
}
