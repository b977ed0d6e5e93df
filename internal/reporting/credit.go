package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tienda-erp/tienda-erp/internal/document"
)

const (
	defaultDocumentCap = 5000
	topListSize        = 10
)

// Service builds read-only reconciliation reports. It never writes.
type Service struct {
	store  ReadStore
	logger *slog.Logger

	// vatPercent backs the derived tier of the net-tax fallback when a
	// purchase snapshot marks IVA as included in cost without a figure.
	vatPercent  float64
	documentCap int
	now         func() time.Time
}

// NewService constructs Service. vatPercent is the configured headline IVA
// rate, in whole percent.
func NewService(store ReadStore, vatPercent float64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, vatPercent: vatPercent,
		documentCap: defaultDocumentCap, now: time.Now}
}

// CreditSummary reconstructs pending balances per counterparty over the last
// windowDays: sale documents grouped by client, purchase documents by
// supplier. Voided documents and fully paid documents are excluded.
func (s *Service) CreditSummary(ctx context.Context, windowDays int) (CreditReport, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	now := s.now().UTC()
	headers, err := s.store.DocumentsInWindow(ctx, now.AddDate(0, 0, -windowDays), now, s.documentCap)
	if err != nil {
		return CreditReport{}, fmt.Errorf("reporting: load documents: %w", err)
	}
	truncated := false
	if len(headers) > s.documentCap {
		headers = headers[:s.documentCap]
		truncated = true
	}

	open := make([]DocumentHeader, 0, len(headers))
	ids := make([]int64, 0, len(headers))
	var clientIDs, supplierIDs []int64
	for _, h := range headers {
		if h.PaidStatus == "PAID" || isVoided(h) {
			continue
		}
		open = append(open, h)
		ids = append(ids, h.ID)
		if h.Direction == "OUT" && h.ClientID != 0 {
			clientIDs = append(clientIDs, h.ClientID)
		}
		if h.Direction == "IN" && h.SupplierID != 0 {
			supplierIDs = append(supplierIDs, h.SupplierID)
		}
	}

	payments, err := s.store.PaymentTotals(ctx, ids)
	if err != nil {
		return CreditReport{}, fmt.Errorf("reporting: load payments: %w", err)
	}
	clientNames, err := s.store.ClientNames(ctx, clientIDs)
	if err != nil {
		return CreditReport{}, fmt.Errorf("reporting: load client names: %w", err)
	}
	supplierNames, err := s.store.SupplierNames(ctx, supplierIDs)
	if err != nil {
		return CreditReport{}, fmt.Errorf("reporting: load supplier names: %w", err)
	}

	clients := make(map[string]*CounterpartyCredit)
	suppliers := make(map[string]*CounterpartyCredit)
	var openDocs []CreditDocument
	for _, h := range open {
		pending := h.Total - payments[h.ID]
		if pending < 0 {
			pending = 0
		}
		if pending == 0 {
			continue
		}
		overdue := daysOverdue(h.DueDate, now)

		var bucket map[string]*CounterpartyCredit
		var key, name string
		var counterpartyID int64
		switch h.Direction {
		case "OUT":
			bucket = clients
			if h.ClientID != 0 {
				key = fmt.Sprintf("client:%d", h.ClientID)
				name = clientNames[h.ClientID]
				counterpartyID = h.ClientID
			} else {
				name = counterpartyFromMeta(h)
				key = "name:" + normalizeName(name)
			}
		case "IN":
			if h.SupplierID == 0 {
				continue
			}
			bucket = suppliers
			key = fmt.Sprintf("supplier:%d", h.SupplierID)
			name = supplierNames[h.SupplierID]
			counterpartyID = h.SupplierID
		default:
			continue
		}
		if name == "" {
			name = "Anonymous"
		}

		row, ok := bucket[key]
		if !ok {
			row = &CounterpartyCredit{Key: key, CounterpartyID: counterpartyID, Name: name}
			bucket[key] = row
		}
		row.Pending += pending
		row.DocumentCount++
		if overdue > row.MaxDaysOverdue {
			row.MaxDaysOverdue = overdue
		}
		openDocs = append(openDocs, CreditDocument{
			DocumentID:  h.ID,
			Number:      h.Number,
			Name:        name,
			Date:        h.Date,
			Pending:     pending,
			DaysOverdue: overdue,
		})
	}

	report := CreditReport{
		Clients:     flattenCredit(clients),
		Suppliers:   flattenCredit(suppliers),
		Truncated:   truncated,
		GeneratedAt: now,
	}
	report.TopPending = topDocuments(openDocs, func(a, b CreditDocument) bool { return a.Pending > b.Pending })
	report.MostOverdue = topDocuments(filterOverdue(openDocs), func(a, b CreditDocument) bool { return a.DaysOverdue > b.DaysOverdue })
	return report, nil
}

func isVoided(h DocumentHeader) bool {
	if document.NoteMarksVoided(h.Note) {
		return true
	}
	meta, ok := document.ParseMetadata(h.Meta)
	return ok && meta.MarksVoided()
}

func daysOverdue(due *time.Time, now time.Time) int {
	if due == nil || !due.Before(now) {
		return 0
	}
	return int(now.Sub(*due).Hours() / 24)
}

func counterpartyFromMeta(h DocumentHeader) string {
	meta, ok := document.ParseMetadata(h.Meta)
	if !ok {
		return ""
	}
	if meta.Sale != nil {
		return meta.Sale.ClientName
	}
	if meta.Purchase != nil {
		return meta.Purchase.SupplierName
	}
	return ""
}

var nameStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeName folds case and accents so free-text counterparty names like
// "María" and "MARIA" group together.
func normalizeName(name string) string {
	stripped, _, err := transform.String(nameStripper, name)
	if err != nil {
		stripped = name
	}
	return strings.ToUpper(strings.Join(strings.Fields(stripped), " "))
}

func flattenCredit(rows map[string]*CounterpartyCredit) []CounterpartyCredit {
	out := make([]CounterpartyCredit, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pending > out[j].Pending })
	return out
}

func filterOverdue(docs []CreditDocument) []CreditDocument {
	out := make([]CreditDocument, 0, len(docs))
	for _, d := range docs {
		if d.DaysOverdue > 0 {
			out = append(out, d)
		}
	}
	return out
}

func topDocuments(docs []CreditDocument, less func(a, b CreditDocument) bool) []CreditDocument {
	sorted := make([]CreditDocument, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	if len(sorted) > topListSize {
		sorted = sorted[:topListSize]
	}
	return sorted
}
