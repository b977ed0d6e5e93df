package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tienda-erp/tienda-erp/internal/document"
)

type memoryStore struct {
	docs          []DocumentHeader
	payments      map[int64]float64
	clients       map[int64]string
	suppliers     map[int64]string
	lineTaxTotals map[int64]float64
	estimates     map[int64][]EstimateLine
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		payments:      map[int64]float64{},
		clients:       map[int64]string{},
		suppliers:     map[int64]string{},
		lineTaxTotals: map[int64]float64{},
		estimates:     map[int64][]EstimateLine{},
	}
}

func (s *memoryStore) DocumentsInWindow(ctx context.Context, from, to time.Time, limit int) ([]DocumentHeader, error) {
	var out []DocumentHeader
	for _, d := range s.docs {
		if !d.Date.Before(from) && d.Date.Before(to) {
			out = append(out, d)
		}
		if len(out) == limit+1 {
			break
		}
	}
	return out, nil
}

func (s *memoryStore) PaymentTotals(ctx context.Context, ids []int64) (map[int64]float64, error) {
	out := map[int64]float64{}
	for _, id := range ids {
		if v, ok := s.payments[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (s *memoryStore) ClientNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	return s.clients, nil
}

func (s *memoryStore) SupplierNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	return s.suppliers, nil
}

func (s *memoryStore) VATLineTaxTotal(ctx context.Context, documentID int64) (float64, error) {
	return s.lineTaxTotals[documentID], nil
}

func (s *memoryStore) EstimateLines(ctx context.Context, documentID int64) ([]EstimateLine, error) {
	return s.estimates[documentID], nil
}

func newTestService(store *memoryStore, at time.Time) *Service {
	svc := NewService(store, 15, nil)
	svc.now = func() time.Time { return at }
	return svc
}

func day(now time.Time, daysAgo int) time.Time {
	return now.AddDate(0, 0, -daysAgo)
}

func saleMeta(name string) string {
	return document.Metadata{Kind: document.KindSale, Sale: &document.SaleSnapshot{ClientName: name}}.Encode()
}

func TestCreditSummaryPendingAndGrouping(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	store.clients[7] = "Comercial Andina"
	due := day(now, 10)
	store.docs = []DocumentHeader{
		{ID: 1, Number: "FV-000001", Direction: "OUT", ClientID: 7, Date: day(now, 5), DueDate: &due, Total: 100, PaidStatus: "UNPAID"},
		{ID: 2, Number: "FV-000002", Direction: "OUT", ClientID: 7, Date: day(now, 3), Total: 50, PaidStatus: "PARTIAL"},
		{ID: 3, Number: "FV-000003", Direction: "OUT", Date: day(now, 2), Total: 30, PaidStatus: "UNPAID", Meta: saleMeta("María Pérez")},
		{ID: 4, Number: "FV-000004", Direction: "OUT", Date: day(now, 1), Total: 20, PaidStatus: "UNPAID", Meta: saleMeta("MARIA PEREZ")},
		{ID: 5, Number: "FC-000001", Direction: "IN", SupplierID: 3, Date: day(now, 4), Total: 200, PaidStatus: "UNPAID"},
	}
	store.suppliers[3] = "Distribuidora Sur"
	store.payments[2] = 30
	store.payments[5] = 250 // overpaid: pending clamps to zero

	report, err := newTestService(store, now).CreditSummary(context.Background(), 30)
	require.NoError(t, err)

	require.Len(t, report.Clients, 2)
	byKey := map[string]CounterpartyCredit{}
	for _, c := range report.Clients {
		byKey[c.Key] = c
	}
	andina := byKey["client:7"]
	require.InDelta(t, 120, andina.Pending, 1e-9)
	require.Equal(t, 2, andina.DocumentCount)
	require.Equal(t, 10, andina.MaxDaysOverdue)

	// Accent and case differences group under one key.
	maria := byKey["name:MARIA PEREZ"]
	require.InDelta(t, 50, maria.Pending, 1e-9)
	require.Equal(t, 2, maria.DocumentCount)

	// Fully covered supplier document drops out entirely.
	require.Empty(t, report.Suppliers)

	require.NotEmpty(t, report.TopPending)
	require.Equal(t, int64(1), report.TopPending[0].DocumentID)
	require.Len(t, report.MostOverdue, 1)
	require.Equal(t, 10, report.MostOverdue[0].DaysOverdue)
}

func TestCreditSummaryExcludesVoidedAndPaid(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	voidMeta := document.Metadata{Kind: document.KindVoid, Reverses: &document.Reference{DocumentID: 1}}.Encode()
	store.docs = []DocumentHeader{
		{ID: 1, Direction: "OUT", ClientID: 1, Date: day(now, 5), Total: 100, PaidStatus: "UNPAID",
			Note: "ANULADO -> NC-000001 · ANULADO_ID:9"},
		{ID: 9, Direction: "IN", ClientID: 1, Date: day(now, 5), Total: 100, PaidStatus: "UNPAID", Meta: voidMeta},
		{ID: 2, Direction: "OUT", ClientID: 1, Date: day(now, 4), Total: 80, PaidStatus: "PAID"},
	}

	report, err := newTestService(store, now).CreditSummary(context.Background(), 30)
	require.NoError(t, err)
	require.Empty(t, report.Clients)
	require.Empty(t, report.Suppliers)
}

func TestCreditSummaryTruncation(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	for i := 0; i < 12; i++ {
		store.docs = append(store.docs, DocumentHeader{
			ID: int64(i + 1), Direction: "OUT", ClientID: 1,
			Date: day(now, 1), Total: 10, PaidStatus: "UNPAID",
		})
	}
	svc := newTestService(store, now)
	svc.documentCap = 10

	report, err := svc.CreditSummary(context.Background(), 30)
	require.NoError(t, err)
	require.True(t, report.Truncated)
	require.Equal(t, 10, report.Clients[0].DocumentCount)
}

func TestNetTaxTierPrecedence(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	inclEstimate := day(now, 1)
	store.docs = []DocumentHeader{
		// Tier 1: persisted line-tax rows win even when metadata also has a figure.
		{ID: 1, Number: "FV-000001", Direction: "OUT", Date: day(now, 3), Total: 115, PaidStatus: "PAID",
			Meta: document.Metadata{Kind: document.KindSale, Sale: &document.SaleSnapshot{IVATotal: 99}}.Encode()},
		// Tier 2: no line-tax rows, POS snapshot supplies ivaTotal.
		{ID: 2, Number: "FV-000002", Direction: "OUT", Date: day(now, 2), Total: 57.5, PaidStatus: "PAID",
			Meta: document.Metadata{Kind: document.KindSale, Sale: &document.SaleSnapshot{IVATotal: 7.5}}.Encode()},
		// Tier 2 derived: purchase with IVA included in cost, no figure.
		{ID: 3, Number: "FC-000001", Direction: "IN", Date: day(now, 2), Total: 115, PaidStatus: "PAID",
			Meta: document.Metadata{Kind: document.KindPurchase, Purchase: &document.PurchaseSnapshot{IVAIncludedInCost: true}}.Encode()},
		// Tier 3: estimate from product VAT rates, inclusive pricing.
		{ID: 4, Number: "FV-000003", Direction: "OUT", Date: inclEstimate, Total: 230, PaidStatus: "PAID"},
		// No tier produces a figure.
		{ID: 5, Number: "FV-000004", Direction: "OUT", Date: inclEstimate, Total: 40, PaidStatus: "PAID"},
	}
	store.lineTaxTotals[1] = 15
	store.estimates[4] = []EstimateLine{{Total: 115, VATRateSum: 15}, {Total: 115, VATRateSum: 15}}

	report, err := newTestService(store, now).NetTaxReport(context.Background(), 30)
	require.NoError(t, err)

	bySource := map[int64]NetTaxRow{}
	for _, row := range report.Documents {
		bySource[row.DocumentID] = row
	}
	require.Equal(t, SourceLineTaxes, bySource[1].Source)
	require.InDelta(t, 15, bySource[1].VAT, 1e-9)
	require.Equal(t, SourceMetadata, bySource[2].Source)
	require.InDelta(t, 7.5, bySource[2].VAT, 1e-9)
	require.Equal(t, SourceMetadata, bySource[3].Source)
	require.InDelta(t, 15, bySource[3].VAT, 1e-6)
	require.Equal(t, SourceEstimate, bySource[4].Source)
	require.InDelta(t, 30, bySource[4].VAT, 1e-6)
	require.Equal(t, SourceNone, bySource[5].Source)
	require.Zero(t, bySource[5].VAT)

	require.InDelta(t, 15+7.5+30, report.SalesVAT, 1e-6)
	require.InDelta(t, 15, report.PurchaseVAT, 1e-6)
	require.InDelta(t, report.SalesVAT-report.PurchaseVAT, report.NetVAT, 1e-9)
}

func TestNetTaxSkipsVoidedAndDirectionless(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	store.docs = []DocumentHeader{
		{ID: 1, Direction: "NONE", Date: day(now, 1), Total: 100},
		{ID: 2, Direction: "OUT", Date: day(now, 1), Total: 115,
			Note: "ANULADO -> NC-000002 · ANULADO_ID:8"},
	}
	store.lineTaxTotals[1] = 10
	store.lineTaxTotals[2] = 15

	report, err := newTestService(store, now).NetTaxReport(context.Background(), 30)
	require.NoError(t, err)
	require.Empty(t, report.Documents)
	require.Zero(t, report.SalesVAT)
}

func TestNetTaxByDayBuckets(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	store.docs = []DocumentHeader{
		{ID: 1, Direction: "OUT", Date: day(now, 2), Total: 115},
		{ID: 2, Direction: "IN", Date: day(now, 2), Total: 115},
		{ID: 3, Direction: "OUT", Date: day(now, 1), Total: 230},
	}
	store.lineTaxTotals[1] = 15
	store.lineTaxTotals[2] = 10
	store.lineTaxTotals[3] = 30

	report, err := newTestService(store, now).NetTaxReport(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, report.ByDay, 2)
	require.Equal(t, day(now, 2).Format("2006-01-02"), report.ByDay[0].Day)
	require.InDelta(t, 15, report.ByDay[0].SalesVAT, 1e-9)
	require.InDelta(t, 10, report.ByDay[0].PurchaseVAT, 1e-9)
	require.InDelta(t, 30, report.ByDay[1].SalesVAT, 1e-9)
}
