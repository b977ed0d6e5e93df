package reporting

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tienda-erp/tienda-erp/internal/document"
)

const netTaxConcurrency = 6

// vatResolver is one tier of the VAT fallback chain. It reports the resolved
// amount and whether it produced a usable (non-zero) figure.
type vatResolver struct {
	source  VATSource
	resolve func(ctx context.Context, h DocumentHeader) (float64, bool, error)
}

// NetTaxReport determines per-document VAT over the last windowDays through
// an ordered fallback: persisted VAT-like line-tax rows, then metadata
// snapshot figures, then a per-line estimate from product VAT rates. The
// chosen source is recorded on every row.
func (s *Service) NetTaxReport(ctx context.Context, windowDays int) (NetTaxReport, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	now := s.now().UTC()
	headers, err := s.store.DocumentsInWindow(ctx, now.AddDate(0, 0, -windowDays), now, s.documentCap)
	if err != nil {
		return NetTaxReport{}, fmt.Errorf("reporting: load documents: %w", err)
	}
	truncated := false
	if len(headers) > s.documentCap {
		headers = headers[:s.documentCap]
		truncated = true
	}

	eligible := make([]DocumentHeader, 0, len(headers))
	for _, h := range headers {
		if h.Direction == "NONE" || isVoided(h) {
			continue
		}
		eligible = append(eligible, h)
	}

	resolvers := []vatResolver{
		{source: SourceLineTaxes, resolve: s.resolveFromLineTaxes},
		{source: SourceMetadata, resolve: s.resolveFromMetadata},
		{source: SourceEstimate, resolve: s.resolveFromEstimate},
	}

	rows := make([]NetTaxRow, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(netTaxConcurrency)
	for i, h := range eligible {
		i, h := i, h
		g.Go(func() error {
			row := NetTaxRow{DocumentID: h.ID, Number: h.Number, Date: h.Date,
				Direction: h.Direction, Gross: h.Total, Source: SourceNone}
			for _, tier := range resolvers {
				amount, ok, err := tier.resolve(gctx, h)
				if err != nil {
					return fmt.Errorf("reporting: resolve vat for document %d: %w", h.ID, err)
				}
				if ok {
					row.VAT = amount
					row.Source = tier.source
					break
				}
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return NetTaxReport{}, err
	}

	report := NetTaxReport{Documents: rows, Truncated: truncated, GeneratedAt: now}
	byDay := make(map[string]*NetTaxDay)
	for _, row := range rows {
		day := row.Date.Format("2006-01-02")
		bucket, ok := byDay[day]
		if !ok {
			bucket = &NetTaxDay{Day: day}
			byDay[day] = bucket
		}
		switch row.Direction {
		case "OUT":
			report.SalesVAT += row.VAT
			bucket.SalesVAT += row.VAT
		case "IN":
			report.PurchaseVAT += row.VAT
			bucket.PurchaseVAT += row.VAT
		}
	}
	report.NetVAT = report.SalesVAT - report.PurchaseVAT
	for _, bucket := range byDay {
		report.ByDay = append(report.ByDay, *bucket)
	}
	sort.Slice(report.ByDay, func(i, j int) bool { return report.ByDay[i].Day < report.ByDay[j].Day })
	return report, nil
}

func (s *Service) resolveFromLineTaxes(ctx context.Context, h DocumentHeader) (float64, bool, error) {
	total, err := s.store.VATLineTaxTotal(ctx, h.ID)
	if err != nil {
		return 0, false, err
	}
	return total, total > 0, nil
}

// resolveFromMetadata reads VAT figures snapshotted at capture time: the POS
// sale snapshot's ivaTotal, the purchase liquidation's totalIVA, or a value
// derived from gross when IVA is marked as included in cost.
func (s *Service) resolveFromMetadata(ctx context.Context, h DocumentHeader) (float64, bool, error) {
	meta, ok := document.ParseMetadata(h.Meta)
	if !ok {
		return 0, false, nil
	}
	if meta.Sale != nil && meta.Sale.IVATotal > 0 {
		return meta.Sale.IVATotal, true, nil
	}
	if meta.Purchase != nil {
		if meta.Purchase.TotalIVA > 0 {
			return meta.Purchase.TotalIVA, true, nil
		}
		if meta.Purchase.IVAIncludedInCost && s.vatPercent > 0 {
			derived := h.Total - h.Total/(1+s.vatPercent/100)
			return derived, derived > 0, nil
		}
	}
	return 0, false, nil
}

// resolveFromEstimate multiplies each line's discount-adjusted total by its
// product's VAT-like rate sum, dividing tax out for inclusive pricing.
func (s *Service) resolveFromEstimate(ctx context.Context, h DocumentHeader) (float64, bool, error) {
	lines, err := s.store.EstimateLines(ctx, h.ID)
	if err != nil {
		return 0, false, err
	}
	inclusive := pricesIncludeTax(h)
	var vat float64
	for _, line := range lines {
		if line.VATRateSum <= 0 {
			continue
		}
		if inclusive {
			vat += line.Total - line.Total/(1+line.VATRateSum/100)
		} else {
			vat += line.Total * line.VATRateSum / 100
		}
	}
	return vat, vat > 0, nil
}

func pricesIncludeTax(h DocumentHeader) bool {
	if h.Direction != "IN" {
		return true
	}
	meta, ok := document.ParseMetadata(h.Meta)
	if !ok || meta.Purchase == nil || meta.Purchase.PricesIncludeTax == nil {
		return true
	}
	return *meta.Purchase.PricesIncludeTax
}
