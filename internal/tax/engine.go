package tax

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tienda-erp/tienda-erp/internal/masterdata"
)

// TaxSource resolves the taxes assigned to a product.
type TaxSource interface {
	ProductTaxes(ctx context.Context, productID int64) ([]masterdata.Tax, error)
}

// Engine derives net/gross/tax triples for document lines under inclusive or
// exclusive pricing. Arithmetic runs on decimals and is rounded half-up to
// two places at the boundary.
type Engine struct {
	taxes TaxSource
}

// NewEngine builds an Engine.
func NewEngine(taxes TaxSource) *Engine {
	return &Engine{taxes: taxes}
}

var one = decimal.NewFromInt(1)
var hundred = decimal.NewFromInt(100)

// ComputeLine resolves the product's enabled percentage taxes and splits the
// given gross (quantity x price after line discount) into net and tax.
//
// Fixed-amount taxes are resolved but contribute no breakdown rows; that
// mirrors the historical behavior documents were written with.
func (e *Engine) ComputeLine(ctx context.Context, productID int64, gross float64, pricesIncludeTax bool) (LineTax, error) {
	assigned, err := e.taxes.ProductTaxes(ctx, productID)
	if err != nil {
		return LineTax{}, fmt.Errorf("tax: resolve product %d: %w", productID, err)
	}

	var percents []masterdata.Tax
	rateSum := decimal.Zero
	for _, t := range assigned {
		if !t.Enabled || t.Fixed {
			continue
		}
		percents = append(percents, t)
		rateSum = rateSum.Add(decimal.NewFromFloat(t.Rate))
	}

	g := decimal.NewFromFloat(gross)
	result := LineTax{Net: gross}
	rs, _ := rateSum.Float64()
	result.RateSum = rs

	if rateSum.IsZero() {
		// No percentage taxes: gross is net in both modes.
		result.Net = round2(g)
		return result, nil
	}

	if pricesIncludeTax {
		divisor := one.Add(rateSum.Div(hundred))
		net := round2(g.DivRound(divisor, 8))
		taxAmount := g.Sub(decimal.NewFromFloat(net))
		result.Net = net
		result.TaxAmount = round2(taxAmount)
		for _, t := range percents {
			share := taxAmount.Mul(decimal.NewFromFloat(t.Rate)).Div(rateSum)
			appendShare(&result, t, round2(share))
		}
		return result, nil
	}

	taxAmount := g.Mul(rateSum).Div(hundred)
	result.Net = round2(g)
	result.TaxAmount = round2(taxAmount)
	for _, t := range percents {
		share := g.Mul(decimal.NewFromFloat(t.Rate)).Div(hundred)
		appendShare(&result, t, round2(share))
	}
	return result, nil
}

func appendShare(lt *LineTax, t masterdata.Tax, amount float64) {
	// Zero or negative computed amounts are never persisted.
	if amount <= 0 {
		return
	}
	lt.Shares = append(lt.Shares, Share{TaxID: t.ID, Name: t.Name, Rate: t.Rate, Amount: amount})
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
