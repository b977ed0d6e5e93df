package tax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tienda-erp/tienda-erp/internal/masterdata"
)

type staticTaxes map[int64][]masterdata.Tax

func (s staticTaxes) ProductTaxes(ctx context.Context, productID int64) ([]masterdata.Tax, error) {
	return s[productID], nil
}

func TestComputeLineInclusive(t *testing.T) {
	src := staticTaxes{1: {
		{ID: 10, Name: "IVA", Rate: 10, Enabled: true},
		{ID: 11, Name: "ICE", Rate: 5, Enabled: true},
	}}
	engine := NewEngine(src)

	lt, err := engine.ComputeLine(context.Background(), 1, 115.00, true)
	require.NoError(t, err)
	require.InDelta(t, 100.00, lt.Net, 0.001)
	require.InDelta(t, 15.00, lt.TaxAmount, 0.001)
	require.Len(t, lt.Shares, 2)
	require.InDelta(t, 10.00, lt.Shares[0].Amount, 0.001)
	require.InDelta(t, 5.00, lt.Shares[1].Amount, 0.001)
	require.InDelta(t, 115.00, lt.Net+lt.TaxAmount, 0.001)
}

func TestComputeLineExclusive(t *testing.T) {
	src := staticTaxes{1: {{ID: 10, Name: "IVA", Rate: 12, Enabled: true}}}
	engine := NewEngine(src)

	lt, err := engine.ComputeLine(context.Background(), 1, 200.00, false)
	require.NoError(t, err)
	require.InDelta(t, 200.00, lt.Net, 0.001)
	require.InDelta(t, 24.00, lt.TaxAmount, 0.001)
	require.Len(t, lt.Shares, 1)
	require.InDelta(t, 24.00, lt.Shares[0].Amount, 0.001)
}

func TestComputeLineZeroRate(t *testing.T) {
	engine := NewEngine(staticTaxes{})

	for _, inclusive := range []bool{true, false} {
		lt, err := engine.ComputeLine(context.Background(), 1, 80.00, inclusive)
		require.NoError(t, err)
		require.InDelta(t, 80.00, lt.Net, 0.001)
		require.Zero(t, lt.TaxAmount)
		require.Empty(t, lt.Shares)
	}
}

func TestComputeLineFiltersDisabledAndFixed(t *testing.T) {
	src := staticTaxes{1: {
		{ID: 10, Name: "IVA", Rate: 12, Enabled: true},
		{ID: 11, Name: "Old IVA", Rate: 14, Enabled: false},
		{ID: 12, Name: "Bottle deposit", Rate: 0.02, Fixed: true, Enabled: true},
	}}
	engine := NewEngine(src)

	lt, err := engine.ComputeLine(context.Background(), 1, 112.00, true)
	require.NoError(t, err)
	require.InDelta(t, 100.00, lt.Net, 0.001)
	require.InDelta(t, 12.00, lt.TaxAmount, 0.001)
	// Disabled and fixed taxes never produce breakdown rows.
	require.Len(t, lt.Shares, 1)
	require.Equal(t, int64(10), lt.Shares[0].TaxID)
}

func TestComputeLineDropsZeroAmountShares(t *testing.T) {
	src := staticTaxes{1: {{ID: 10, Name: "IVA", Rate: 12, Enabled: true}}}
	engine := NewEngine(src)

	lt, err := engine.ComputeLine(context.Background(), 1, 0, true)
	require.NoError(t, err)
	require.Zero(t, lt.TaxAmount)
	require.Empty(t, lt.Shares)
}
