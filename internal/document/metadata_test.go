package document

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMetadataPlainNotesAreNotMetadata(t *testing.T) {
	for _, raw := range []string{
		"",
		"entregar después de las 5",
		"ANULADO -> FV-000012 · ANULADO_ID:99",
		"{not json",
	} {
		_, ok := ParseMetadata(raw)
		require.False(t, ok, "raw %q", raw)
	}
}

func TestParseMetadataUnknownKindRejected(t *testing.T) {
	_, ok := ParseMetadata(`{"kind":"refund","version":1}`)
	require.False(t, ok)
}

func TestParseMetadataRoundTrip(t *testing.T) {
	incl := false
	m := Metadata{
		Kind:           KindPurchase,
		Version:        MetadataVersion,
		IdempotencyKey: "po-2024-991",
		Purchase: &PurchaseSnapshot{
			SupplierName:     "Distribuidora Sur",
			TotalIVA:         18.4,
			PricesIncludeTax: &incl,
		},
	}
	parsed, ok := ParseMetadata(m.Encode())
	require.True(t, ok)
	require.Equal(t, KindPurchase, parsed.Kind)
	require.NotNil(t, parsed.Purchase)
	require.Equal(t, "Distribuidora Sur", parsed.Purchase.SupplierName)
	require.NotNil(t, parsed.Purchase.PricesIncludeTax)
	require.False(t, *parsed.Purchase.PricesIncludeTax)
}

func TestMarksVoided(t *testing.T) {
	require.True(t, Metadata{Kind: KindVoid}.MarksVoided())
	require.True(t, Metadata{Reverses: &Reference{DocumentID: 4}}.MarksVoided())
	require.True(t, Metadata{Void: &VoidInfo{ReversalDocumentID: 9}}.MarksVoided())
	require.False(t, Metadata{Kind: KindSale}.MarksVoided())
}

func TestNoteMarksVoided(t *testing.T) {
	require.True(t, NoteMarksVoided("cliente frecuente\nANULADO -> FV-000010 · ANULADO_ID:22"))
	require.True(t, NoteMarksVoided("VOIDED 2024-05-01T10:00:00Z"))
	require.False(t, NoteMarksVoided("entregar en sucursal"))
}
