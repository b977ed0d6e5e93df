package document

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tienda-erp/tienda-erp/internal/shared"
)

func TestVoidCreatesOppositeReversal(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	doc := env.mustCreate(t, 10, []CreateLineInput{
		{ProductID: 1, Quantity: 3, UnitPrice: 10},
		{ProductID: 2, Quantity: 1, UnitPrice: 20},
	})
	require.NoError(t, env.lifecycle.Finalize(ctx, doc.ID, 0))
	require.Len(t, env.stock.moves, 2)

	result, err := env.service.Void(ctx, doc.ID, "cashier mistake", 42)
	require.NoError(t, err)
	require.NotZero(t, result.ReversalDocumentID)
	require.True(t, strings.HasPrefix(result.ReversalNumber, "NC-"))

	// Reversal is finalized with opposite-direction quantities.
	reversal, err := env.repo.GetDocument(ctx, result.ReversalDocumentID)
	require.NoError(t, err)
	require.True(t, reversal.Finalized)
	require.Equal(t, int64(11), reversal.TypeID)
	require.Equal(t, doc.Number, reversal.ReferenceNumber)

	require.Len(t, env.stock.moves, 4)
	require.InDelta(t, 3, env.stock.moves[2].Quantity, 1e-9)
	require.InDelta(t, 1, env.stock.moves[3].Quantity, 1e-9)

	// The original keeps its financial state and gains annotations only.
	original, err := env.repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.True(t, original.Finalized)
	require.InDelta(t, doc.Total, original.Total, 1e-9)
	require.Contains(t, original.Note, "ANULADO -> "+reversal.Number)
	require.Contains(t, original.Note, "ANULADO_ID:")

	meta, ok := ParseMetadata(original.Meta)
	require.True(t, ok)
	require.NotNil(t, meta.Void)
	require.Equal(t, reversal.ID, meta.Void.ReversalDocumentID)

	rmeta, ok := ParseMetadata(reversal.Meta)
	require.True(t, ok)
	require.Equal(t, KindVoid, rmeta.Kind)
	require.True(t, rmeta.SystemGenerated)
	require.NotNil(t, rmeta.Reverses)
	require.Equal(t, doc.ID, rmeta.Reverses.DocumentID)
}

func TestVoidIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	doc := env.mustCreate(t, 10, []CreateLineInput{{ProductID: 1, Quantity: 2, UnitPrice: 10}})
	require.NoError(t, env.lifecycle.Finalize(ctx, doc.ID, 0))

	first, err := env.service.Void(ctx, doc.ID, "duplicate ticket", 1)
	require.NoError(t, err)
	movesAfterFirst := len(env.stock.moves)
	docsAfterFirst := len(env.repo.docs)

	second, err := env.service.Void(ctx, doc.ID, "duplicate ticket", 1)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, env.stock.moves, movesAfterFirst)
	require.Len(t, env.repo.docs, docsAfterFirst)
}

func TestVoidWithoutDirectionMarksNoteOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	doc := env.mustCreate(t, 20, []CreateLineInput{{ProductID: 1, Quantity: 1, UnitPrice: 10}})
	require.NoError(t, env.lifecycle.Finalize(ctx, doc.ID, 0))
	require.Empty(t, env.stock.moves)

	result, err := env.service.Void(ctx, doc.ID, "", 1)
	require.NoError(t, err)
	require.Zero(t, result.ReversalDocumentID)

	got, err := env.repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Contains(t, got.Note, "VOIDED")
	require.Len(t, env.repo.docs, 1)
	require.Empty(t, env.stock.moves)
}

func TestVoidRejectsNonFinalized(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	doc := env.mustCreate(t, 10, []CreateLineInput{{ProductID: 1, Quantity: 1, UnitPrice: 10}})

	_, err := env.service.Void(ctx, doc.ID, "", 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestVoidRejectsDocumentWithoutReversibleLines(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	doc := env.mustCreate(t, 10, []CreateLineInput{{ProductID: 1, Quantity: 1, UnitPrice: 10}})
	require.NoError(t, env.lifecycle.Finalize(ctx, doc.ID, 0))
	for id := range env.repo.lines {
		delete(env.repo.lines, id)
	}

	_, err := env.service.Void(ctx, doc.ID, "", 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestVoidSurvivesAnnotationFailure(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	doc := env.mustCreate(t, 10, []CreateLineInput{{ProductID: 1, Quantity: 2, UnitPrice: 10}})
	require.NoError(t, env.lifecycle.Finalize(ctx, doc.ID, 0))

	env.repo.failAnnotations = true
	result, err := env.service.Void(ctx, doc.ID, "register crash", 1)
	require.NoError(t, err)
	require.NotZero(t, result.ReversalDocumentID)

	// Reversal stands even though the original could not be stamped.
	reversal, err := env.repo.GetDocument(ctx, result.ReversalDocumentID)
	require.NoError(t, err)
	require.True(t, reversal.Finalized)

	original, err := env.repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotContains(t, original.Note, "ANULADO")
}

func TestVoidResolvesCounterpartyFromDirectory(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	// No metadata snapshot; the name comes from the client directory.
	doc := env.mustCreate(t, 10, []CreateLineInput{{ProductID: 1, Quantity: 1, UnitPrice: 10}})
	require.NoError(t, env.lifecycle.Finalize(ctx, doc.ID, 0))

	result, err := env.service.Void(ctx, doc.ID, "", 1)
	require.NoError(t, err)

	reversal, err := env.repo.GetDocument(ctx, result.ReversalDocumentID)
	require.NoError(t, err)
	rmeta, ok := ParseMetadata(reversal.Meta)
	require.True(t, ok)
	require.NotNil(t, rmeta.Sale)
	require.Equal(t, "Comercial Andina", rmeta.Sale.ClientName)
}

func TestVoidResolvesSupplierFromDirectory(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	doc, err := env.lifecycle.CreateDocument(ctx, CreateDocumentInput{
		TypeID:      11,
		WarehouseID: 1,
		SupplierID:  3,
		Lines:       []CreateLineInput{{ProductID: 2, Quantity: 4, UnitPrice: 7}},
	})
	require.NoError(t, err)
	require.NoError(t, env.lifecycle.Finalize(ctx, doc.ID, 0))

	result, err := env.service.Void(ctx, doc.ID, "", 1)
	require.NoError(t, err)

	reversal, err := env.repo.GetDocument(ctx, result.ReversalDocumentID)
	require.NoError(t, err)
	rmeta, ok := ParseMetadata(reversal.Meta)
	require.True(t, ok)
	require.NotNil(t, rmeta.Purchase)
	require.Equal(t, "Distribuidora Sur", rmeta.Purchase.SupplierName)
}

func TestVoidKeepsCounterpartyNameFromMetadata(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	doc, err := env.lifecycle.CreateDocument(ctx, CreateDocumentInput{
		TypeID:      10,
		WarehouseID: 1,
		ClientID:    7,
		Meta:        &Metadata{Kind: KindSale, Sale: &SaleSnapshot{ClientName: "María Pérez"}},
		Lines:       []CreateLineInput{{ProductID: 1, Quantity: 1, UnitPrice: 10}},
	})
	require.NoError(t, err)
	require.NoError(t, env.lifecycle.Finalize(ctx, doc.ID, 0))

	result, err := env.service.Void(ctx, doc.ID, "", 1)
	require.NoError(t, err)

	reversal, err := env.repo.GetDocument(ctx, result.ReversalDocumentID)
	require.NoError(t, err)
	rmeta, ok := ParseMetadata(reversal.Meta)
	require.True(t, ok)
	require.NotNil(t, rmeta.Sale)
	require.Equal(t, "María Pérez", rmeta.Sale.ClientName)
}
