package document

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tienda-erp/tienda-erp/internal/ledger"
	"github.com/tienda-erp/tienda-erp/internal/masterdata"
	"github.com/tienda-erp/tienda-erp/internal/sequence"
	"github.com/tienda-erp/tienda-erp/internal/shared"
	"github.com/tienda-erp/tienda-erp/internal/tax"
)

type memoryRepo struct {
	mu         sync.Mutex
	docs       map[int64]Document
	lines      map[int64]Line
	taxRows    map[int64][]LineTaxRow
	priceViews map[int64]float64

	writes          int
	failAnnotations bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		docs:       make(map[int64]Document),
		lines:      make(map[int64]Line),
		taxRows:    make(map[int64][]LineTaxRow),
		priceViews: make(map[int64]float64),
	}
}

func (r *memoryRepo) GetDocument(ctx context.Context, id int64) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return Document{}, fmt.Errorf("%w: document %d", shared.ErrNotFound, id)
	}
	return doc, nil
}

func (r *memoryRepo) CreateDocument(ctx context.Context, doc Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.docs[doc.ID] = doc
	return nil
}

func (r *memoryRepo) SetFinalized(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return fmt.Errorf("%w: document %d", shared.ErrNotFound, id)
	}
	r.writes++
	doc.Finalized = true
	r.docs[id] = doc
	return nil
}

func (r *memoryRepo) UpdateTotal(ctx context.Context, id int64, total float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.docs[id]
	r.writes++
	doc.Total = total
	r.docs[id] = doc
	return nil
}

func (r *memoryRepo) UpdateAnnotations(ctx context.Context, id int64, note, meta string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAnnotations {
		return errors.New("annotation store unavailable")
	}
	doc := r.docs[id]
	r.writes++
	doc.Note = note
	doc.Meta = meta
	r.docs[id] = doc
	return nil
}

func (r *memoryRepo) FindByIdempotencyKey(ctx context.Context, key string) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.IdempotencyKey == key {
			return doc, nil
		}
	}
	return Document{}, fmt.Errorf("%w: idempotency key %q", shared.ErrNotFound, key)
}

func (r *memoryRepo) DocumentsProbe(ctx context.Context, ids []int64) (bool, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var max int64
	conflict := false
	for id := range r.docs {
		if id > max {
			max = id
		}
	}
	for _, id := range ids {
		if _, ok := r.docs[id]; ok {
			conflict = true
		}
	}
	return conflict, max, nil
}

func (r *memoryRepo) ListLines(ctx context.Context, documentID int64) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Line
	for _, line := range r.lines {
		if line.DocumentID == documentID {
			out = append(out, line)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) InsertLine(ctx context.Context, line Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.lines[line.ID] = line
	return nil
}

func (r *memoryRepo) UpdateLine(ctx context.Context, line Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lines[line.ID]; !ok {
		return fmt.Errorf("%w: line %d", shared.ErrNotFound, line.ID)
	}
	r.writes++
	r.lines[line.ID] = line
	return nil
}

func (r *memoryRepo) DeleteLine(ctx context.Context, lineID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	delete(r.lines, lineID)
	return nil
}

func (r *memoryRepo) LinesProbe(ctx context.Context, ids []int64) (bool, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var max int64
	conflict := false
	for id := range r.lines {
		if id > max {
			max = id
		}
	}
	for _, id := range ids {
		if _, ok := r.lines[id]; ok {
			conflict = true
		}
	}
	return conflict, max, nil
}

func (r *memoryRepo) DeleteLineTaxes(ctx context.Context, lineID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	delete(r.taxRows, lineID)
	return nil
}

func (r *memoryRepo) InsertLineTax(ctx context.Context, row LineTaxRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.taxRows[row.LineID] = append(r.taxRows[row.LineID], row)
	return nil
}

func (r *memoryRepo) UpsertPriceView(ctx context.Context, line Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.priceViews[line.ID] = line.UnitPrice
	return nil
}

func (r *memoryRepo) DeletePriceView(ctx context.Context, lineID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	delete(r.priceViews, lineID)
	return nil
}

func (r *memoryRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type fakeMaster struct {
	products  map[int64]masterdata.Product
	types     map[int64]masterdata.DocumentType
	clients   map[int64]masterdata.Client
	suppliers map[int64]masterdata.Supplier
}

func newFakeMaster() *fakeMaster {
	return &fakeMaster{
		products: map[int64]masterdata.Product{
			1: {ID: 1, Name: "Arroz 1kg", Code: "ARR-1", Unit: "unit", Active: true},
			2: {ID: 2, Name: "Aceite 900ml", Code: "ACE-9", Unit: "unit", Active: true},
		},
		types: map[int64]masterdata.DocumentType{
			10: {ID: 10, Name: "Factura de venta", Code: "FV", Category: "sales", Direction: masterdata.DirectionOut},
			11: {ID: 11, Name: "Nota de crédito", Code: "NC", Category: "sales", Direction: masterdata.DirectionIn},
			20: {ID: 20, Name: "Cotización", Code: "COT", Category: "sales", Direction: masterdata.DirectionNone},
		},
		clients: map[int64]masterdata.Client{
			7: {ID: 7, Name: "Comercial Andina"},
		},
		suppliers: map[int64]masterdata.Supplier{
			3: {ID: 3, Name: "Distribuidora Sur"},
		},
	}
}

func (m *fakeMaster) GetProduct(ctx context.Context, id int64) (masterdata.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return masterdata.Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (m *fakeMaster) GetDocumentType(ctx context.Context, id int64) (masterdata.DocumentType, error) {
	t, ok := m.types[id]
	if !ok {
		return masterdata.DocumentType{}, fmt.Errorf("%w: document type %d", shared.ErrNotFound, id)
	}
	return t, nil
}

func (m *fakeMaster) GetClient(ctx context.Context, id int64) (masterdata.Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return masterdata.Client{}, fmt.Errorf("%w: client %d", shared.ErrNotFound, id)
	}
	return c, nil
}

func (m *fakeMaster) GetSupplier(ctx context.Context, id int64) (masterdata.Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return masterdata.Supplier{}, fmt.Errorf("%w: supplier %d", shared.ErrNotFound, id)
	}
	return s, nil
}

func (m *fakeMaster) ResolveReversalType(ctx context.Context, originalTypeID int64) (masterdata.DocumentType, error) {
	original, err := m.GetDocumentType(ctx, originalTypeID)
	if err != nil {
		return masterdata.DocumentType{}, err
	}
	want := masterdata.DirectionIn
	if original.Direction == masterdata.DirectionIn {
		want = masterdata.DirectionOut
	}
	for _, t := range m.types {
		if t.Category == original.Category && t.Direction == want {
			return t, nil
		}
	}
	return masterdata.DocumentType{}, fmt.Errorf("%w: reversal type for %d", shared.ErrNotFound, originalTypeID)
}

// fakeTax applies a flat 10% inclusive-or-exclusive rate with a single share.
type fakeTax struct{}

func (fakeTax) ComputeLine(ctx context.Context, productID int64, gross float64, inclusive bool) (tax.LineTax, error) {
	var net, amount float64
	if inclusive {
		net = gross / 1.10
		amount = gross - net
	} else {
		net = gross
		amount = gross * 0.10
	}
	lt := tax.LineTax{Net: net, TaxAmount: amount, RateSum: 10}
	if amount > 0 {
		lt.Shares = []tax.Share{{TaxID: 1, Name: "IVA", Rate: 10, Amount: amount}}
	}
	return lt, nil
}

type fakeSeq struct {
	mu   sync.Mutex
	next int64
}

func (s *fakeSeq) AllocateVerified(ctx context.Context, name string, count int, probe sequence.Probe) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, count)
	for i := range ids {
		s.next++
		ids[i] = s.next
	}
	return ids, nil
}

type fakeLedger struct {
	mu    sync.Mutex
	moves []ledger.MoveInput
}

func (l *fakeLedger) Move(ctx context.Context, in ledger.MoveInput) (ledger.Movement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.moves = append(l.moves, in)
	return ledger.Movement{EntryID: int64(len(l.moves)), Balance: 0}, nil
}
