package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/tienda-erp/tienda-erp/internal/sequence"
	"github.com/tienda-erp/tienda-erp/internal/shared"
)

// StorePort abstracts the stock/ledger persistence used by the writer.
type StorePort interface {
	// ApplyDelta adds delta to the (product, warehouse) balance in a single
	// conditional update, creating the row at delta when absent, and returns
	// the resulting quantity.
	ApplyDelta(ctx context.Context, productID, warehouseID int64, delta float64) (float64, error)
	// CurrentQuantity returns the on-hand quantity, 0 when no row exists.
	CurrentQuantity(ctx context.Context, productID, warehouseID int64) (float64, error)
	// InsertEntry appends a kardex entry.
	InsertEntry(ctx context.Context, entry Entry) error
	// ListEntries returns kardex entries for reporting.
	ListEntries(ctx context.Context, filter Filter) ([]Entry, error)
}

// Sequencer issues kardex entry ids.
type Sequencer interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Writer updates the current on-hand quantity and appends a kardex entry per
// movement. A per (product, warehouse) mutex serializes movements so each
// entry's recorded balance matches the persisted balance.
type Writer struct {
	store  StorePort
	seq    Sequencer
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWriter builds a Writer.
func NewWriter(store StorePort, seq Sequencer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, seq: seq, logger: logger, locks: make(map[string]*sync.Mutex)}
}

func (w *Writer) lock(productID, warehouseID int64) func() {
	key := fmt.Sprintf("%d:%d", productID, warehouseID)
	w.mu.Lock()
	m, ok := w.locks[key]
	if !ok {
		m = &sync.Mutex{}
		w.locks[key] = m
	}
	w.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Move applies a signed quantity delta and appends the matching kardex entry.
// Exactly one balance write and one entry insert happen per call.
func (w *Writer) Move(ctx context.Context, input MoveInput) (Movement, error) {
	if input.ProductID == 0 {
		return Movement{}, shared.Invalid("product required")
	}
	if input.Type != MovementIn && input.Type != MovementOut && input.Type != MovementAdjust {
		return Movement{}, fmt.Errorf("%w: %q", ErrInvalidMovement, input.Type)
	}
	if input.Quantity == 0 {
		return Movement{}, ErrInvalidQuantity
	}

	unlock := w.lock(input.ProductID, input.WarehouseID)
	defer unlock()
	return w.write(ctx, input)
}

// Adjust corrects stock to a target quantity. The delta is derived under the
// pair lock so a concurrent movement cannot slip between read and write.
func (w *Writer) Adjust(ctx context.Context, input AdjustInput) (Movement, error) {
	if input.ProductID == 0 {
		return Movement{}, shared.Invalid("product required")
	}

	unlock := w.lock(input.ProductID, input.WarehouseID)
	defer unlock()

	current, err := w.store.CurrentQuantity(ctx, input.ProductID, input.WarehouseID)
	if err != nil {
		return Movement{}, fmt.Errorf("ledger: read balance: %w", err)
	}
	delta := input.TargetQty - current
	if math.Abs(delta) < 1e-9 {
		// Already at target; nothing to move, nothing to record.
		return Movement{Balance: current}, nil
	}
	return w.write(ctx, MoveInput{
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		Quantity:    delta,
		Type:        MovementAdjust,
		UserID:      input.UserID,
		UnitCost:    input.UnitCost,
		Note:        input.Note,
	})
}

// StockCard lists kardex entries for a product/warehouse pair.
func (w *Writer) StockCard(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.ProductID == 0 {
		return nil, shared.Invalid("product required")
	}
	if filter.Limit <= 0 {
		filter.Limit = 200
	}
	return w.store.ListEntries(ctx, filter)
}

func (w *Writer) write(ctx context.Context, input MoveInput) (Movement, error) {
	newBalance, err := w.store.ApplyDelta(ctx, input.ProductID, input.WarehouseID, input.Quantity)
	if err != nil {
		return Movement{}, fmt.Errorf("ledger: apply delta: %w", err)
	}

	id, err := w.seq.Next(ctx, sequence.SeqKardex)
	if err != nil {
		return Movement{}, w.diverged(input, newBalance, err)
	}
	entry := Entry{
		ID:             id,
		ProductID:      input.ProductID,
		WarehouseID:    input.WarehouseID,
		Type:           input.Type,
		Quantity:       input.Quantity,
		Balance:        newBalance,
		DocumentID:     input.DocumentID,
		DocumentLineID: input.DocumentLineID,
		DocumentNumber: input.DocumentNumber,
		UnitCost:       input.UnitCost,
		UnitPrice:      input.UnitPrice,
		Note:           input.Note,
		UserID:         input.UserID,
		PostedAt:       time.Now().UTC(),
	}
	if err := w.store.InsertEntry(ctx, entry); err != nil {
		return Movement{}, w.diverged(input, newBalance, err)
	}
	return Movement{EntryID: id, Balance: newBalance}, nil
}

// diverged reports the accepted residual risk: the balance write already
// landed but the kardex entry did not.
func (w *Writer) diverged(input MoveInput, balance float64, err error) error {
	w.logger.Error("kardex entry not recorded, balance already applied",
		slog.Int64("product_id", input.ProductID),
		slog.Int64("warehouse_id", input.WarehouseID),
		slog.Float64("quantity", input.Quantity),
		slog.Float64("balance", balance),
		slog.Any("error", err))
	return fmt.Errorf("ledger: append entry: %w", err)
}
