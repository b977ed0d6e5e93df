package ledger

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn is an inbound movement tied to a document.
	MovementIn MovementType = "IN"
	// MovementOut is an outbound movement tied to a document.
	MovementOut MovementType = "OUT"
	// MovementAdjust is a direct correction to a target quantity.
	MovementAdjust MovementType = "ADJUST"
)

// Entry is one append-only kardex record: a signed quantity change and the
// on-hand balance it produced. Entries are never updated or deleted.
type Entry struct {
	ID             int64
	ProductID      int64
	WarehouseID    int64
	Type           MovementType
	Quantity       float64
	Balance        float64
	DocumentID     int64
	DocumentLineID int64
	DocumentNumber string
	UnitCost       float64
	UnitPrice      float64
	Note           string
	UserID         int64
	PostedAt       time.Time
}

// MoveInput describes a signed delta movement.
type MoveInput struct {
	ProductID      int64
	WarehouseID    int64
	Quantity       float64
	Type           MovementType
	DocumentID     int64
	DocumentLineID int64
	DocumentNumber string
	UserID         int64
	UnitCost       float64
	UnitPrice      float64
	Note           string
}

// AdjustInput corrects stock to a target quantity; the writer derives the
// signed delta from the current balance.
type AdjustInput struct {
	ProductID   int64
	WarehouseID int64
	TargetQty   float64
	UserID      int64
	UnitCost    float64
	Note        string
}

// Movement is the outcome of a write: the appended entry id and the balance
// after the delta.
type Movement struct {
	EntryID int64
	Balance float64
}

// Filter selects kardex entries for listing.
type Filter struct {
	ProductID   int64
	WarehouseID int64
	From        time.Time
	To          time.Time
	Limit       int
}

// ErrInvalidQuantity indicates a zero delta on an IN/OUT movement.
var ErrInvalidQuantity = errors.New("ledger: quantity must be non zero")

// ErrInvalidMovement indicates an unknown movement type.
var ErrInvalidMovement = errors.New("ledger: unknown movement type")
