package sequence

import (
	"github.com/tienda-erp/tienda-erp/internal/shared"
)

// Well-known counter names. Counters are created lazily on first use and only
// ever move upward.
const (
	SeqDocument     = "documentId"
	SeqDocumentLine = "documentItemId"
	SeqKardex       = "kardexId"
)

// maxAttempts bounds the verify-and-reseed loop. Past this the allocator
// fails loudly instead of spinning.
const maxAttempts = 10

// ErrExhausted is returned when a verified allocation ran out of attempts.
var ErrExhausted = shared.ErrAllocationExhausted
