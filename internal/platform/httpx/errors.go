package httpx

import (
	"errors"
	"net/http"

	"github.com/tienda-erp/tienda-erp/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrDocumentFinalized):
		Problem(w, http.StatusConflict, "Document Finalized", err.Error())
	case errors.Is(err, shared.ErrAllocationExhausted):
		Problem(w, http.StatusConflict, "Allocation Exhausted", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
