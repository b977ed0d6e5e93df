package document

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tienda-erp/tienda-erp/internal/platform/httpx"
	"github.com/tienda-erp/tienda-erp/internal/shared"
)

// Handler wires HTTP endpoints for the document module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	lifecycle LifecyclePort
	validate  *validator.Validate
}

// NewHandler constructs the document handler.
func NewHandler(logger *slog.Logger, service *Service, lifecycle LifecyclePort, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, lifecycle: lifecycle, validate: validate}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/documents", h.handleCreate)
	r.Get("/documents/{id}", h.handleGet)
	r.Post("/documents/{id}/finalize", h.handleFinalize)
	r.Put("/documents/{id}/lines", h.handleApplyLines)
	r.Post("/documents/{id}/void", h.handleVoid)
}

type createLineRequest struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64 `json:"unitPrice" validate:"gte=0"`
}

type createDocumentRequest struct {
	TypeID          int64               `json:"typeId" validate:"required,gt=0"`
	WarehouseID     int64               `json:"warehouseId" validate:"gte=0"`
	ClientID        int64               `json:"clientId"`
	SupplierID      int64               `json:"supplierId"`
	Date            string              `json:"date"`
	DueDate         string              `json:"dueDate"`
	Discount        float64             `json:"discount" validate:"gte=0"`
	DiscountType    string              `json:"discountType" validate:"omitempty,oneof=FLAT PERCENT"`
	IdempotencyKey  string              `json:"idempotencyKey"`
	ReferenceNumber string              `json:"referenceNumber"`
	Note            string              `json:"note"`
	Lines           []createLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type lineChangeRequest struct {
	LineID    int64   `json:"lineId"`
	ProductID int64   `json:"productId"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice" validate:"gte=0"`
	Remove    bool    `json:"remove"`
}

type applyLinesRequest struct {
	Changes []lineChangeRequest `json:"changes" validate:"required,min=1,dive"`
	UserID  int64               `json:"userId"`
}

type voidRequest struct {
	Reason string `json:"reason"`
	UserID int64  `json:"userId"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := CreateDocumentInput{
		TypeID:          req.TypeID,
		WarehouseID:     req.WarehouseID,
		ClientID:        req.ClientID,
		SupplierID:      req.SupplierID,
		Discount:        req.Discount,
		DiscountType:    DiscountType(req.DiscountType),
		IdempotencyKey:  req.IdempotencyKey,
		ReferenceNumber: req.ReferenceNumber,
		Note:            req.Note,
	}
	if req.Date != "" {
		t, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		in.Date = t
	}
	if req.DueDate != "" {
		t, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dueDate must be YYYY-MM-DD")
			return
		}
		in.DueDate = &t
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, CreateLineInput{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	doc, err := h.lifecycle.CreateDocument(r.Context(), in)
	if err != nil {
		h.logger.Error("create document failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, documentResponse(doc))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.repo.GetDocument(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, documentResponse(doc))
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.lifecycle.Finalize(r.Context(), id, userIDFromQuery(r)); err != nil {
		h.logger.Error("finalize failed", slog.Int64("document_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"documentId": id, "finalized": true})
}

func (h *Handler) handleApplyLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req applyLinesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	changes := make([]LineChange, 0, len(req.Changes))
	for _, c := range req.Changes {
		changes = append(changes, LineChange{
			LineID:    c.LineID,
			ProductID: c.ProductID,
			Quantity:  c.Quantity,
			UnitPrice: c.UnitPrice,
			Remove:    c.Remove,
		})
	}
	if err := h.service.ApplyLineChanges(r.Context(), id, changes, req.UserID); err != nil {
		h.logger.Error("apply line changes failed", slog.Int64("document_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.repo.GetDocument(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, documentResponse(doc))
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	result, err := h.service.Void(r.Context(), id, req.Reason, req.UserID)
	if err != nil {
		h.logger.Error("void failed", slog.Int64("document_id", id),
			slog.String("message", shared.UserSafeMessage(err)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func documentResponse(doc Document) map[string]any {
	resp := map[string]any{
		"id":           doc.ID,
		"number":       doc.Number,
		"typeId":       doc.TypeID,
		"warehouseId":  doc.WarehouseID,
		"date":         doc.Date,
		"total":        doc.Total,
		"discount":     doc.Discount,
		"discountType": string(doc.DiscountType),
		"paidStatus":   string(doc.PaidStatus),
		"finalized":    doc.Finalized,
		"note":         doc.Note,
	}
	if doc.ClientID != 0 {
		resp["clientId"] = doc.ClientID
	}
	if doc.SupplierID != 0 {
		resp["supplierId"] = doc.SupplierID
	}
	if doc.DueDate != nil {
		resp["dueDate"] = doc.DueDate
	}
	if doc.ReferenceNumber != "" {
		resp["referenceNumber"] = doc.ReferenceNumber
	}
	return resp
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func userIDFromQuery(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
