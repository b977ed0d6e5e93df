package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tienda-erp/tienda-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for stock movements and the kardex.
type Handler struct {
	logger   *slog.Logger
	writer   *Writer
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, writer *Writer, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, writer: writer, validate: validate}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stock/movements", h.handleMove)
	r.Post("/stock/adjustments", h.handleAdjust)
	r.Get("/stock/card", h.handleStockCard)
}

type moveRequest struct {
	ProductID   int64   `json:"productId" validate:"required,gt=0"`
	WarehouseID int64   `json:"warehouseId" validate:"gte=0"`
	Quantity    float64 `json:"quantity" validate:"required"`
	Type        string  `json:"type" validate:"required,oneof=IN OUT"`
	UnitCost    float64 `json:"unitCost" validate:"gte=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
	Note        string  `json:"note"`
	UserID      int64   `json:"userId"`
}

type adjustRequest struct {
	ProductID   int64   `json:"productId" validate:"required,gt=0"`
	WarehouseID int64   `json:"warehouseId" validate:"gte=0"`
	TargetQty   float64 `json:"targetQty" validate:"gte=0"`
	UnitCost    float64 `json:"unitCost" validate:"gte=0"`
	Note        string  `json:"note"`
	UserID      int64   `json:"userId"`
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mv, err := h.writer.Move(r.Context(), MoveInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		Type:        MovementType(req.Type),
		UnitCost:    req.UnitCost,
		UnitPrice:   req.UnitPrice,
		Note:        req.Note,
		UserID:      req.UserID,
	})
	if err != nil {
		h.logger.Error("stock move failed", slog.Int64("product_id", req.ProductID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"entryId": mv.EntryID, "balance": mv.Balance})
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body is not valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mv, err := h.writer.Adjust(r.Context(), AdjustInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		TargetQty:   req.TargetQty,
		UnitCost:    req.UnitCost,
		Note:        req.Note,
		UserID:      req.UserID,
	})
	if err != nil {
		h.logger.Error("stock adjust failed", slog.Int64("product_id", req.ProductID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entryId": mv.EntryID, "balance": mv.Balance})
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{}
	if id, err := strconv.ParseInt(q.Get("product_id"), 10, 64); err == nil {
		filter.ProductID = id
	}
	if id, err := strconv.ParseInt(q.Get("warehouse_id"), 10, 64); err == nil {
		filter.WarehouseID = id
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	entries, err := h.writer.StockCard(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}
