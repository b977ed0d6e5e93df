package reporting

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tienda-erp/tienda-erp/internal/platform/cache"
	"github.com/tienda-erp/tienda-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the reporting module. Responses are cached
// in redis under reports:* keys, which mutating workflows invalidate.
type Handler struct {
	logger  *slog.Logger
	service *Service
	cache   *cache.ReportCache
}

// NewHandler constructs the reporting handler. cache may be nil.
func NewHandler(logger *slog.Logger, service *Service, reports *cache.ReportCache) *Handler {
	return &Handler{logger: logger, service: service, cache: reports}
}

// MountRoutes registers reporting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/credit", h.handleCredit)
	r.Get("/reports/net-tax", h.handleNetTax)
}

func (h *Handler) handleCredit(w http.ResponseWriter, r *http.Request) {
	window := windowDays(r)
	key := fmt.Sprintf("reports:credit:%d", window)
	var cached CreditReport
	if err := h.cache.Get(r.Context(), key, &cached); err == nil {
		httpx.JSON(w, http.StatusOK, cached)
		return
	}
	report, err := h.service.CreditSummary(r.Context(), window)
	if err != nil {
		h.logger.Error("credit summary failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := h.cache.Set(r.Context(), key, report); err != nil {
		h.logger.Warn("credit summary cache write failed", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleNetTax(w http.ResponseWriter, r *http.Request) {
	window := windowDays(r)
	key := fmt.Sprintf("reports:nettax:%d", window)
	var cached NetTaxReport
	if err := h.cache.Get(r.Context(), key, &cached); err == nil {
		httpx.JSON(w, http.StatusOK, cached)
		return
	}
	report, err := h.service.NetTaxReport(r.Context(), window)
	if err != nil {
		h.logger.Error("net tax report failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := h.cache.Set(r.Context(), key, report); err != nil {
		h.logger.Warn("net tax cache write failed", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, report)
}

func windowDays(r *http.Request) int {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days <= 0 || days > 365 {
		return 30
	}
	return days
}
