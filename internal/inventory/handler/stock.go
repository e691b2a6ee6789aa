// Package handler is the HTTP adapter over the inventory core.
package handler

import (
	"net/http"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/NandhanI20020/IMS-sub000/pkg/httputil"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// StockHandler handles stock mutation endpoints
type StockHandler struct {
	stock   *service.StockService
	queries *service.QueryService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(stock *service.StockService, queries *service.QueryService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		stock:   stock,
		queries: queries,
		logger:  log,
	}
}

// Update applies one stock mutation
func (h *StockHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateStockRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	update, err := h.stock.UpdateStock(r.Context(), req.toService())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, update)
}

// Adjust posts a manual increase or decrease
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	update, err := h.stock.Adjust(r.Context(), service.AdjustRequest{
		ProductID:     req.ProductID,
		WarehouseID:   req.WarehouseID,
		Kind:          service.AdjustKind(req.AdjustmentType),
		Quantity:      req.Quantity,
		Reason:        req.Reason,
		Reference:     req.ReferenceNumber,
		UnitCost:      req.UnitCost,
		CostingMethod: repository.CostingMethod(req.CostingMethod),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, update)
}

// Bulk applies many mutations with per-item results. Partial success still
// answers 200.
func (h *StockHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req BulkUpdateRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	items := make([]service.UpdateRequest, len(req.Updates))
	for i, u := range req.Updates {
		items[i] = u.toService()
	}

	results := h.stock.BulkUpdate(r.Context(), items)

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	if failed > 0 {
		h.logger.Info().
			Int("items", len(results)).
			Int("failed", failed).
			Msg("bulk update finished with failures")
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"results":   results,
		"succeeded": len(results) - failed,
		"failed":    failed,
	})
}

// GetCell returns one cell's committed state
func (h *StockHandler) GetCell(w http.ResponseWriter, r *http.Request) {
	cell, err := h.queries.Cell(r.Context(), chi.URLParam(r, "productID"), chi.URLParam(r, "warehouseID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, cell)
}
