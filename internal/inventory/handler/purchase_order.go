package handler

import (
	"net/http"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/NandhanI20020/IMS-sub000/pkg/httputil"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// PurchaseOrderHandler handles goods receipt endpoints
type PurchaseOrderHandler struct {
	orders *service.PurchaseOrderService
	logger *logger.Logger
}

// NewPurchaseOrderHandler creates a new purchase order handler
func NewPurchaseOrderHandler(orders *service.PurchaseOrderService, log *logger.Logger) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{
		orders: orders,
		logger: log,
	}
}

// Receive posts received quantities against an order's lines
func (h *PurchaseOrderHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req ReceiveRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	lines := make([]service.ReceiveLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = service.ReceiveLine{
			LineID:   l.LineID,
			Quantity: l.Quantity,
			Batch:    l.BatchNumber,
		}
	}

	result, err := h.orders.Receive(r.Context(), chi.URLParam(r, "id"), lines)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
