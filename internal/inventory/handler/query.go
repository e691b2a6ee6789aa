package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/httputil"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
)

// QueryHandler handles the read model endpoints
type QueryHandler struct {
	queries *service.QueryService
	logger  *logger.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queries *service.QueryService, log *logger.Logger) *QueryHandler {
	return &QueryHandler{
		queries: queries,
		logger:  log,
	}
}

// Status lists cells with their derived stock status
func (h *QueryHandler) Status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := service.StockStatus(q.Get("status"))
	switch status {
	case "", service.StatusNormal, service.StatusLowStock, service.StatusOutOfStock, service.StatusOverstocked:
	default:
		httputil.Error(w, errors.Input("unknown status "+string(status)))
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, err := h.queries.Status(r.Context(), service.StatusFilter{
		CellFilter: repository.CellFilter{
			WarehouseID: q.Get("warehouse_id"),
			ProductID:   q.Get("product_id"),
			Search:      q.Get("search"),
			Limit:       max(limit, 0),
			Offset:      max(offset, 0),
		},
		Status: status,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rows)
}

// Valuation prices stock under a costing method
func (h *QueryHandler) Valuation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	valuation, err := h.queries.Valuation(r.Context(), q.Get("warehouse_id"), repository.CostingMethod(q.Get("method")))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, valuation)
}

// Movements pages through the ledger, newest first
func (h *QueryHandler) Movements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	filter := repository.MovementFilter{
		ProductID:    q.Get("product_id"),
		WarehouseID:  q.Get("warehouse_id"),
		MovementType: repository.MovementType(q.Get("movement_type")),
		Page:         page,
		Limit:        limit,
	}

	var err error
	if filter.From, err = parseTime(q.Get("from")); err != nil {
		httputil.Error(w, err)
		return
	}
	if filter.To, err = parseTime(q.Get("to")); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.queries.Movements(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, result.Items, &httputil.Meta{
		Page:       result.Page,
		PerPage:    result.Limit,
		Total:      result.Total,
		TotalPages: result.TotalPages,
	})
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errors.Input("timestamps must be RFC 3339: " + s)
	}
	return &t, nil
}
