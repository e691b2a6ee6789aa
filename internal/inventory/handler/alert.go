package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/httputil"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// AlertHandler handles reorder alert endpoints
type AlertHandler struct {
	monitor *service.ReorderMonitor
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(monitor *service.ReorderMonitor, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		monitor: monitor,
		logger:  log,
	}
}

// List lists alerts. status takes a comma separated list.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}

	filter := repository.AlertFilter{
		WarehouseID: q.Get("warehouse_id"),
		ProductID:   q.Get("product_id"),
		AlertType:   repository.AlertType(q.Get("type")),
		Limit:       limit,
	}

	switch filter.AlertType {
	case "", repository.AlertLowStock, repository.AlertOutOfStock:
	default:
		httputil.Error(w, errors.Input("unknown alert type "+string(filter.AlertType)))
		return
	}

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := repository.AlertStatus(strings.TrimSpace(s))
			switch status {
			case repository.AlertPending, repository.AlertAcknowledged, repository.AlertResolved:
				filter.Statuses = append(filter.Statuses, status)
			default:
				httputil.Error(w, errors.Input("unknown alert status "+string(status)))
				return
			}
		}
	}

	alerts, err := h.monitor.ListAlerts(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if alerts == nil {
		alerts = []repository.ReorderAlert{}
	}

	httputil.JSON(w, http.StatusOK, alerts)
}

// Acknowledge acknowledges a pending alert
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	alert, err := h.monitor.Acknowledge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// Resolve closes an open alert
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	alert, err := h.monitor.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}
