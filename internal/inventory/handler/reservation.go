package handler

import (
	"net/http"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/NandhanI20020/IMS-sub000/pkg/httputil"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// ReservationHandler handles reservation endpoints
type ReservationHandler struct {
	reservations *service.ReservationService
	logger       *logger.Logger
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservations *service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		reservations: reservations,
		logger:       log,
	}
}

// Reserve places a hold on available stock
func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.reservations.Reserve(r.Context(), service.ReserveRequest{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		Reference:   req.ReferenceNumber,
		Reason:      req.Reason,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// Get gets a reservation by ID
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}

// Release returns a reservation's quantity to available
func (h *ReservationHandler) Release(w http.ResponseWriter, r *http.Request) {
	result, err := h.reservations.Release(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Consume sells a reservation's quantity
func (h *ReservationHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	update, err := h.reservations.Consume(r.Context(), chi.URLParam(r, "id"), repository.CostingMethod(req.CostingMethod))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, update)
}
