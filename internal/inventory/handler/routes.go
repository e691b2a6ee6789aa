package handler

import (
	"github.com/go-chi/chi/v5"
)

// Handlers groups the inventory endpoints for mounting on a router.
type Handlers struct {
	Stock          *StockHandler
	Reservations   *ReservationHandler
	Transfers      *TransferHandler
	Queries        *QueryHandler
	Alerts         *AlertHandler
	PurchaseOrders *PurchaseOrderHandler
}

// Mount registers the API routes under /api/v1/inventory.
func (h *Handlers) Mount(r chi.Router) {
	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Route("/stock", func(r chi.Router) {
			r.Post("/update", h.Stock.Update)
			r.Post("/adjust", h.Stock.Adjust)
			r.Post("/bulk", h.Stock.Bulk)
			r.Get("/status", h.Queries.Status)
			r.Get("/valuation", h.Queries.Valuation)
			r.Get("/movements", h.Queries.Movements)
		})

		r.Get("/cells/{productID}/{warehouseID}", h.Stock.GetCell)

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", h.Transfers.Create)
			r.Get("/{id}", h.Transfers.Get)
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", h.Reservations.Reserve)
			r.Get("/{id}", h.Reservations.Get)
			r.Post("/{id}/release", h.Reservations.Release)
			r.Post("/{id}/consume", h.Reservations.Consume)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.Alerts.List)
			r.Put("/{id}/acknowledge", h.Alerts.Acknowledge)
			r.Put("/{id}/resolve", h.Alerts.Resolve)
		})

		r.Post("/purchase-orders/{id}/receive", h.PurchaseOrders.Receive)
	})
}
