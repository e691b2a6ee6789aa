package service

import (
	"context"
	"fmt"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/pkg/actor"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReserveRequest places a soft hold on available stock.
type ReserveRequest struct {
	ProductID   string
	WarehouseID string
	Quantity    int64
	Reference   *string
	Reason      *string
}

// ReservationResult is the committed cell and reservation.
type ReservationResult struct {
	Cell        *repository.InventoryCell `json:"cell"`
	Reservation *repository.Reservation   `json:"reservation"`
}

// ReservationService owns reservations and the reserved quantity of cells.
// It shares the stock service's lease table so reservation changes and stock
// mutations on one cell never interleave within a process.
type ReservationService struct {
	stock *StockService
}

// NewReservationService creates a new reservation service
func NewReservationService(stock *StockService) *ReservationService {
	return &ReservationService{stock: stock}
}

// Reserve holds qty units of the cell's available stock.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*ReservationResult, error) {
	if err := requireCell(req.ProductID, req.WarehouseID); err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, errors.Input("reservation quantity must be positive")
	}

	key := repository.CellKey{ProductID: req.ProductID, WarehouseID: req.WarehouseID}
	var result ReservationResult

	err := s.withCell(ctx, "inventory.reserve", key, func(ctx context.Context, tx repository.Tx, auditID *string) error {
		if _, err := tx.GetProduct(ctx, req.ProductID); err != nil {
			return err
		}
		if _, err := tx.GetWarehouse(ctx, req.WarehouseID); err != nil {
			return err
		}

		cell, err := tx.LockCell(ctx, req.ProductID, req.WarehouseID)
		if err != nil {
			return err
		}
		if cell.Available < req.Quantity {
			return errors.InsufficientAvailable(cell.Available, req.Quantity)
		}

		cell.Reserved += req.Quantity
		cell.RecomputeAvailable()
		cell.UpdatedBy = auditID
		if err := tx.SaveCell(ctx, cell); err != nil {
			return err
		}

		r := &repository.Reservation{
			ID:          uuid.NewString(),
			ProductID:   req.ProductID,
			WarehouseID: req.WarehouseID,
			Quantity:    req.Quantity,
			Reference:   req.Reference,
			Reason:      req.Reason,
			Status:      repository.ReservationActive,
			CreatedBy:   auditID,
			CreatedAt:   s.stock.now(),
		}
		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}

		result = ReservationResult{Cell: cell, Reservation: r}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Release returns an active reservation's quantity to available stock.
// Reserved is clamped at zero.
func (s *ReservationService) Release(ctx context.Context, reservationID string) (*ReservationResult, error) {
	existing, err := s.stock.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if existing.Status != repository.ReservationActive {
		return nil, notActive(existing)
	}

	var result ReservationResult
	err = s.withCell(ctx, "inventory.release", existing.Key(), func(ctx context.Context, tx repository.Tx, auditID *string) error {
		// Cell before reservation, the same order consume uses.
		cell, err := tx.LockCell(ctx, existing.ProductID, existing.WarehouseID)
		if err != nil {
			return err
		}
		r, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.Status != repository.ReservationActive {
			return notActive(r)
		}

		cell.Reserved = max(cell.Reserved-r.Quantity, 0)
		cell.RecomputeAvailable()
		cell.UpdatedBy = auditID
		if err := tx.SaveCell(ctx, cell); err != nil {
			return err
		}

		at := s.stock.now()
		r.Status = repository.ReservationReleased
		r.ReleasedAt = &at
		r.ClosedBy = auditID
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}

		result = ReservationResult{Cell: cell, Reservation: r}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Consume posts a sale of the reservation's quantity and marks it consumed
// in the same unit of work.
func (s *ReservationService) Consume(ctx context.Context, reservationID string, method repository.CostingMethod) (*StockUpdate, error) {
	r, err := s.stock.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r.Status != repository.ReservationActive {
		return nil, notActive(r)
	}

	reason := "reservation consumed"
	req := UpdateRequest{
		ProductID:       r.ProductID,
		WarehouseID:     r.WarehouseID,
		Delta:           -r.Quantity,
		MovementType:    repository.MovementSale,
		Reference:       r.Reference,
		Reason:          &reason,
		CostingMethod:   method,
		PreventNegative: true,
		ReservationID:   &reservationID,
	}
	return s.stock.mutate(ctx, "inventory.consume_reservation", req, consumeReservation(reservationID))
}

// Get returns a reservation by id.
func (s *ReservationService) Get(ctx context.Context, id string) (*repository.Reservation, error) {
	return s.stock.store.GetReservation(ctx, id)
}

// withCell runs fn in a unit of work under the cell lease, then performs the
// post-commit side effects for the cell fn saved.
func (s *ReservationService) withCell(
	ctx context.Context,
	spanName string,
	key repository.CellKey,
	fn func(ctx context.Context, tx repository.Tx, auditID *string) error,
) error {
	release, ok := s.stock.leases.TryAcquire(key.String())
	if !ok {
		return errors.ConcurrentUpdate(key.String())
	}
	defer release()

	ctx, span := s.stock.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("inventory.product_id", key.ProductID),
		attribute.String("inventory.warehouse_id", key.WarehouseID),
	))
	defer span.End()

	ctx, cancel := s.stock.withTimeout(ctx)
	defer cancel()

	auditID := actor.FromContext(ctx).AuditID()
	var saved *repository.InventoryCell
	err := s.stock.store.UnitOfWork(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, &cellTracker{Tx: tx, saved: &saved}, auditID)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if saved != nil {
		s.stock.afterCommit(ctx, saved, nil)
	}
	return nil
}

// cellTracker remembers the last cell saved through it.
type cellTracker struct {
	repository.Tx
	saved **repository.InventoryCell
}

func (t *cellTracker) SaveCell(ctx context.Context, cell *repository.InventoryCell) error {
	if err := t.Tx.SaveCell(ctx, cell); err != nil {
		return err
	}
	*t.saved = cell
	return nil
}

func notActive(r *repository.Reservation) error {
	return errors.Conflict(fmt.Sprintf("reservation is %s", r.Status)).
		WithDetails(map[string]string{"reservation_id": r.ID, "status": string(r.Status)})
}
