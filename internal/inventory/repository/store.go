package repository

import (
	"context"
	"time"
)

// Store is the persistence gateway of the inventory core. Reads run against
// the latest committed state; every write happens inside UnitOfWork.
type Store interface {
	Reader

	// UnitOfWork runs fn in one transaction. A nil return commits, anything
	// else rolls back and is returned to the caller.
	UnitOfWork(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Reader holds the non-locking queries.
type Reader interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetWarehouse(ctx context.Context, id string) (*Warehouse, error)
	GetCell(ctx context.Context, productID, warehouseID string) (*InventoryCell, error)
	ListCellViews(ctx context.Context, filter CellFilter) ([]CellView, error)
	ListLayers(ctx context.Context, productID, warehouseID string) ([]CostLayer, error)
	ListLayersByWarehouse(ctx context.Context, warehouseID string) ([]CostLayer, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, int64, error)
	GetReservation(ctx context.Context, id string) (*Reservation, error)
	GetTransfer(ctx context.Context, id string) (*StockTransfer, error)
	GetAlert(ctx context.Context, id string) (*ReorderAlert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]ReorderAlert, error)
	GetPurchaseOrder(ctx context.Context, id string) (*PurchaseOrder, error)
	ListWarehouseManagers(ctx context.Context, warehouseID string) ([]CachedUser, error)
}

// Tx is the transactional surface handed to UnitOfWork callbacks.
type Tx interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetWarehouse(ctx context.Context, id string) (*Warehouse, error)

	// LockCell takes an exclusive row lock on the cell, creating it with
	// zero quantities when it does not exist yet.
	LockCell(ctx context.Context, productID, warehouseID string) (*InventoryCell, error)
	SaveCell(ctx context.Context, cell *InventoryCell) error

	// ListLayers returns the cell's layers oldest first, ties broken by id.
	ListLayers(ctx context.Context, productID, warehouseID string) ([]CostLayer, error)
	InsertLayer(ctx context.Context, layer *CostLayer) error
	UpdateLayerRemaining(ctx context.Context, id int64, remaining int64) error
	DeleteLayer(ctx context.Context, id int64) error

	InsertMovement(ctx context.Context, m *StockMovement) error

	InsertReservation(ctx context.Context, r *Reservation) error
	LockReservation(ctx context.Context, id string) (*Reservation, error)
	UpdateReservation(ctx context.Context, r *Reservation) error

	InsertTransfer(ctx context.Context, t *StockTransfer) error

	// FindPendingAlert returns nil, nil when the cell has no pending alert.
	FindPendingAlert(ctx context.Context, productID, warehouseID string) (*ReorderAlert, error)
	InsertAlert(ctx context.Context, a *ReorderAlert) error
	LockAlert(ctx context.Context, id string) (*ReorderAlert, error)
	UpdateAlert(ctx context.Context, a *ReorderAlert) error

	// LockPurchaseOrder locks the order row and loads its lines.
	LockPurchaseOrder(ctx context.Context, id string) (*PurchaseOrder, error)
	UpdatePurchaseOrderLine(ctx context.Context, line *PurchaseOrderLine) error
	UpdatePurchaseOrder(ctx context.Context, po *PurchaseOrder) error
}

// UserCache is written by the user event consumer.
type UserCache interface {
	GetUser(ctx context.Context, userID string) (*CachedUser, error)
	UpsertUser(ctx context.Context, u *CachedUser) error
	DeleteUser(ctx context.Context, userID string) error
}

// CellFilter narrows ListCellViews.
type CellFilter struct {
	WarehouseID string
	ProductID   string
	Search      string
	Limit       int
	Offset      int
}

// MovementFilter narrows ListMovements. Page is 1-based.
type MovementFilter struct {
	ProductID    string
	WarehouseID  string
	MovementType MovementType
	From         *time.Time
	To           *time.Time
	Page         int
	Limit        int
}

// Offset converts Page and Limit into a row offset.
func (f MovementFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// AlertFilter narrows ListAlerts. An empty Statuses matches all statuses.
type AlertFilter struct {
	WarehouseID string
	ProductID   string
	Statuses    []AlertStatus
	AlertType   AlertType
	Limit       int
}
