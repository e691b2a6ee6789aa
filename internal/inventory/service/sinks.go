package service

import (
	"context"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/notify"
)

// Broadcaster fans committed changes out to subscribers. Calls happen after
// commit; errors are logged and never roll anything back.
type Broadcaster interface {
	BroadcastInventoryUpdate(ctx context.Context, cell *repository.InventoryCell, movement *repository.StockMovement) error
	BroadcastLowStockAlert(ctx context.Context, alert *repository.ReorderAlert) error
	BroadcastTransferFailed(ctx context.Context, transfer *repository.StockTransfer) error
}

// Mailer is the low-stock mail sink.
type Mailer = notify.Mailer

// StatusCache caches status query results per warehouse.
type StatusCache interface {
	GetStatus(ctx context.Context, filter repository.CellFilter) ([]CellStatus, bool, error)
	SetStatus(ctx context.Context, filter repository.CellFilter, rows []CellStatus) error
	InvalidateWarehouse(ctx context.Context, warehouseID string) error
}

// Enqueuer accepts reorder checks without blocking. A false return means
// the check was dropped.
type Enqueuer interface {
	Enqueue(key repository.CellKey) bool
}
