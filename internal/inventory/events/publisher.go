// Package events broadcasts committed inventory changes on the inventory
// events exchange.
package events

import (
	"context"
	"time"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/NandhanI20020/IMS-sub000/pkg/messaging"
)

// Source is the event source name of this service.
const Source = "inventory-service"

// InventoryEventPublisher publishes inventory events. A nil publisher is a
// valid no-op broadcaster.
type InventoryEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher declares the inventory exchange and returns a publisher on it
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, Source, log)
	if err != nil {
		return nil, err
	}
	return NewPublisher(publisher, log), nil
}

// NewPublisher wraps an existing event publisher
func NewPublisher(publisher messaging.EventPublisher, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log.WithComponent("inventory_events"),
	}
}

// BroadcastInventoryUpdate publishes the committed state of a cell.
func (p *InventoryEventPublisher) BroadcastInventoryUpdate(ctx context.Context, cell *repository.InventoryCell, movement *repository.StockMovement) error {
	if p == nil {
		return nil
	}

	data := messaging.CellUpdatedEvent{
		ProductID:       cell.ProductID,
		WarehouseID:     cell.WarehouseID,
		OnHand:          cell.OnHand,
		Reserved:        cell.Reserved,
		Available:       cell.Available,
		WeightedAvgCost: cell.WeightedAvgCost,
		UpdatedAt:       cell.UpdatedAt,
	}
	if data.UpdatedAt.IsZero() {
		data.UpdatedAt = time.Now().UTC()
	}
	if movement != nil {
		data.MovementID = movement.ID
		data.MovementType = string(movement.MovementType)
		data.Quantity = movement.Quantity
	}

	return p.publisher.Publish(ctx, messaging.EventCellUpdated, data)
}

// BroadcastLowStockAlert publishes a raised reorder alert.
func (p *InventoryEventPublisher) BroadcastLowStockAlert(ctx context.Context, alert *repository.ReorderAlert) error {
	if p == nil {
		return nil
	}

	return p.publisher.Publish(ctx, messaging.EventReorderAlert, messaging.ReorderAlertEvent{
		AlertID:           alert.ID,
		ProductID:         alert.ProductID,
		WarehouseID:       alert.WarehouseID,
		AlertType:         string(alert.AlertType),
		OnHand:            alert.OnHandAtTrigger,
		Available:         alert.AvailableAtTrigger,
		ReorderLevel:      alert.ReorderLevel,
		SuggestedQuantity: alert.SuggestedQuantity,
		CreatedAt:         alert.CreatedAt,
	})
}

// BroadcastTransferFailed publishes an orphaned transfer for operators.
func (p *InventoryEventPublisher) BroadcastTransferFailed(ctx context.Context, transfer *repository.StockTransfer) error {
	if p == nil {
		return nil
	}

	data := messaging.TransferFailedEvent{
		TransferID:      transfer.ID,
		ProductID:       transfer.ProductID,
		FromWarehouseID: transfer.FromWarehouseID,
		ToWarehouseID:   transfer.ToWarehouseID,
		Quantity:        transfer.Quantity,
	}
	if transfer.FailureReason != nil {
		data.FailureReason = *transfer.FailureReason
	}

	if err := p.publisher.Publish(ctx, messaging.EventTransferFailed, data); err != nil {
		p.logger.Error().Err(err).Str("transfer_id", transfer.ID).Msg("failed to publish transfer failed event")
		return err
	}
	return nil
}
