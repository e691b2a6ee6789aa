package handler

import (
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/shopspring/decimal"
)

// UpdateStockRequest is the body of POST /stock/update.
type UpdateStockRequest struct {
	ProductID       string           `json:"product_id" validate:"required"`
	WarehouseID     string           `json:"warehouse_id" validate:"required"`
	QuantityChange  int64            `json:"quantity_change" validate:"ne=0"`
	MovementType    string           `json:"movement_type" validate:"required"`
	UnitCost        *decimal.Decimal `json:"unit_cost,omitempty"`
	ReferenceNumber *string          `json:"reference_number,omitempty"`
	Reason          *string          `json:"reason,omitempty"`
	BatchNumber     *string          `json:"batch_number,omitempty"`
	CostingMethod   string           `json:"costing_method,omitempty"`
	PreventNegative bool             `json:"prevent_negative,omitempty"`
	ReservationID   *string          `json:"reservation_id,omitempty"`
}

func (r UpdateStockRequest) toService() service.UpdateRequest {
	return service.UpdateRequest{
		ProductID:       r.ProductID,
		WarehouseID:     r.WarehouseID,
		Delta:           r.QuantityChange,
		MovementType:    repository.MovementType(r.MovementType),
		UnitCost:        r.UnitCost,
		Reference:       r.ReferenceNumber,
		Reason:          r.Reason,
		Batch:           r.BatchNumber,
		CostingMethod:   repository.CostingMethod(r.CostingMethod),
		PreventNegative: r.PreventNegative,
		ReservationID:   r.ReservationID,
	}
}

// BulkUpdateRequest is the body of POST /stock/bulk. Items are not validated
// here; each one fails or succeeds on its own.
type BulkUpdateRequest struct {
	Updates []UpdateStockRequest `json:"updates" validate:"required,min=1"`
}

// AdjustRequest is the body of POST /stock/adjust.
type AdjustRequest struct {
	ProductID       string           `json:"product_id" validate:"required"`
	WarehouseID     string           `json:"warehouse_id" validate:"required"`
	AdjustmentType  string           `json:"adjustment_type" validate:"required,oneof=increase decrease"`
	Quantity        int64            `json:"quantity" validate:"gt=0"`
	Reason          *string          `json:"reason,omitempty"`
	ReferenceNumber *string          `json:"reference_number,omitempty"`
	UnitCost        *decimal.Decimal `json:"unit_cost,omitempty"`
	CostingMethod   string           `json:"costing_method,omitempty"`
}

// TransferRequest is the body of POST /transfers.
type TransferRequest struct {
	ProductID       string  `json:"product_id" validate:"required"`
	FromWarehouseID string  `json:"from_warehouse_id" validate:"required"`
	ToWarehouseID   string  `json:"to_warehouse_id" validate:"required"`
	Quantity        int64   `json:"quantity" validate:"gt=0"`
	ReferenceNumber *string `json:"reference_number,omitempty"`
	Reason          *string `json:"reason,omitempty"`
	CostingMethod   string  `json:"costing_method,omitempty"`
}

// ReserveRequest is the body of POST /reservations.
type ReserveRequest struct {
	ProductID       string  `json:"product_id" validate:"required"`
	WarehouseID     string  `json:"warehouse_id" validate:"required"`
	Quantity        int64   `json:"quantity" validate:"gt=0"`
	ReferenceNumber *string `json:"reference_number,omitempty"`
	Reason          *string `json:"reason,omitempty"`
}

// ConsumeRequest is the optional body of POST /reservations/{id}/consume.
type ConsumeRequest struct {
	CostingMethod string `json:"costing_method,omitempty"`
}

// ReceiveLineRequest is one line of a goods receipt.
type ReceiveLineRequest struct {
	LineID      string  `json:"line_id" validate:"required"`
	Quantity    int64   `json:"quantity" validate:"gt=0"`
	BatchNumber *string `json:"batch_number,omitempty"`
}

// ReceiveRequest is the body of POST /purchase-orders/{id}/receive.
type ReceiveRequest struct {
	Lines []ReceiveLineRequest `json:"lines" validate:"required,min=1,dive"`
}
