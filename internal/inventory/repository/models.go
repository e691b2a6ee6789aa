package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CostingMethod selects how outbound quantities are priced.
type CostingMethod string

const (
	CostingFIFO    CostingMethod = "FIFO"
	CostingLIFO    CostingMethod = "LIFO"
	CostingAverage CostingMethod = "AVERAGE"
)

// ParseCostingMethod accepts FIFO, LIFO or AVERAGE in any case.
func ParseCostingMethod(s string) (CostingMethod, error) {
	switch m := CostingMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case CostingFIFO, CostingLIFO, CostingAverage:
		return m, nil
	default:
		return "", fmt.Errorf("unknown costing method %q", s)
	}
}

// MovementType classifies a ledger entry.
type MovementType string

const (
	MovementPurchaseReceive    MovementType = "purchase_receive"
	MovementSale               MovementType = "sale"
	MovementTransferIn         MovementType = "transfer_in"
	MovementTransferOut        MovementType = "transfer_out"
	MovementAdjustmentIncrease MovementType = "adjustment_increase"
	MovementAdjustmentDecrease MovementType = "adjustment_decrease"
	MovementCountIncrease      MovementType = "count_increase"
	MovementCountDecrease      MovementType = "count_decrease"
	MovementReturn             MovementType = "return"
	MovementDamage             MovementType = "damage"
	MovementExpired            MovementType = "expired"
)

var movementSigns = map[MovementType]int64{
	MovementPurchaseReceive:    1,
	MovementTransferIn:         1,
	MovementAdjustmentIncrease: 1,
	MovementCountIncrease:      1,
	MovementReturn:             1,
	MovementSale:               -1,
	MovementTransferOut:        -1,
	MovementAdjustmentDecrease: -1,
	MovementCountDecrease:      -1,
	MovementDamage:             -1,
	MovementExpired:            -1,
}

// Sign is +1 for inbound types, -1 for outbound types and 0 for unknown ones.
func (t MovementType) Sign() int64 {
	return movementSigns[t]
}

// Valid reports whether t is one of the enumerated movement types.
func (t MovementType) Valid() bool {
	return t.Sign() != 0
}

// CellKey identifies one (product, warehouse) stock cell.
type CellKey struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
}

func (k CellKey) String() string {
	return k.ProductID + ":" + k.WarehouseID
}

// Product is the catalogue view the core needs. Catalogue CRUD lives elsewhere.
type Product struct {
	ID              string          `db:"id" json:"id"`
	SKU             string          `db:"sku" json:"sku"`
	Name            string          `db:"name" json:"name"`
	CostPrice       decimal.Decimal `db:"cost_price" json:"cost_price"`
	SellingPrice    decimal.Decimal `db:"selling_price" json:"selling_price"`
	ReorderLevel    int64           `db:"reorder_level" json:"reorder_level"`
	ReorderQuantity int64           `db:"reorder_quantity" json:"reorder_quantity"`
	IsActive        bool            `db:"is_active" json:"is_active"`
}

// Warehouse is the read-only warehouse record.
type Warehouse struct {
	ID       string `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// InventoryCell is the stock position of one product in one warehouse.
type InventoryCell struct {
	ProductID       string          `db:"product_id" json:"product_id"`
	WarehouseID     string          `db:"warehouse_id" json:"warehouse_id"`
	OnHand          int64           `db:"on_hand" json:"on_hand"`
	Reserved        int64           `db:"reserved" json:"reserved"`
	Available       int64           `db:"available" json:"available"`
	WeightedAvgCost decimal.Decimal `db:"weighted_avg_cost" json:"weighted_avg_cost"`
	ReorderLevel    *int64          `db:"reorder_level" json:"reorder_level,omitempty"`
	ReorderQuantity *int64          `db:"reorder_quantity" json:"reorder_quantity,omitempty"`
	LastMovementAt  *time.Time      `db:"last_movement_at" json:"last_movement_at,omitempty"`
	UpdatedBy       *string         `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Key returns the cell's (product, warehouse) key.
func (c *InventoryCell) Key() CellKey {
	return CellKey{ProductID: c.ProductID, WarehouseID: c.WarehouseID}
}

// RecomputeAvailable sets Available = max(0, OnHand - Reserved).
func (c *InventoryCell) RecomputeAvailable() {
	c.Available = c.OnHand - c.Reserved
	if c.Available < 0 {
		c.Available = 0
	}
}

// EffectiveReorder resolves the reorder level and quantity for a cell. Cell
// overrides win; the product values are the fallback.
func EffectiveReorder(cell *InventoryCell, product *Product) (level, quantity int64) {
	level, quantity = product.ReorderLevel, product.ReorderQuantity
	if cell.ReorderLevel != nil {
		level = *cell.ReorderLevel
	}
	if cell.ReorderQuantity != nil {
		quantity = *cell.ReorderQuantity
	}
	return level, quantity
}

// CostLayer is one inbound receipt still (partly) on hand.
type CostLayer struct {
	ID                int64           `db:"id" json:"id"`
	ProductID         string          `db:"product_id" json:"product_id"`
	WarehouseID       string          `db:"warehouse_id" json:"warehouse_id"`
	UnitCost          decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	OriginalQuantity  int64           `db:"original_quantity" json:"original_quantity"`
	RemainingQuantity int64           `db:"remaining_quantity" json:"remaining_quantity"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// StockMovement is one immutable ledger entry.
type StockMovement struct {
	ID           string          `db:"id" json:"id"`
	Seq          int64           `db:"seq" json:"seq"`
	ProductID    string          `db:"product_id" json:"product_id"`
	WarehouseID  string          `db:"warehouse_id" json:"warehouse_id"`
	MovementType MovementType    `db:"movement_type" json:"movement_type"`
	Quantity     int64           `db:"quantity" json:"quantity"`
	UnitCost     decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	TotalCost    decimal.Decimal `db:"total_cost" json:"total_cost"`
	PrevOnHand   int64           `db:"prev_on_hand" json:"prev_on_hand"`
	NewOnHand    int64           `db:"new_on_hand" json:"new_on_hand"`
	Reference    *string         `db:"reference" json:"reference,omitempty"`
	Reason       *string         `db:"reason" json:"reason,omitempty"`
	Batch        *string         `db:"batch" json:"batch,omitempty"`
	CreatedBy    *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// ReservationStatus values. released and consumed are terminal.
type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "active"
	ReservationReleased ReservationStatus = "released"
	ReservationConsumed ReservationStatus = "consumed"
)

// Reservation is a soft hold against a cell's available stock.
type Reservation struct {
	ID          string            `db:"id" json:"id"`
	ProductID   string            `db:"product_id" json:"product_id"`
	WarehouseID string            `db:"warehouse_id" json:"warehouse_id"`
	Quantity    int64             `db:"quantity" json:"quantity"`
	Reference   *string           `db:"reference" json:"reference,omitempty"`
	Reason      *string           `db:"reason" json:"reason,omitempty"`
	Status      ReservationStatus `db:"status" json:"status"`
	CreatedBy   *string           `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	ReleasedAt  *time.Time        `db:"released_at" json:"released_at,omitempty"`
	ConsumedAt  *time.Time        `db:"consumed_at" json:"consumed_at,omitempty"`
	ClosedBy    *string           `db:"closed_by" json:"closed_by,omitempty"`
}

// Key returns the reserved cell's key.
func (r *Reservation) Key() CellKey {
	return CellKey{ProductID: r.ProductID, WarehouseID: r.WarehouseID}
}

// AlertType values.
type AlertType string

const (
	AlertLowStock   AlertType = "low_stock"
	AlertOutOfStock AlertType = "out_of_stock"
)

// AlertStatus values.
type AlertStatus string

const (
	AlertPending      AlertStatus = "pending"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// ReorderAlert records a low or out-of-stock condition on a cell.
type ReorderAlert struct {
	ID                 string      `db:"id" json:"id"`
	ProductID          string      `db:"product_id" json:"product_id"`
	WarehouseID        string      `db:"warehouse_id" json:"warehouse_id"`
	OnHandAtTrigger    int64       `db:"on_hand_at_trigger" json:"on_hand_at_trigger"`
	AvailableAtTrigger int64       `db:"available_at_trigger" json:"available_at_trigger"`
	ReorderLevel       int64       `db:"reorder_level" json:"reorder_level"`
	SuggestedQuantity  int64       `db:"suggested_quantity" json:"suggested_quantity"`
	AlertType          AlertType   `db:"alert_type" json:"alert_type"`
	Status             AlertStatus `db:"status" json:"status"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	AcknowledgedBy     *string     `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt     *time.Time  `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedBy         *string     `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt         *time.Time  `db:"resolved_at" json:"resolved_at,omitempty"`
}

// TransferStatus values.
type TransferStatus string

const (
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

// StockTransfer records a completed or unrecoverable inter-warehouse move.
type StockTransfer struct {
	ID              string          `db:"id" json:"id"`
	ProductID       string          `db:"product_id" json:"product_id"`
	FromWarehouseID string          `db:"from_warehouse_id" json:"from_warehouse_id"`
	ToWarehouseID   string          `db:"to_warehouse_id" json:"to_warehouse_id"`
	Quantity        int64           `db:"quantity" json:"quantity"`
	UnitCost        decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	Status          TransferStatus  `db:"status" json:"status"`
	Reference       *string         `db:"reference" json:"reference,omitempty"`
	Reason          *string         `db:"reason" json:"reason,omitempty"`
	FailureReason   *string         `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedBy       *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// PurchaseOrderStatus values. Only approved and partially_received orders accept receipts.
type PurchaseOrderStatus string

const (
	PODraft             PurchaseOrderStatus = "draft"
	POApproved          PurchaseOrderStatus = "approved"
	POPartiallyReceived PurchaseOrderStatus = "partially_received"
	POReceived          PurchaseOrderStatus = "received"
	POCancelled         PurchaseOrderStatus = "cancelled"
)

// Receivable reports whether stock may still be posted against the order.
func (s PurchaseOrderStatus) Receivable() bool {
	return s == POApproved || s == POPartiallyReceived
}

// PurchaseOrder is the receiving view of a purchase order.
type PurchaseOrder struct {
	ID          string              `db:"id" json:"id"`
	Number      string              `db:"number" json:"number"`
	WarehouseID string              `db:"warehouse_id" json:"warehouse_id"`
	Status      PurchaseOrderStatus `db:"status" json:"status"`
	ReceivedAt  *time.Time          `db:"received_at" json:"received_at,omitempty"`
	UpdatedBy   *string             `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updated_at"`

	Lines []PurchaseOrderLine `db:"-" json:"lines"`
}

// Line returns the line with the given id.
func (po *PurchaseOrder) Line(id string) *PurchaseOrderLine {
	for i := range po.Lines {
		if po.Lines[i].ID == id {
			return &po.Lines[i]
		}
	}
	return nil
}

// FullyReceived reports whether every line has been received in full.
func (po *PurchaseOrder) FullyReceived() bool {
	for _, l := range po.Lines {
		if l.QuantityReceived < l.QuantityOrdered {
			return false
		}
	}
	return true
}

// PurchaseOrderLine is one ordered product.
type PurchaseOrderLine struct {
	ID               string          `db:"id" json:"id"`
	PurchaseOrderID  string          `db:"purchase_order_id" json:"purchase_order_id"`
	ProductID        string          `db:"product_id" json:"product_id"`
	QuantityOrdered  int64           `db:"quantity_ordered" json:"quantity_ordered"`
	QuantityReceived int64           `db:"quantity_received" json:"quantity_received"`
	UnitCost         decimal.Decimal `db:"unit_cost" json:"unit_cost"`
}

// Outstanding is the quantity still to be received.
func (l *PurchaseOrderLine) Outstanding() int64 {
	return l.QuantityOrdered - l.QuantityReceived
}

// CachedUser is a user record synced from user events. Managers are looked up from it.
type CachedUser struct {
	UserID      string  `db:"user_id" json:"user_id"`
	Name        string  `db:"name" json:"name"`
	Email       string  `db:"email" json:"email"`
	RoleName    string  `db:"role_name" json:"role_name"`
	WarehouseID *string `db:"warehouse_id" json:"warehouse_id,omitempty"`
	IsActive    bool    `db:"is_active" json:"is_active"`
}

// CellView joins a cell with its product and warehouse for read models.
type CellView struct {
	InventoryCell
	SKU                    string          `db:"sku" json:"sku"`
	ProductName            string          `db:"product_name" json:"product_name"`
	CostPrice              decimal.Decimal `db:"cost_price" json:"cost_price"`
	SellingPrice           decimal.Decimal `db:"selling_price" json:"selling_price"`
	ProductReorderLevel    int64           `db:"product_reorder_level" json:"-"`
	ProductReorderQuantity int64           `db:"product_reorder_quantity" json:"-"`
	WarehouseName          string          `db:"warehouse_name" json:"warehouse_name"`
}

// Product returns the product fields carried by the view.
func (v *CellView) Product() *Product {
	return &Product{
		ID:              v.ProductID,
		SKU:             v.SKU,
		Name:            v.ProductName,
		CostPrice:       v.CostPrice,
		SellingPrice:    v.SellingPrice,
		ReorderLevel:    v.ProductReorderLevel,
		ReorderQuantity: v.ProductReorderQuantity,
		IsActive:        true,
	}
}
