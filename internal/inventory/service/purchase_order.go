package service

import (
	"context"
	"fmt"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
)

// ReceiveLine is the quantity received against one purchase order line.
type ReceiveLine struct {
	LineID   string
	Quantity int64
	Batch    *string
}

// ReceiveLineResult is the outcome of one received line.
type ReceiveLineResult struct {
	LineID    string       `json:"line_id"`
	ProductID string       `json:"product_id,omitempty"`
	Success   bool         `json:"success"`
	Update    *StockUpdate `json:"update,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorCode string       `json:"error_code,omitempty"`
}

// ReceiveResult is the order after receipt plus per-line outcomes.
type ReceiveResult struct {
	PurchaseOrder *repository.PurchaseOrder `json:"purchase_order"`
	Lines         []ReceiveLineResult       `json:"lines"`
}

// PurchaseOrderService posts goods receipts against purchase orders.
type PurchaseOrderService struct {
	stock  *StockService
	logger *logger.Logger
}

// NewPurchaseOrderService creates a new purchase order service
func NewPurchaseOrderService(stock *StockService, log *logger.Logger) *PurchaseOrderService {
	return &PurchaseOrderService{
		stock:  stock,
		logger: log.WithComponent("purchase_order"),
	}
}

// Receive posts a purchase_receive movement per line at the line's unit cost.
// Each line commits on its own together with its received quantity and the
// order status; a failed line does not affect the others.
func (s *PurchaseOrderService) Receive(ctx context.Context, poID string, lines []ReceiveLine) (*ReceiveResult, error) {
	if poID == "" {
		return nil, errors.Validation(map[string]string{"purchase_order_id": "required"})
	}
	if len(lines) == 0 {
		return nil, errors.Input("at least one line is required")
	}

	po, err := s.stock.store.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return nil, err
	}
	if !po.Status.Receivable() {
		return nil, errors.Conflict(fmt.Sprintf("purchase order is %s", po.Status)).
			WithDetails(map[string]string{"purchase_order_id": po.ID, "status": string(po.Status)})
	}

	results := make([]ReceiveLineResult, len(lines))
	for i, rl := range lines {
		results[i].LineID = rl.LineID
		if err := ctx.Err(); err != nil {
			results[i].Error = err.Error()
			continue
		}

		update, productID, err := s.receiveLine(ctx, po, rl)
		results[i].ProductID = productID
		if err != nil {
			s.logger.Warn().Err(err).
				Str("purchase_order_id", po.ID).
				Str("line_id", rl.LineID).
				Msg("purchase order line receipt failed")
			results[i].Error = err.Error()
			results[i].ErrorCode = errors.Code(err)
			continue
		}
		results[i].Success = true
		results[i].Update = update
	}

	current, err := s.stock.store.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return nil, err
	}
	return &ReceiveResult{PurchaseOrder: current, Lines: results}, nil
}

func (s *PurchaseOrderService) receiveLine(ctx context.Context, po *repository.PurchaseOrder, rl ReceiveLine) (*StockUpdate, string, error) {
	line := po.Line(rl.LineID)
	if line == nil {
		return nil, "", errors.NotFound("purchase order line")
	}
	if rl.Quantity <= 0 {
		return nil, line.ProductID, errors.Input("received quantity must be positive")
	}
	if rl.Quantity > line.Outstanding() {
		return nil, line.ProductID, errors.Input(fmt.Sprintf("received quantity %d exceeds outstanding %d", rl.Quantity, line.Outstanding()))
	}

	unitCost := line.UnitCost
	reference := po.Number
	reason := "purchase order receipt"

	update, err := s.stock.mutate(ctx, "inventory.receive_purchase_order", UpdateRequest{
		ProductID:    line.ProductID,
		WarehouseID:  po.WarehouseID,
		Delta:        rl.Quantity,
		MovementType: repository.MovementPurchaseReceive,
		UnitCost:     &unitCost,
		Reference:    &reference,
		Reason:       &reason,
		Batch:        rl.Batch,
	}, receivePurchaseOrderLine(po.ID, rl.LineID, rl.Quantity))
	return update, line.ProductID, err
}

// receivePurchaseOrderLine books qty against the line and moves the order to
// partially_received or received, re-checking both under the order lock.
func receivePurchaseOrderLine(poID, lineID string, qty int64) hook {
	return func(ctx context.Context, tx repository.Tx, m *mutation) error {
		po, err := tx.LockPurchaseOrder(ctx, poID)
		if err != nil {
			return err
		}
		if !po.Status.Receivable() {
			return errors.Conflict(fmt.Sprintf("purchase order is %s", po.Status))
		}
		line := po.Line(lineID)
		if line == nil {
			return errors.NotFound("purchase order line")
		}
		if qty > line.Outstanding() {
			return errors.Input(fmt.Sprintf("received quantity %d exceeds outstanding %d", qty, line.Outstanding()))
		}

		line.QuantityReceived += qty
		if err := tx.UpdatePurchaseOrderLine(ctx, line); err != nil {
			return err
		}

		po.Status = repository.POPartiallyReceived
		if po.FullyReceived() {
			at := m.now
			po.Status = repository.POReceived
			po.ReceivedAt = &at
		}
		po.UpdatedBy = m.auditID
		return tx.UpdatePurchaseOrder(ctx, po)
	}
}
