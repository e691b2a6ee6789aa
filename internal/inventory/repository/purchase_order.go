package repository

import (
	"context"

	"github.com/NandhanI20020/IMS-sub000/pkg/database"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/jmoiron/sqlx"
)

const purchaseOrderColumns = `id, number, warehouse_id, status, received_at, updated_by, created_at, updated_at`

const purchaseOrderLineColumns = `id, purchase_order_id, product_id, quantity_ordered, quantity_received, unit_cost`

// GetPurchaseOrder loads an order with its lines.
func (r reads) GetPurchaseOrder(ctx context.Context, id string) (*PurchaseOrder, error) {
	var po PurchaseOrder
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.q, &po, query, id); err != nil {
		return nil, database.MapError(err, "purchase order", "get purchase order")
	}
	if err := loadLines(ctx, r.q, &po); err != nil {
		return nil, err
	}
	return &po, nil
}

func loadLines(ctx context.Context, q sqlx.QueryerContext, po *PurchaseOrder) error {
	query := `SELECT ` + purchaseOrderLineColumns + ` FROM purchase_order_lines WHERE purchase_order_id = $1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, q, &po.Lines, query, po.ID); err != nil {
		return database.MapError(err, "purchase order line", "list purchase order lines")
	}
	return nil
}

func (t *pgTx) LockPurchaseOrder(ctx context.Context, id string) (*PurchaseOrder, error) {
	var po PurchaseOrder
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE id = $1 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &po, query, id); err != nil {
		return nil, database.MapError(err, "purchase order", "lock purchase order")
	}
	if err := loadLines(ctx, t.tx, &po); err != nil {
		return nil, err
	}
	return &po, nil
}

func (t *pgTx) UpdatePurchaseOrderLine(ctx context.Context, line *PurchaseOrderLine) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE purchase_order_lines SET quantity_received = $2 WHERE id = $1`,
		line.ID, line.QuantityReceived,
	)
	if err != nil {
		return database.MapError(err, "purchase order line", "update purchase order line")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.NotFound("purchase order line")
	}
	return nil
}

func (t *pgTx) UpdatePurchaseOrder(ctx context.Context, po *PurchaseOrder) error {
	query := `
		UPDATE purchase_orders
		SET status = $2, received_at = $3, updated_by = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := t.tx.QueryRowxContext(ctx, query, po.ID, po.Status, po.ReceivedAt, po.UpdatedBy).Scan(&po.UpdatedAt)
	return database.MapError(err, "purchase order", "update purchase order")
}
