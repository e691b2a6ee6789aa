package repository

import (
	"context"

	"github.com/NandhanI20020/IMS-sub000/pkg/database"
	"github.com/jmoiron/sqlx"
)

const cellColumns = `product_id, warehouse_id, on_hand, reserved, available, weighted_avg_cost,
	reorder_level, reorder_quantity, last_movement_at, updated_by, created_at, updated_at`

// GetCell returns the committed state of a cell.
func (r reads) GetCell(ctx context.Context, productID, warehouseID string) (*InventoryCell, error) {
	var cell InventoryCell
	query := `SELECT ` + cellColumns + ` FROM inventory_cells WHERE product_id = $1 AND warehouse_id = $2`
	if err := sqlx.GetContext(ctx, r.q, &cell, query, productID, warehouseID); err != nil {
		return nil, database.MapError(err, "stock cell", "get stock cell")
	}
	return &cell, nil
}

// ListCellViews lists cells joined with product and warehouse data.
func (r reads) ListCellViews(ctx context.Context, filter CellFilter) ([]CellView, error) {
	var w where
	if filter.WarehouseID != "" {
		w.add("c.warehouse_id = $%d", filter.WarehouseID)
	}
	if filter.ProductID != "" {
		w.add("c.product_id = $%d", filter.ProductID)
	}
	if filter.Search != "" {
		w.add("(p.sku ILIKE $%[1]d OR p.name ILIKE $%[1]d)", "%"+filter.Search+"%")
	}

	query := `
		SELECT c.product_id, c.warehouse_id, c.on_hand, c.reserved, c.available, c.weighted_avg_cost,
			c.reorder_level, c.reorder_quantity, c.last_movement_at, c.updated_by, c.created_at, c.updated_at,
			p.sku, p.name AS product_name, p.cost_price, p.selling_price,
			p.reorder_level AS product_reorder_level, p.reorder_quantity AS product_reorder_quantity,
			w.name AS warehouse_name
		FROM inventory_cells c
		JOIN products p ON p.id = c.product_id
		JOIN warehouses w ON w.id = c.warehouse_id` + w.String() + `
		ORDER BY p.name, w.name, c.product_id, c.warehouse_id`

	args := w.args
	if filter.Limit > 0 {
		var suffix string
		suffix, args = w.page(filter.Limit, filter.Offset)
		query += suffix
	}

	var views []CellView
	if err := sqlx.SelectContext(ctx, r.q, &views, query, args...); err != nil {
		return nil, database.MapError(err, "stock cell", "list stock cells")
	}
	return views, nil
}

// LockCell upserts a zero cell when absent, then locks it FOR UPDATE.
func (t *pgTx) LockCell(ctx context.Context, productID, warehouseID string) (*InventoryCell, error) {
	insert := `
		INSERT INTO inventory_cells (product_id, warehouse_id)
		VALUES ($1, $2)
		ON CONFLICT (product_id, warehouse_id) DO NOTHING`
	if _, err := t.tx.ExecContext(ctx, insert, productID, warehouseID); err != nil {
		return nil, database.MapError(err, "stock cell", "create stock cell")
	}

	var cell InventoryCell
	query := `SELECT ` + cellColumns + ` FROM inventory_cells WHERE product_id = $1 AND warehouse_id = $2 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &cell, query, productID, warehouseID); err != nil {
		return nil, database.MapError(err, "stock cell", "lock stock cell")
	}
	return &cell, nil
}

// SaveCell writes the mutable quantity and audit columns of a locked cell.
func (t *pgTx) SaveCell(ctx context.Context, cell *InventoryCell) error {
	query := `
		UPDATE inventory_cells
		SET on_hand = $3, reserved = $4, available = $5, weighted_avg_cost = $6,
			last_movement_at = $7, updated_by = $8, updated_at = NOW()
		WHERE product_id = $1 AND warehouse_id = $2
		RETURNING updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		cell.ProductID, cell.WarehouseID, cell.OnHand, cell.Reserved, cell.Available,
		cell.WeightedAvgCost, cell.LastMovementAt, cell.UpdatedBy,
	).Scan(&cell.UpdatedAt)
	return database.MapError(err, "stock cell", "save stock cell")
}
