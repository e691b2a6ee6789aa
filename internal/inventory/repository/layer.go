package repository

import (
	"context"

	"github.com/NandhanI20020/IMS-sub000/pkg/database"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/jmoiron/sqlx"
)

const layerColumns = `id, product_id, warehouse_id, unit_cost, original_quantity, remaining_quantity, created_at`

// ListLayers returns a cell's open layers, oldest first.
func (r reads) ListLayers(ctx context.Context, productID, warehouseID string) ([]CostLayer, error) {
	var layers []CostLayer
	query := `SELECT ` + layerColumns + ` FROM cost_layers
		WHERE product_id = $1 AND warehouse_id = $2
		ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, r.q, &layers, query, productID, warehouseID); err != nil {
		return nil, database.MapError(err, "cost layer", "list cost layers")
	}
	return layers, nil
}

// ListLayersByWarehouse returns the open layers of every cell, optionally
// restricted to one warehouse.
func (r reads) ListLayersByWarehouse(ctx context.Context, warehouseID string) ([]CostLayer, error) {
	var w where
	if warehouseID != "" {
		w.add("warehouse_id = $%d", warehouseID)
	}
	query := `SELECT ` + layerColumns + ` FROM cost_layers` + w.String() +
		` ORDER BY product_id, warehouse_id, created_at, id`

	var layers []CostLayer
	if err := sqlx.SelectContext(ctx, r.q, &layers, query, w.args...); err != nil {
		return nil, database.MapError(err, "cost layer", "list cost layers")
	}
	return layers, nil
}

// InsertLayer appends a layer and fills its id and created_at.
func (t *pgTx) InsertLayer(ctx context.Context, layer *CostLayer) error {
	query := `
		INSERT INTO cost_layers (product_id, warehouse_id, unit_cost, original_quantity, remaining_quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := t.tx.QueryRowxContext(ctx, query,
		layer.ProductID, layer.WarehouseID, layer.UnitCost,
		layer.OriginalQuantity, layer.RemainingQuantity, layer.CreatedAt,
	).Scan(&layer.ID)
	return database.MapError(err, "cost layer", "insert cost layer")
}

func (t *pgTx) UpdateLayerRemaining(ctx context.Context, id int64, remaining int64) error {
	result, err := t.tx.ExecContext(ctx, `UPDATE cost_layers SET remaining_quantity = $2 WHERE id = $1`, id, remaining)
	if err != nil {
		return database.MapError(err, "cost layer", "update cost layer")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.NotFound("cost layer")
	}
	return nil
}

func (t *pgTx) DeleteLayer(ctx context.Context, id int64) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM cost_layers WHERE id = $1`, id)
	if err != nil {
		return database.MapError(err, "cost layer", "delete cost layer")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.NotFound("cost layer")
	}
	return nil
}
