package repository

import (
	"context"

	"github.com/NandhanI20020/IMS-sub000/pkg/database"
	"github.com/jmoiron/sqlx"
)

func (r reads) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	query := `
		SELECT id, sku, name, cost_price, selling_price, reorder_level, reorder_quantity, is_active
		FROM products WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.q, &p, query, id); err != nil {
		return nil, database.MapError(err, "product", "get product")
	}
	return &p, nil
}

func (r reads) GetWarehouse(ctx context.Context, id string) (*Warehouse, error) {
	var w Warehouse
	query := `SELECT id, code, name, is_active FROM warehouses WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.q, &w, query, id); err != nil {
		return nil, database.MapError(err, "warehouse", "get warehouse")
	}
	return &w, nil
}
