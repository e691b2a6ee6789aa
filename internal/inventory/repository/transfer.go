package repository

import (
	"context"

	"github.com/NandhanI20020/IMS-sub000/pkg/database"
	"github.com/jmoiron/sqlx"
)

func (r reads) GetTransfer(ctx context.Context, id string) (*StockTransfer, error) {
	var t StockTransfer
	query := `
		SELECT id, product_id, from_warehouse_id, to_warehouse_id, quantity, unit_cost, status,
			reference, reason, failure_reason, created_by, created_at
		FROM stock_transfers WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.q, &t, query, id); err != nil {
		return nil, database.MapError(err, "stock transfer", "get stock transfer")
	}
	return &t, nil
}

func (t *pgTx) InsertTransfer(ctx context.Context, st *StockTransfer) error {
	query := `
		INSERT INTO stock_transfers (
			id, product_id, from_warehouse_id, to_warehouse_id, quantity, unit_cost,
			status, reference, reason, failure_reason, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := t.tx.ExecContext(ctx, query,
		st.ID, st.ProductID, st.FromWarehouseID, st.ToWarehouseID, st.Quantity, st.UnitCost,
		st.Status, st.Reference, st.Reason, st.FailureReason, st.CreatedBy, st.CreatedAt,
	)
	return database.MapError(err, "stock transfer", "insert stock transfer")
}
