package repository

import (
	"context"

	"github.com/NandhanI20020/IMS-sub000/pkg/database"
	"github.com/jmoiron/sqlx"
)

const movementColumns = `id, seq, product_id, warehouse_id, movement_type, quantity, unit_cost, total_cost,
	prev_on_hand, new_on_hand, reference, reason, batch, created_by, created_at`

// ListMovements returns one page of the ledger, newest first, and the total match count.
func (r reads) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, int64, error) {
	var w where
	if filter.ProductID != "" {
		w.add("product_id = $%d", filter.ProductID)
	}
	if filter.WarehouseID != "" {
		w.add("warehouse_id = $%d", filter.WarehouseID)
	}
	if filter.MovementType != "" {
		w.add("movement_type = $%d", filter.MovementType)
	}
	if filter.From != nil {
		w.add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		w.add("created_at < $%d", *filter.To)
	}

	var total int64
	if err := sqlx.GetContext(ctx, r.q, &total, `SELECT COUNT(*) FROM stock_movements`+w.String(), w.args...); err != nil {
		return nil, 0, database.MapError(err, "stock movement", "count stock movements")
	}

	suffix, args := w.page(filter.Limit, filter.Offset())
	query := `SELECT ` + movementColumns + ` FROM stock_movements` + w.String() + ` ORDER BY seq DESC` + suffix

	var movements []StockMovement
	if err := sqlx.SelectContext(ctx, r.q, &movements, query, args...); err != nil {
		return nil, 0, database.MapError(err, "stock movement", "list stock movements")
	}
	return movements, total, nil
}

// InsertMovement appends a ledger entry and fills its commit sequence.
func (t *pgTx) InsertMovement(ctx context.Context, m *StockMovement) error {
	query := `
		INSERT INTO stock_movements (
			id, product_id, warehouse_id, movement_type, quantity, unit_cost, total_cost,
			prev_on_hand, new_on_hand, reference, reason, batch, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING seq`

	err := t.tx.QueryRowxContext(ctx, query,
		m.ID, m.ProductID, m.WarehouseID, m.MovementType, m.Quantity, m.UnitCost, m.TotalCost,
		m.PrevOnHand, m.NewOnHand, m.Reference, m.Reason, m.Batch, m.CreatedBy, m.CreatedAt,
	).Scan(&m.Seq)
	return database.MapError(err, "stock movement", "insert stock movement")
}
