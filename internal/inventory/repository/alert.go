package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/NandhanI20020/IMS-sub000/pkg/database"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const alertColumns = `id, product_id, warehouse_id, on_hand_at_trigger, available_at_trigger, reorder_level,
	suggested_quantity, alert_type, status, created_at, acknowledged_by, acknowledged_at, resolved_by, resolved_at`

func (r reads) GetAlert(ctx context.Context, id string) (*ReorderAlert, error) {
	var alert ReorderAlert
	query := `SELECT ` + alertColumns + ` FROM reorder_alerts WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.q, &alert, query, id); err != nil {
		return nil, database.MapError(err, "reorder alert", "get reorder alert")
	}
	return &alert, nil
}

// ListAlerts lists alerts newest first.
func (r reads) ListAlerts(ctx context.Context, filter AlertFilter) ([]ReorderAlert, error) {
	var w where
	if filter.WarehouseID != "" {
		w.add("warehouse_id = $%d", filter.WarehouseID)
	}
	if filter.ProductID != "" {
		w.add("product_id = $%d", filter.ProductID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		w.add("status = ANY($%d)", pq.Array(statuses))
	}
	if filter.AlertType != "" {
		w.add("alert_type = $%d", filter.AlertType)
	}

	query := `SELECT ` + alertColumns + ` FROM reorder_alerts` + w.String() + ` ORDER BY created_at DESC, id`
	args := w.args
	if filter.Limit > 0 {
		var suffix string
		suffix, args = w.page(filter.Limit, 0)
		query += suffix
	}

	var alerts []ReorderAlert
	if err := sqlx.SelectContext(ctx, r.q, &alerts, query, args...); err != nil {
		return nil, database.MapError(err, "reorder alert", "list reorder alerts")
	}
	return alerts, nil
}

func (t *pgTx) FindPendingAlert(ctx context.Context, productID, warehouseID string) (*ReorderAlert, error) {
	var alert ReorderAlert
	query := `SELECT ` + alertColumns + ` FROM reorder_alerts
		WHERE product_id = $1 AND warehouse_id = $2 AND status = 'pending'
		FOR UPDATE`
	if err := t.tx.GetContext(ctx, &alert, query, productID, warehouseID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, database.MapError(err, "reorder alert", "find pending reorder alert")
	}
	return &alert, nil
}

func (t *pgTx) InsertAlert(ctx context.Context, a *ReorderAlert) error {
	query := `
		INSERT INTO reorder_alerts (
			id, product_id, warehouse_id, on_hand_at_trigger, available_at_trigger,
			reorder_level, suggested_quantity, alert_type, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := t.tx.ExecContext(ctx, query,
		a.ID, a.ProductID, a.WarehouseID, a.OnHandAtTrigger, a.AvailableAtTrigger,
		a.ReorderLevel, a.SuggestedQuantity, a.AlertType, a.Status, a.CreatedAt,
	)
	return database.MapError(err, "reorder alert", "insert reorder alert")
}

func (t *pgTx) LockAlert(ctx context.Context, id string) (*ReorderAlert, error) {
	var alert ReorderAlert
	query := `SELECT ` + alertColumns + ` FROM reorder_alerts WHERE id = $1 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &alert, query, id); err != nil {
		return nil, database.MapError(err, "reorder alert", "lock reorder alert")
	}
	return &alert, nil
}

// UpdateAlert persists a status transition.
func (t *pgTx) UpdateAlert(ctx context.Context, a *ReorderAlert) error {
	query := `
		UPDATE reorder_alerts
		SET status = $2, acknowledged_by = $3, acknowledged_at = $4, resolved_by = $5, resolved_at = $6
		WHERE id = $1`

	result, err := t.tx.ExecContext(ctx, query, a.ID, a.Status, a.AcknowledgedBy, a.AcknowledgedAt, a.ResolvedBy, a.ResolvedAt)
	if err != nil {
		return database.MapError(err, "reorder alert", "update reorder alert")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.NotFound("reorder alert")
	}
	return nil
}
