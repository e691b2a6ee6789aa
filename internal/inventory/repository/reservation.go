package repository

import (
	"context"

	"github.com/NandhanI20020/IMS-sub000/pkg/database"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/jmoiron/sqlx"
)

const reservationColumns = `id, product_id, warehouse_id, quantity, reference, reason, status,
	created_by, created_at, released_at, consumed_at, closed_by`

func (r reads) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	var res Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.q, &res, query, id); err != nil {
		return nil, database.MapError(err, "reservation", "get reservation")
	}
	return &res, nil
}

func (t *pgTx) InsertReservation(ctx context.Context, res *Reservation) error {
	query := `
		INSERT INTO reservations (id, product_id, warehouse_id, quantity, reference, reason, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := t.tx.ExecContext(ctx, query,
		res.ID, res.ProductID, res.WarehouseID, res.Quantity, res.Reference,
		res.Reason, res.Status, res.CreatedBy, res.CreatedAt,
	)
	return database.MapError(err, "reservation", "insert reservation")
}

func (t *pgTx) LockReservation(ctx context.Context, id string) (*Reservation, error) {
	var res Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &res, query, id); err != nil {
		return nil, database.MapError(err, "reservation", "lock reservation")
	}
	return &res, nil
}

// UpdateReservation persists a status transition.
func (t *pgTx) UpdateReservation(ctx context.Context, res *Reservation) error {
	query := `
		UPDATE reservations
		SET status = $2, released_at = $3, consumed_at = $4, closed_by = $5
		WHERE id = $1`

	result, err := t.tx.ExecContext(ctx, query, res.ID, res.Status, res.ReleasedAt, res.ConsumedAt, res.ClosedBy)
	if err != nil {
		return database.MapError(err, "reservation", "update reservation")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.NotFound("reservation")
	}
	return nil
}
