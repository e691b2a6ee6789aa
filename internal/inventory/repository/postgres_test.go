package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/testutil"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cellRowColumns = []string{
	"product_id", "warehouse_id", "on_hand", "reserved", "available", "weighted_avg_cost",
	"reorder_level", "reorder_quantity", "last_movement_at", "updated_by", "created_at", "updated_at",
}

func TestPostgresStore_LockCellAndInsertMovement(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()
	store := repository.NewPostgresStore(s.DB)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	mock := s.MockDB.Mock
	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT INTO inventory_cells .* ON CONFLICT \(product_id, warehouse_id\) DO NOTHING`).
		WithArgs("p1", "w1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)SELECT .* FROM inventory_cells WHERE product_id = \$1 AND warehouse_id = \$2 FOR UPDATE`).
		WithArgs("p1", "w1").
		WillReturnRows(testutil.MockRows(cellRowColumns...).
			AddRow("p1", "w1", 5, 2, 3, "1.5000", nil, nil, nil, nil, now, now))
	mock.ExpectQuery(`(?s)INSERT INTO stock_movements .* RETURNING seq`).
		WithArgs(
			testutil.AnyUUID{}, "p1", "w1", string(repository.MovementSale), int64(2),
			sqlmock.AnyArg(), sqlmock.AnyArg(), int64(5), int64(3),
			nil, nil, nil, nil, testutil.AnyTime{},
		).
		WillReturnRows(testutil.MockRows("seq").AddRow(41))
	mock.ExpectCommit()

	var cell *repository.InventoryCell
	movement := &repository.StockMovement{
		ID:           uuid.NewString(),
		ProductID:    "p1",
		WarehouseID:  "w1",
		MovementType: repository.MovementSale,
		Quantity:     2,
		UnitCost:     decimal.RequireFromString("1.5"),
		TotalCost:    decimal.RequireFromString("3"),
		PrevOnHand:   5,
		NewOnHand:    3,
		CreatedAt:    now,
	}

	err := store.UnitOfWork(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		if cell, err = tx.LockCell(ctx, "p1", "w1"); err != nil {
			return err
		}
		return tx.InsertMovement(ctx, movement)
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), cell.Available)
	assert.True(t, decimal.RequireFromString("1.5").Equal(cell.WeightedAvgCost))
	assert.Nil(t, cell.ReorderLevel)
	assert.Equal(t, int64(41), movement.Seq)
}

func TestPostgresStore_FailedWriteRollsBack(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()
	store := repository.NewPostgresStore(s.DB)

	mock := s.MockDB.Mock
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO stock_movements`).
		WillReturnError(&pq.Error{Code: "23514", Constraint: "stock_movements_continuity"})
	mock.ExpectRollback()

	err := store.UnitOfWork(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.InsertMovement(ctx, &repository.StockMovement{ID: "m1"})
	})
	require.Error(t, err)
	assert.Equal(t, "INVARIANT_VIOLATION", errors.Code(err))
}

func TestPostgresStore_GetCellNotFound(t *testing.T) {
	s := testutil.NewUnitTestSuite(t)
	defer s.Cleanup()
	store := repository.NewPostgresStore(s.DB)

	s.MockDB.Mock.ExpectQuery(`SELECT .* FROM inventory_cells WHERE product_id = \$1 AND warehouse_id = \$2`).
		WithArgs("p1", "w9").
		WillReturnRows(testutil.MockRows(cellRowColumns...))

	_, err := store.GetCell(context.Background(), "p1", "w9")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
