package service_test

import (
	"context"
	"testing"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) order(status repository.PurchaseOrderStatus, ordered int64, cost string) repository.PurchaseOrder {
	po := repository.PurchaseOrder{
		ID:          "po-1",
		Number:      "PO-2026-0001",
		WarehouseID: e.a(),
		Status:      status,
		Lines: []repository.PurchaseOrderLine{{
			ID:              "line-1",
			ProductID:       e.productID(),
			QuantityOrdered: ordered,
			UnitCost:        dec(cost),
		}},
	}
	e.mem.AddPurchaseOrder(po)
	return po
}

func TestPurchaseOrder_PartialThenFullReceipt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	po := e.order(repository.POApproved, 10, "3.50")

	res, err := e.orders.Receive(ctx, po.ID, []service.ReceiveLine{{LineID: "line-1", Quantity: 4}})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	require.True(t, res.Lines[0].Success, res.Lines[0].Error)
	assert.Equal(t, repository.POPartiallyReceived, res.PurchaseOrder.Status)
	assert.Equal(t, int64(4), res.PurchaseOrder.Lines[0].QuantityReceived)
	assert.Nil(t, res.PurchaseOrder.ReceivedAt)

	mv := res.Lines[0].Update.Movement
	assert.Equal(t, repository.MovementPurchaseReceive, mv.MovementType)
	assertDec(t, "3.50", mv.UnitCost)
	require.NotNil(t, mv.Reference)
	assert.Equal(t, "PO-2026-0001", *mv.Reference)

	batch := "LOT-9"
	res, err = e.orders.Receive(ctx, po.ID, []service.ReceiveLine{{LineID: "line-1", Quantity: 6, Batch: &batch}})
	require.NoError(t, err)
	require.True(t, res.Lines[0].Success, res.Lines[0].Error)
	assert.Equal(t, repository.POReceived, res.PurchaseOrder.Status)
	assert.NotNil(t, res.PurchaseOrder.ReceivedAt)
	require.NotNil(t, res.Lines[0].Update.Movement.Batch)
	assert.Equal(t, "LOT-9", *res.Lines[0].Update.Movement.Batch)

	cell := e.cell(t, e.a())
	assert.Equal(t, int64(10), cell.OnHand)
	assertDec(t, "3.50", cell.WeightedAvgCost)

	_, err = e.orders.Receive(ctx, po.ID, []service.ReceiveLine{{LineID: "line-1", Quantity: 1}})
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestPurchaseOrder_LineFailuresAreIsolated(t *testing.T) {
	e := newEnv(t)
	po := e.order(repository.POApproved, 5, "2.00")

	res, err := e.orders.Receive(context.Background(), po.ID, []service.ReceiveLine{
		{LineID: "line-1", Quantity: 9},
		{LineID: "line-404", Quantity: 1},
		{LineID: "line-1", Quantity: 0},
		{LineID: "line-1", Quantity: 5},
	})
	require.NoError(t, err)
	require.Len(t, res.Lines, 4)

	assert.False(t, res.Lines[0].Success)
	assert.Equal(t, "INPUT_ERROR", res.Lines[0].ErrorCode)
	assert.False(t, res.Lines[1].Success)
	assert.Equal(t, "NOT_FOUND", res.Lines[1].ErrorCode)
	assert.False(t, res.Lines[2].Success)
	assert.True(t, res.Lines[3].Success)

	assert.Equal(t, repository.POReceived, res.PurchaseOrder.Status)
	assert.Equal(t, int64(5), e.cell(t, e.a()).OnHand)
}

func TestPurchaseOrder_RejectsUnreceivableOrders(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	po := e.order(repository.PODraft, 5, "2.00")

	_, err := e.orders.Receive(ctx, po.ID, []service.ReceiveLine{{LineID: "line-1", Quantity: 1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Zero(t, e.onHand(t, e.a()))

	_, err = e.orders.Receive(ctx, "missing", []service.ReceiveLine{{LineID: "line-1", Quantity: 1}})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = e.orders.Receive(ctx, po.ID, nil)
	assert.True(t, errors.Is(err, errors.ErrInput))

	_, err = e.orders.Receive(ctx, "", []service.ReceiveLine{{LineID: "line-1", Quantity: 1}})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
