package service_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/ledger"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/NandhanI20020/IMS-sub000/pkg/actor"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/NandhanI20020/IMS-sub000/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateStock_ReceiveThenSellAverage(t *testing.T) {
	e := newEnv(t)

	first := e.receive(t, e.a(), 10, "5.00")
	assert.Equal(t, int64(10), first.Cell.OnHand)
	assertDec(t, "5.00", first.Cell.WeightedAvgCost)

	second := e.receive(t, e.a(), 10, "7.00")
	assert.Equal(t, int64(20), second.Cell.OnHand)
	assertDec(t, "6.00", second.Cell.WeightedAvgCost)

	sale := e.sell(t, e.a(), 5, repository.CostingAverage)
	assert.Equal(t, int64(15), sale.Cell.OnHand)
	require.NotNil(t, sale.Movement)
	assertDec(t, "6.00", sale.Movement.UnitCost)
	assertDec(t, "30.00", sale.Movement.TotalCost)
	assert.Equal(t, int64(20), sale.Movement.PrevOnHand)
	assert.Equal(t, int64(15), sale.Movement.NewOnHand)

	assert.Equal(t, int64(15), remaining(e.layers(t, e.a())))
}

func TestUpdateStock_FIFODraw(t *testing.T) {
	e := newEnv(t)
	e.receive(t, e.a(), 10, "5.00")
	e.receive(t, e.a(), 10, "7.00")

	sale := e.sell(t, e.a(), 5, repository.CostingFIFO)
	assertDec(t, "5.00", sale.Movement.UnitCost)

	layers := e.layers(t, e.a())
	require.Len(t, layers, 2)
	assert.Equal(t, int64(5), layers[0].RemainingQuantity)
	assert.Equal(t, int64(10), layers[1].RemainingQuantity)

	second := e.sell(t, e.a(), 7, repository.CostingFIFO)
	assertDec(t, "39.00", second.Movement.TotalCost)
	assertDec(t, "5.5714", second.Movement.UnitCost)

	layers = e.layers(t, e.a())
	require.Len(t, layers, 1)
	assert.Equal(t, int64(8), layers[0].RemainingQuantity)
}

func TestUpdateStock_OutboundToEmptyFIFO(t *testing.T) {
	e := newEnv(t)
	e.receive(t, e.a(), 10, "5.00")
	e.receive(t, e.a(), 5, "6.00")

	sale := e.sell(t, e.a(), 15, repository.CostingFIFO)
	assert.Zero(t, sale.Cell.OnHand)
	assert.Empty(t, e.layers(t, e.a()))
	assertDec(t, "80.00", sale.Movement.TotalCost)
}

func TestUpdateStock_PreventNegative(t *testing.T) {
	e := newEnv(t)
	e.receive(t, e.a(), 3, "5.00")

	_, err := e.stock.UpdateStock(context.Background(), service.UpdateRequest{
		ProductID:       e.productID(),
		WarehouseID:     e.a(),
		Delta:           -4,
		MovementType:    repository.MovementSale,
		PreventNegative: true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	assert.Equal(t, int64(3), e.cell(t, e.a()).OnHand)
	assert.Len(t, e.movements(t, e.a()), 1)
}

func TestUpdateStock_NegativeAllowedWithoutGuard(t *testing.T) {
	e := newEnv(t)

	u, err := e.stock.UpdateStock(context.Background(), service.UpdateRequest{
		ProductID:    e.productID(),
		WarehouseID:  e.a(),
		Delta:        -2,
		MovementType: repository.MovementDamage,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-2), u.Cell.OnHand)
	assert.Zero(t, u.Cell.Available)
	assertDec(t, "4.00", u.Movement.UnitCost)

	// The receipt first fills the deficit; only the rest opens a layer.
	e.receive(t, e.a(), 5, "3.00")
	layers := e.layers(t, e.a())
	require.Len(t, layers, 1)
	assert.Equal(t, int64(3), layers[0].RemainingQuantity)
	assert.Equal(t, int64(3), e.cell(t, e.a()).OnHand)
}

func TestUpdateStock_LegacyCellPricedAtCostPrice(t *testing.T) {
	e := newEnv(t)
	e.mem.PutCell(repository.InventoryCell{
		ProductID:   e.productID(),
		WarehouseID: e.a(),
		OnHand:      10,
		Available:   10,
	})

	sale := e.sell(t, e.a(), 4, repository.CostingFIFO)
	assertDec(t, "4.00", sale.Movement.UnitCost)
	assertDec(t, "16.00", sale.Movement.TotalCost)
	assert.Equal(t, int64(6), sale.Cell.OnHand)
}

func TestUpdateStock_LegacyCellReceiptKeepsCostBasis(t *testing.T) {
	e := newEnv(t)
	e.mem.PutCell(repository.InventoryCell{
		ProductID:   e.productID(),
		WarehouseID: e.a(),
		OnHand:      10,
		Available:   10,
	})

	u := e.receive(t, e.a(), 5, "3.00")
	assert.Equal(t, int64(15), u.Cell.OnHand)
	assertDec(t, "3.6667", u.Cell.WeightedAvgCost)

	sale := e.sell(t, e.a(), 3, repository.CostingAverage)
	assertDec(t, "3.6667", sale.Movement.UnitCost)
}

func TestUpdateStock_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	negative := dec("-1.00")

	cases := []struct {
		name string
		req  service.UpdateRequest
		want error
	}{
		{"missing product", service.UpdateRequest{WarehouseID: e.a(), Delta: 1, MovementType: repository.MovementReturn}, errors.ErrValidation},
		{"unknown type", service.UpdateRequest{ProductID: e.productID(), WarehouseID: e.a(), Delta: 1, MovementType: "gift"}, errors.ErrInput},
		{"zero delta", service.UpdateRequest{ProductID: e.productID(), WarehouseID: e.a(), MovementType: repository.MovementReturn}, errors.ErrInput},
		{"sign mismatch", service.UpdateRequest{ProductID: e.productID(), WarehouseID: e.a(), Delta: 5, MovementType: repository.MovementSale}, errors.ErrInput},
		{"negative cost", service.UpdateRequest{ProductID: e.productID(), WarehouseID: e.a(), Delta: 5, MovementType: repository.MovementReturn, UnitCost: &negative}, errors.ErrInput},
		{"bad method", service.UpdateRequest{ProductID: e.productID(), WarehouseID: e.a(), Delta: -1, MovementType: repository.MovementSale, CostingMethod: "HIFO"}, errors.ErrInput},
		{"unknown product", service.UpdateRequest{ProductID: "missing", WarehouseID: e.a(), Delta: 1, MovementType: repository.MovementReturn}, errors.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.stock.UpdateStock(ctx, tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
	assert.Zero(t, e.queue.Len())
}

func TestUpdateStock_ConcurrentUpdatesCollapse(t *testing.T) {
	var gate *gatedStore
	e := newEnv(t, withStore(func(s repository.Store) repository.Store {
		gate = newGatedStore(s)
		return gate
	}))
	ctx := context.Background()
	req := service.UpdateRequest{
		ProductID:    e.productID(),
		WarehouseID:  e.a(),
		Delta:        5,
		MovementType: repository.MovementPurchaseReceive,
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.stock.UpdateStock(ctx, req)
		done <- err
	}()
	<-gate.entered

	_, err := e.stock.UpdateStock(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConcurrentUpdate))

	close(gate.release)
	require.NoError(t, <-done)

	assert.Equal(t, int64(5), e.cell(t, e.a()).OnHand)
	assert.Len(t, e.movements(t, e.a()), 1)
	assert.Zero(t, e.leases.Len())
}

func TestUpdateStock_LeaseIsPerCell(t *testing.T) {
	e := newEnv(t)
	release, ok := e.leases.TryAcquire(e.key(e.a()).String())
	require.True(t, ok)
	defer release()

	e.receive(t, e.b(), 1, "1.00")

	_, err := e.stock.UpdateStock(context.Background(), service.UpdateRequest{
		ProductID: e.productID(), WarehouseID: e.a(), Delta: 1, MovementType: repository.MovementReturn,
	})
	assert.True(t, errors.Is(err, errors.ErrConcurrentUpdate))
}

func TestUpdateStock_SideEffects(t *testing.T) {
	e := newEnv(t)
	mgr := actor.Actor{ID: "7b1e1a3c-1d2e-4f50-9a61-1f6c0e0b9d11", Email: "ops@ims.test"}
	ctx := actor.WithActor(context.Background(), &mgr)

	u, err := e.stock.UpdateStock(ctx, service.UpdateRequest{
		ProductID: e.productID(), WarehouseID: e.a(), Delta: 4, MovementType: repository.MovementReturn,
	})
	require.NoError(t, err)

	require.NotNil(t, u.Movement.CreatedBy)
	assert.Equal(t, mgr.ID, *u.Movement.CreatedBy)
	assert.Equal(t, mgr.ID, *u.Cell.UpdatedBy)

	assert.Equal(t, []repository.CellKey{e.key(e.a())}, e.queue.Keys)
	require.Equal(t, 1, e.broadcaster.UpdateCount())
	assert.Equal(t, int64(4), e.broadcaster.Updates[0].OnHand)
}

func TestUpdateStock_SideEffectFailuresDoNotRollBack(t *testing.T) {
	e := newEnv(t)
	e.queue.Full = true
	e.broadcaster.Err = errors.Internal("broker down")

	u := e.receive(t, e.a(), 2, "1.00")
	assert.Equal(t, int64(2), u.Cell.OnHand)
	assert.Equal(t, int64(2), e.cell(t, e.a()).OnHand)
}

func TestUpdateStock_SystemActorStoresNullAudit(t *testing.T) {
	e := newEnv(t)
	u := e.receive(t, e.a(), 1, "1.00")
	assert.Nil(t, u.Movement.CreatedBy)
	assert.Nil(t, u.Cell.UpdatedBy)
}

func TestUpdateStock_CancelledContext(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.stock.UpdateStock(ctx, service.UpdateRequest{
		ProductID: e.productID(), WarehouseID: e.a(), Delta: 1, MovementType: repository.MovementReturn,
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, e.leases.Len())
}

func TestUpdateStock_InvariantsUnderRandomFIFO(t *testing.T) {
	e := newEnv(t)
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		onHand := e.onHand(t, e.a())
		var err error
		if onHand == 0 || rng.Intn(2) == 0 {
			c := decimal.NewFromInt(int64(rng.Intn(20))).Mul(dec("0.25")).Add(dec("1.00"))
			_, err = e.stock.UpdateStock(ctx, service.UpdateRequest{
				ProductID: e.productID(), WarehouseID: e.a(),
				Delta: int64(rng.Intn(9) + 1), MovementType: repository.MovementPurchaseReceive, UnitCost: &c,
			})
		} else {
			_, err = e.stock.UpdateStock(ctx, service.UpdateRequest{
				ProductID: e.productID(), WarehouseID: e.a(),
				Delta: -int64(rng.Intn(int(onHand)) + 1), MovementType: repository.MovementSale,
				CostingMethod: repository.CostingFIFO, PreventNegative: true,
			})
		}
		require.NoError(t, err)

		cell := e.cell(t, e.a())
		require.GreaterOrEqual(t, cell.OnHand, int64(0))
		require.Equal(t, cell.OnHand, remaining(e.layers(t, e.a())))
		require.Equal(t, cell.OnHand-cell.Reserved, cell.Available)
	}

	require.NoError(t, ledger.CheckContinuity(e.movements(t, e.a())))
}

func TestAdjust(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	reason := "cycle count"

	up, err := e.stock.Adjust(ctx, service.AdjustRequest{
		ProductID: e.productID(), WarehouseID: e.a(), Kind: service.AdjustIncrease, Quantity: 6, Reason: &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, repository.MovementAdjustmentIncrease, up.Movement.MovementType)
	assertDec(t, "4.00", up.Movement.UnitCost)

	_, err = e.stock.Adjust(ctx, service.AdjustRequest{
		ProductID: e.productID(), WarehouseID: e.a(), Kind: service.AdjustDecrease, Quantity: 7,
	})
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	down, err := e.stock.Adjust(ctx, service.AdjustRequest{
		ProductID: e.productID(), WarehouseID: e.a(), Kind: service.AdjustDecrease, Quantity: 6,
	})
	require.NoError(t, err)
	assert.Zero(t, down.Cell.OnHand)

	_, err = e.stock.Adjust(ctx, service.AdjustRequest{
		ProductID: e.productID(), WarehouseID: e.a(), Kind: "sideways", Quantity: 1,
	})
	assert.True(t, errors.Is(err, errors.ErrInput))
}

func TestBulkUpdate(t *testing.T) {
	e := newEnv(t)
	other := e.fixtures.Product()
	e.mem.AddProduct(other)

	items := []service.UpdateRequest{
		{ProductID: e.productID(), WarehouseID: e.a(), Delta: 10, MovementType: repository.MovementPurchaseReceive},
		{ProductID: e.productID(), WarehouseID: e.b(), Delta: -1, MovementType: repository.MovementSale, PreventNegative: true},
		{ProductID: other.ID, WarehouseID: e.a(), Delta: 3, MovementType: repository.MovementPurchaseReceive},
		{ProductID: e.productID(), WarehouseID: e.a(), Delta: -4, MovementType: repository.MovementSale, PreventNegative: true},
	}

	results := e.stock.BulkUpdate(context.Background(), items)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "INSUFFICIENT_STOCK", results[1].ErrorCode)
	assert.True(t, results[2].Success)
	assert.True(t, results[3].Success)

	assert.Equal(t, int64(6), e.cell(t, e.a()).OnHand)
}

func TestBulkUpdate_CancelledBetweenItems(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := e.stock.BulkUpdate(ctx, []service.UpdateRequest{
		{ProductID: e.productID(), WarehouseID: e.a(), Delta: 1, MovementType: repository.MovementReturn},
		{ProductID: e.productID(), WarehouseID: e.b(), Delta: 1, MovementType: repository.MovementReturn},
	})
	for _, r := range results {
		assert.False(t, r.Success)
		assert.Equal(t, context.Canceled.Error(), r.Error)
	}
	assert.Zero(t, len(e.movements(t, e.a())))
}

func TestBulkUpdate_BatchesLargeGroups(t *testing.T) {
	e := newEnv(t)
	items := make([]service.UpdateRequest, service.MaxBulkBatchSize+7)
	for i := range items {
		items[i] = service.UpdateRequest{
			ProductID: e.productID(), WarehouseID: e.a(), Delta: 1, MovementType: repository.MovementReturn,
			Reference: testutil.PtrString("bulk"),
		}
	}

	results := e.stock.BulkUpdate(context.Background(), items)
	for _, r := range results {
		require.True(t, r.Success, r.Error)
	}
	assert.Equal(t, int64(len(items)), e.cell(t, e.a()).OnHand)
}

func TestUpdateStock_SkipMovement(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cost := dec("2.00")

	u, err := e.stock.UpdateStock(ctx, service.UpdateRequest{
		ProductID:    e.productID(),
		WarehouseID:  e.a(),
		Delta:        4,
		MovementType: repository.MovementAdjustmentIncrease,
		UnitCost:     &cost,
		SkipMovement: true,
	})
	require.NoError(t, err)
	assert.Nil(t, u.Movement)
	assert.Equal(t, int64(4), u.Cell.OnHand)
	assert.Equal(t, int64(4), e.cell(t, e.a()).OnHand)

	_, total, err := e.mem.ListMovements(ctx, repository.MovementFilter{ProductID: e.productID(), Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)

	layers, err := e.mem.ListLayers(ctx, e.productID(), e.a())
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, int64(4), layers[0].RemainingQuantity)

	assert.Equal(t, 1, e.broadcaster.UpdateCount())
	assert.Equal(t, 1, e.queue.Len())
}

// stalledBroadcaster blocks every update until its context is done.
type stalledBroadcaster struct {
	*testutil.RecordingBroadcaster
}

func (b stalledBroadcaster) BroadcastInventoryUpdate(ctx context.Context, cell *repository.InventoryCell, movement *repository.StockMovement) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestUpdateStock_SideEffectsBoundedUnderLease(t *testing.T) {
	e := newEnv(t)
	stock := service.NewStockService(e.mem, e.leases, nil,
		stalledBroadcaster{testutil.NewRecordingBroadcaster()}, nil,
		service.Options{SideEffectTimeout: 20 * time.Millisecond}, logger.Nop())

	cost := dec("1.00")
	start := time.Now()
	u, err := stock.UpdateStock(context.Background(), service.UpdateRequest{
		ProductID:    e.productID(),
		WarehouseID:  e.a(),
		Delta:        2,
		MovementType: repository.MovementPurchaseReceive,
		UnitCost:     &cost,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.Cell.OnHand)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, e.leases.Held(e.key(e.a()).String()))
}
