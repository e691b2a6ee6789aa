package service_test

import (
	"context"
	"testing"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/NandhanI20020/IMS-sub000/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		available, level int64
		want             service.StockStatus
	}{
		{0, 10, service.StatusOutOfStock},
		{-3, 0, service.StatusOutOfStock},
		{10, 10, service.StatusLowStock},
		{11, 10, service.StatusNormal},
		{30, 10, service.StatusNormal},
		{31, 10, service.StatusOverstocked},
		{500, 0, service.StatusNormal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, service.ClassifyStatus(tc.available, tc.level), "available=%d level=%d", tc.available, tc.level)
	}
}

func TestQuery_Status(t *testing.T) {
	e := newEnv(t, withProduct(testutil.WithReorder(10, 25)))
	ctx := context.Background()
	e.receive(t, e.a(), 8, "5.00")
	e.receive(t, e.b(), 40, "5.00")

	rows, err := e.queries.Status(ctx, service.StatusFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byWarehouse := map[string]service.CellStatus{}
	for _, r := range rows {
		byWarehouse[r.WarehouseID] = r
	}
	assert.Equal(t, service.StatusLowStock, byWarehouse[e.a()].Status)
	assert.Equal(t, int64(10), byWarehouse[e.a()].EffectiveReorderLevel)
	assert.Equal(t, int64(25), byWarehouse[e.a()].EffectiveReorderQuantity)
	assert.Equal(t, service.StatusOverstocked, byWarehouse[e.b()].Status)

	low, err := e.queries.Status(ctx, service.StatusFilter{Status: service.StatusLowStock})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, e.a(), low[0].WarehouseID)
}

func TestQuery_StatusCellOverride(t *testing.T) {
	e := newEnv(t, withProduct(testutil.WithReorder(10, 0)))
	e.mem.PutCell(repository.InventoryCell{
		ProductID:    e.productID(),
		WarehouseID:  e.a(),
		OnHand:       8,
		Available:    8,
		ReorderLevel: testutil.PtrInt64(5),
	})

	rows, err := e.queries.Status(context.Background(), service.StatusFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0].EffectiveReorderLevel)
	assert.Equal(t, service.StatusNormal, rows[0].Status)
}

type memoryStatusCache struct {
	rows    map[repository.CellFilter][]service.CellStatus
	gets    int
	cleared []string
}

func (c *memoryStatusCache) GetStatus(ctx context.Context, filter repository.CellFilter) ([]service.CellStatus, bool, error) {
	c.gets++
	rows, ok := c.rows[filter]
	return rows, ok, nil
}

func (c *memoryStatusCache) SetStatus(ctx context.Context, filter repository.CellFilter, rows []service.CellStatus) error {
	c.rows[filter] = rows
	return nil
}

func (c *memoryStatusCache) InvalidateWarehouse(ctx context.Context, warehouseID string) error {
	c.cleared = append(c.cleared, warehouseID)
	for f := range c.rows {
		if f.WarehouseID == warehouseID || f.WarehouseID == "" {
			delete(c.rows, f)
		}
	}
	return nil
}

func TestQuery_StatusUsesCache(t *testing.T) {
	e := newEnv(t)
	e.receive(t, e.a(), 5, "1.00")

	cache := &memoryStatusCache{rows: map[repository.CellFilter][]service.CellStatus{}}
	q := service.NewQueryService(e.mem, cache, logger.Nop())
	filter := service.StatusFilter{CellFilter: repository.CellFilter{WarehouseID: e.a()}}

	first, err := q.Status(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Contains(t, cache.rows, filter.CellFilter)

	// A cached answer is served even though the store changed.
	e.receive(t, e.a(), 5, "1.00")
	second, err := q.Status(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, int64(5), second[0].OnHand)
	assert.Equal(t, 2, cache.gets)
}

func TestQuery_Valuation(t *testing.T) {
	e := newEnv(t, withProduct(testutil.WithSellingPrice("10.00")))
	ctx := context.Background()
	e.receive(t, e.a(), 10, "5.00")
	e.receive(t, e.a(), 10, "7.00")
	e.sell(t, e.a(), 5, repository.CostingFIFO)

	avg, err := e.queries.Valuation(ctx, e.a(), repository.CostingAverage)
	require.NoError(t, err)
	require.Len(t, avg.Items, 1)
	assertDec(t, "6.00", avg.Items[0].UnitCost)
	assertDec(t, "90.00", avg.Items[0].TotalCost)
	assertDec(t, "150.00", avg.Items[0].TotalRetail)
	assertDec(t, "60.00", avg.Items[0].PotentialProfit)

	fifo, err := e.queries.Valuation(ctx, e.a(), repository.CostingFIFO)
	require.NoError(t, err)
	// 5 @ 5.00 + 10 @ 7.00
	assertDec(t, "95.00", fifo.Items[0].TotalCost)
	assertDec(t, "6.3333", fifo.Items[0].UnitCost)
	assertDec(t, "55.00", fifo.Summary.PotentialProfit)
	assert.Equal(t, int64(15), fifo.Summary.TotalUnits)
	assert.Equal(t, 1, fifo.Summary.Cells)

	_, err = e.queries.Valuation(ctx, e.a(), "HIFO")
	assert.True(t, errors.Is(err, errors.ErrInput))
}

func TestQuery_ValuationFallsBackToCostPrice(t *testing.T) {
	e := newEnv(t, withProduct(testutil.WithCostPrice("2.50")))
	e.mem.PutCell(repository.InventoryCell{
		ProductID: e.productID(), WarehouseID: e.a(), OnHand: 4, Available: 4,
	})

	for _, method := range []repository.CostingMethod{repository.CostingAverage, repository.CostingLIFO} {
		v, err := e.queries.Valuation(context.Background(), "", method)
		require.NoError(t, err)
		require.Len(t, v.Items, 1)
		assertDec(t, "10.00", v.Items[0].TotalCost)
	}
}

func TestQuery_Movements(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.receive(t, e.a(), 5, "1.00")
	e.receive(t, e.a(), 5, "1.00")
	e.sell(t, e.a(), 3, repository.CostingFIFO)

	page, err := e.queries.Movements(ctx, repository.MovementFilter{ProductID: e.productID(), Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.Page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, repository.MovementSale, page.Items[0].MovementType)
	assert.Greater(t, page.Items[0].Seq, page.Items[1].Seq)

	next, err := e.queries.Movements(ctx, repository.MovementFilter{ProductID: e.productID(), Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)

	capped, err := e.queries.Movements(ctx, repository.MovementFilter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, service.MaxMovementLimit, capped.Limit)

	defaults, err := e.queries.Movements(ctx, repository.MovementFilter{})
	require.NoError(t, err)
	assert.Equal(t, service.DefaultMovementLimit, defaults.Limit)

	sales, err := e.queries.Movements(ctx, repository.MovementFilter{MovementType: repository.MovementSale})
	require.NoError(t, err)
	assert.Len(t, sales.Items, 1)

	_, err = e.queries.Movements(ctx, repository.MovementFilter{MovementType: "gift"})
	assert.True(t, errors.Is(err, errors.ErrInput))
}
