package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/lease"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/service"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/NandhanI20020/IMS-sub000/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// faultyStore fails chosen UnitOfWork calls (1-based) without running them.
type faultyStore struct {
	repository.Store

	mu     sync.Mutex
	calls  int
	faults map[int]error
}

func (s *faultyStore) UnitOfWork(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	s.calls++
	err := s.faults[s.calls]
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return s.Store.UnitOfWork(ctx, fn)
}

// gatedStore parks the first UnitOfWork call until release is closed.
type gatedStore struct {
	repository.Store

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedStore(inner repository.Store) *gatedStore {
	return &gatedStore{Store: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedStore) UnitOfWork(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.Store.UnitOfWork(ctx, fn)
}

type env struct {
	mem          *repository.MemoryStore
	catalog      testutil.Catalog
	fixtures     *testutil.FixtureFactory
	clock        *fakeClock
	broadcaster  *testutil.RecordingBroadcaster
	mailer       *testutil.RecordingMailer
	queue        *testutil.RecordingQueue
	leases       *lease.Table
	stock        *service.StockService
	reservations *service.ReservationService
	transfers    *service.TransferService
	queries      *service.QueryService
	orders       *service.PurchaseOrderService
	monitor      *service.ReorderMonitor
}

type envOption func(*envConfig)

type envConfig struct {
	wrap    func(repository.Store) repository.Store
	product []func(*repository.Product)
}

func withStore(wrap func(repository.Store) repository.Store) envOption {
	return func(c *envConfig) { c.wrap = wrap }
}

func withProduct(opts ...func(*repository.Product)) envOption {
	return func(c *envConfig) { c.product = append(c.product, opts...) }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()

	var cfg envConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &env{
		mem:         repository.NewMemoryStore(),
		fixtures:    testutil.NewFixtureFactory(),
		clock:       newFakeClock(),
		broadcaster: testutil.NewRecordingBroadcaster(),
		mailer:      testutil.NewRecordingMailer(),
		queue:       &testutil.RecordingQueue{},
		leases:      lease.NewTable(),
	}
	e.mem.SetClock(e.clock.Now)
	e.catalog = e.fixtures.SeedMemory(e.mem, cfg.product...)

	var store repository.Store = e.mem
	if cfg.wrap != nil {
		store = cfg.wrap(e.mem)
	}

	log := logger.Nop()
	e.stock = service.NewStockService(store, e.leases, e.queue, e.broadcaster, nil, service.Options{}, log)
	e.stock.SetClock(e.clock.Now)
	e.reservations = service.NewReservationService(e.stock)
	e.transfers = service.NewTransferService(e.stock, e.broadcaster, log)
	e.queries = service.NewQueryService(store, nil, log)
	e.orders = service.NewPurchaseOrderService(e.stock, log)
	e.monitor = service.NewReorderMonitor(store, e.mailer, e.broadcaster, service.MonitorOptions{}, log)
	e.monitor.SetClock(e.clock.Now)
	return e
}

func (e *env) productID() string { return e.catalog.Product.ID }
func (e *env) a() string         { return e.catalog.A.ID }
func (e *env) b() string         { return e.catalog.B.ID }

func (e *env) key(warehouseID string) repository.CellKey {
	return repository.CellKey{ProductID: e.productID(), WarehouseID: warehouseID}
}

func (e *env) receive(t *testing.T, warehouseID string, qty int64, cost string) *service.StockUpdate {
	t.Helper()
	c := dec(cost)
	u, err := e.stock.UpdateStock(context.Background(), service.UpdateRequest{
		ProductID:    e.productID(),
		WarehouseID:  warehouseID,
		Delta:        qty,
		MovementType: repository.MovementPurchaseReceive,
		UnitCost:     &c,
	})
	require.NoError(t, err)
	return u
}

func (e *env) sell(t *testing.T, warehouseID string, qty int64, method repository.CostingMethod) *service.StockUpdate {
	t.Helper()
	u, err := e.stock.UpdateStock(context.Background(), service.UpdateRequest{
		ProductID:       e.productID(),
		WarehouseID:     warehouseID,
		Delta:           -qty,
		MovementType:    repository.MovementSale,
		CostingMethod:   method,
		PreventNegative: true,
	})
	require.NoError(t, err)
	return u
}

func (e *env) cell(t *testing.T, warehouseID string) *repository.InventoryCell {
	t.Helper()
	c, err := e.mem.GetCell(context.Background(), e.productID(), warehouseID)
	require.NoError(t, err)
	return c
}

// onHand is zero for a cell that does not exist yet.
func (e *env) onHand(t *testing.T, warehouseID string) int64 {
	t.Helper()
	c, err := e.mem.GetCell(context.Background(), e.productID(), warehouseID)
	if errors.Is(err, errors.ErrNotFound) {
		return 0
	}
	require.NoError(t, err)
	return c.OnHand
}

func (e *env) layers(t *testing.T, warehouseID string) []repository.CostLayer {
	t.Helper()
	l, err := e.mem.ListLayers(context.Background(), e.productID(), warehouseID)
	require.NoError(t, err)
	return l
}

func (e *env) movements(t *testing.T, warehouseID string) []repository.StockMovement {
	t.Helper()
	m, _, err := e.mem.ListMovements(context.Background(), repository.MovementFilter{
		ProductID:   e.productID(),
		WarehouseID: warehouseID,
		Limit:       1000,
	})
	require.NoError(t, err)
	return m
}

func remaining(layers []repository.CostLayer) int64 {
	var total int64
	for _, l := range layers {
		total += l.RemainingQuantity
	}
	return total
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
