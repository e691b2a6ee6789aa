package testutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/pkg/actor"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// FixtureFactory creates test catalogue and user data
type FixtureFactory struct {
	seq atomic.Int64
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) nextSeq() int64 {
	return f.seq.Add(1)
}

// Product creates a product fixture with optional overrides
func (f *FixtureFactory) Product(opts ...func(*repository.Product)) repository.Product {
	seq := f.nextSeq()
	p := repository.Product{
		ID:           uuid.NewString(),
		SKU:          fmt.Sprintf("SKU-%04d", seq),
		Name:         fmt.Sprintf("Test Product %d", seq),
		CostPrice:    decimal.RequireFromString("4.00"),
		SellingPrice: decimal.RequireFromString("10.00"),
		IsActive:     true,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithCostPrice sets the product cost price
func WithCostPrice(price string) func(*repository.Product) {
	return func(p *repository.Product) {
		p.CostPrice = decimal.RequireFromString(price)
	}
}

// WithSellingPrice sets the product selling price
func WithSellingPrice(price string) func(*repository.Product) {
	return func(p *repository.Product) {
		p.SellingPrice = decimal.RequireFromString(price)
	}
}

// WithReorder sets the product reorder level and quantity
func WithReorder(level, quantity int64) func(*repository.Product) {
	return func(p *repository.Product) {
		p.ReorderLevel = level
		p.ReorderQuantity = quantity
	}
}

// Warehouse creates a warehouse fixture
func (f *FixtureFactory) Warehouse(name string) repository.Warehouse {
	seq := f.nextSeq()
	return repository.Warehouse{
		ID:       uuid.NewString(),
		Code:     fmt.Sprintf("WH-%03d", seq),
		Name:     name,
		IsActive: true,
	}
}

// Manager creates an active manager assigned to warehouseID
func (f *FixtureFactory) Manager(warehouseID string) repository.CachedUser {
	seq := f.nextSeq()
	return repository.CachedUser{
		UserID:      uuid.NewString(),
		Name:        fmt.Sprintf("Manager %d", seq),
		Email:       fmt.Sprintf("manager%d@ims.test", seq),
		RoleName:    actor.RoleManager,
		WarehouseID: &warehouseID,
		IsActive:    true,
	}
}

// Catalog is a seeded product with two warehouses.
type Catalog struct {
	Product repository.Product
	A       repository.Warehouse
	B       repository.Warehouse
}

// SeedMemory seeds a MemoryStore with one product and two warehouses.
func (f *FixtureFactory) SeedMemory(store *repository.MemoryStore, opts ...func(*repository.Product)) Catalog {
	c := Catalog{
		Product: f.Product(opts...),
		A:       f.Warehouse("Warehouse A"),
		B:       f.Warehouse("Warehouse B"),
	}
	store.AddProduct(c.Product)
	store.AddWarehouse(c.A)
	store.AddWarehouse(c.B)
	return c
}

// InsertProduct inserts a product row
func InsertProduct(ctx context.Context, db *sqlx.DB, p repository.Product) error {
	_, err := db.NamedExecContext(ctx, `
		INSERT INTO products (id, sku, name, cost_price, selling_price, reorder_level, reorder_quantity, is_active)
		VALUES (:id, :sku, :name, :cost_price, :selling_price, :reorder_level, :reorder_quantity, :is_active)
	`, p)
	return err
}

// InsertWarehouse inserts a warehouse row
func InsertWarehouse(ctx context.Context, db *sqlx.DB, w repository.Warehouse) error {
	_, err := db.NamedExecContext(ctx, `
		INSERT INTO warehouses (id, code, name, is_active)
		VALUES (:id, :code, :name, :is_active)
	`, w)
	return err
}

// SeedPostgres inserts one product and two warehouses.
func (f *FixtureFactory) SeedPostgres(ctx context.Context, db *sqlx.DB, opts ...func(*repository.Product)) (Catalog, error) {
	c := Catalog{
		Product: f.Product(opts...),
		A:       f.Warehouse("Warehouse A"),
		B:       f.Warehouse("Warehouse B"),
	}
	if err := InsertProduct(ctx, db, c.Product); err != nil {
		return c, fmt.Errorf("insert product: %w", err)
	}
	for _, w := range []repository.Warehouse{c.A, c.B} {
		if err := InsertWarehouse(ctx, db, w); err != nil {
			return c, fmt.Errorf("insert warehouse: %w", err)
		}
	}
	return c, nil
}
