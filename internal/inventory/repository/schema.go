package repository

import (
	"context"
	"fmt"

	"github.com/NandhanI20020/IMS-sub000/pkg/database"
)

// Migrations returns the DDL for the inventory core tables in apply order.
// Products, warehouses and purchase orders are owned by other services; the
// tables here carry only the columns the core reads.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			sku VARCHAR(100) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			cost_price NUMERIC(14,4) NOT NULL DEFAULT 0,
			selling_price NUMERIC(14,4) NOT NULL DEFAULT 0,
			reorder_level BIGINT NOT NULL DEFAULT 0,
			reorder_quantity BIGINT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE TABLE IF NOT EXISTS warehouses (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			code VARCHAR(50) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE TABLE IF NOT EXISTS inventory_cells (
			product_id UUID NOT NULL REFERENCES products(id),
			warehouse_id UUID NOT NULL REFERENCES warehouses(id),
			on_hand BIGINT NOT NULL DEFAULT 0,
			reserved BIGINT NOT NULL DEFAULT 0,
			available BIGINT NOT NULL DEFAULT 0,
			weighted_avg_cost NUMERIC(14,4) NOT NULL DEFAULT 0,
			reorder_level BIGINT,
			reorder_quantity BIGINT,
			last_movement_at TIMESTAMPTZ,
			updated_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (product_id, warehouse_id),
			CONSTRAINT inventory_cells_reserved_nonnegative CHECK (reserved >= 0),
			CONSTRAINT inventory_cells_available_identity CHECK (available = GREATEST(on_hand - reserved, 0)),
			CONSTRAINT inventory_cells_cost_nonnegative CHECK (weighted_avg_cost >= 0)
		)`,

		`CREATE TABLE IF NOT EXISTS cost_layers (
			id BIGSERIAL PRIMARY KEY,
			product_id UUID NOT NULL,
			warehouse_id UUID NOT NULL,
			unit_cost NUMERIC(14,4) NOT NULL,
			original_quantity BIGINT NOT NULL,
			remaining_quantity BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			FOREIGN KEY (product_id, warehouse_id) REFERENCES inventory_cells(product_id, warehouse_id),
			CONSTRAINT cost_layers_quantity_positive CHECK (original_quantity > 0),
			CONSTRAINT cost_layers_remaining_nonnegative CHECK (remaining_quantity >= 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cost_layers_cell ON cost_layers (product_id, warehouse_id, created_at, id)`,

		`CREATE TABLE IF NOT EXISTS stock_movements (
			id UUID PRIMARY KEY,
			seq BIGSERIAL NOT NULL UNIQUE,
			product_id UUID NOT NULL,
			warehouse_id UUID NOT NULL,
			movement_type VARCHAR(32) NOT NULL,
			quantity BIGINT NOT NULL,
			unit_cost NUMERIC(14,4) NOT NULL,
			total_cost NUMERIC(18,4) NOT NULL,
			prev_on_hand BIGINT NOT NULL,
			new_on_hand BIGINT NOT NULL,
			reference VARCHAR(255),
			reason TEXT,
			batch VARCHAR(100),
			created_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			FOREIGN KEY (product_id, warehouse_id) REFERENCES inventory_cells(product_id, warehouse_id),
			CONSTRAINT stock_movements_quantity_positive CHECK (quantity > 0),
			CONSTRAINT stock_movements_continuity CHECK (ABS(new_on_hand - prev_on_hand) = quantity),
			CONSTRAINT stock_movements_type_valid CHECK (movement_type IN (
				'purchase_receive', 'sale', 'transfer_in', 'transfer_out',
				'adjustment_increase', 'adjustment_decrease', 'count_increase',
				'count_decrease', 'return', 'damage', 'expired'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_movements_cell ON stock_movements (product_id, warehouse_id, seq DESC)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id UUID PRIMARY KEY,
			product_id UUID NOT NULL,
			warehouse_id UUID NOT NULL,
			quantity BIGINT NOT NULL,
			reference VARCHAR(255),
			reason TEXT,
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			released_at TIMESTAMPTZ,
			consumed_at TIMESTAMPTZ,
			closed_by TEXT,
			FOREIGN KEY (product_id, warehouse_id) REFERENCES inventory_cells(product_id, warehouse_id),
			CONSTRAINT reservations_quantity_positive CHECK (quantity > 0),
			CONSTRAINT reservations_status_valid CHECK (status IN ('active', 'released', 'consumed'))
		)`,

		`CREATE TABLE IF NOT EXISTS reorder_alerts (
			id UUID PRIMARY KEY,
			product_id UUID NOT NULL,
			warehouse_id UUID NOT NULL,
			on_hand_at_trigger BIGINT NOT NULL,
			available_at_trigger BIGINT NOT NULL,
			reorder_level BIGINT NOT NULL,
			suggested_quantity BIGINT NOT NULL,
			alert_type VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			acknowledged_by TEXT,
			acknowledged_at TIMESTAMPTZ,
			resolved_by TEXT,
			resolved_at TIMESTAMPTZ,
			CONSTRAINT reorder_alerts_type_valid CHECK (alert_type IN ('low_stock', 'out_of_stock')),
			CONSTRAINT reorder_alerts_status_valid CHECK (status IN ('pending', 'acknowledged', 'resolved'))
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_reorder_alerts_pending ON reorder_alerts (product_id, warehouse_id) WHERE status = 'pending'`,

		`CREATE TABLE IF NOT EXISTS stock_transfers (
			id UUID PRIMARY KEY,
			product_id UUID NOT NULL REFERENCES products(id),
			from_warehouse_id UUID NOT NULL REFERENCES warehouses(id),
			to_warehouse_id UUID NOT NULL REFERENCES warehouses(id),
			quantity BIGINT NOT NULL,
			unit_cost NUMERIC(14,4) NOT NULL DEFAULT 0,
			status VARCHAR(16) NOT NULL,
			reference VARCHAR(255),
			reason TEXT,
			failure_reason TEXT,
			created_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_transfers_distinct_warehouses CHECK (from_warehouse_id <> to_warehouse_id),
			CONSTRAINT stock_transfers_quantity_positive CHECK (quantity > 0),
			CONSTRAINT stock_transfers_status_valid CHECK (status IN ('completed', 'failed'))
		)`,

		`CREATE TABLE IF NOT EXISTS purchase_orders (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			number VARCHAR(50) NOT NULL UNIQUE,
			warehouse_id UUID NOT NULL REFERENCES warehouses(id),
			status VARCHAR(32) NOT NULL DEFAULT 'draft',
			received_at TIMESTAMPTZ,
			updated_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS purchase_order_lines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			purchase_order_id UUID NOT NULL REFERENCES purchase_orders(id) ON DELETE CASCADE,
			product_id UUID NOT NULL REFERENCES products(id),
			quantity_ordered BIGINT NOT NULL,
			quantity_received BIGINT NOT NULL DEFAULT 0,
			unit_cost NUMERIC(14,4) NOT NULL DEFAULT 0,
			CONSTRAINT purchase_order_lines_quantity_positive CHECK (quantity_ordered > 0),
			CONSTRAINT purchase_order_lines_not_over_received CHECK (quantity_received <= quantity_ordered)
		)`,

		`CREATE TABLE IF NOT EXISTS user_cache (
			user_id TEXT PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL,
			role_name VARCHAR(50) NOT NULL,
			warehouse_id UUID,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_cache_warehouse_role ON user_cache (warehouse_id, role_name)`,
	}
}

// Migrate applies Migrations in order. Every statement is idempotent.
func Migrate(ctx context.Context, db *database.DB) error {
	for i, stmt := range Migrations() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
