package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"no rows", sql.ErrNoRows, "NOT_FOUND"},
		{"available identity", &pq.Error{Code: "23514", Constraint: "inventory_cells_available_identity"}, "INVARIANT_VIOLATION"},
		{"over received", &pq.Error{Code: "23514", Constraint: "purchase_order_lines_not_over_received"}, "INPUT_ERROR"},
		{"same warehouse", &pq.Error{Code: "23514", Constraint: "stock_transfers_distinct_warehouses"}, "SAME_WAREHOUSE_TRANSFER"},
		{"unique", &pq.Error{Code: "23505", Constraint: "products_sku_key"}, "CONFLICT"},
		{"foreign key", &pq.Error{Code: "23503"}, "NOT_FOUND"},
		{"not null", &pq.Error{Code: "23502", Column: "sku"}, "INPUT_ERROR"},
		{"serialization", &pq.Error{Code: "40001"}, "PERSISTENCE_ERROR"},
		{"io", stderrors.New("connection reset"), "PERSISTENCE_ERROR"},
		{"wrapped app error", fmt.Errorf("lock: %w", errors.ConcurrentUpdate("p:w")), "CONCURRENT_UPDATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, errors.Code(MapError(tt.err, "stock cell", "op")))
		})
	}
}

func TestMapError_PassThrough(t *testing.T) {
	assert.NoError(t, MapError(nil, "x", "op"))
	assert.ErrorIs(t, MapError(context.DeadlineExceeded, "x", "op"), context.DeadlineExceeded)
	assert.ErrorIs(t, MapError(fmt.Errorf("scan: %w", context.Canceled), "x", "op"), context.Canceled)
}
