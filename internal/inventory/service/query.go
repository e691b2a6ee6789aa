package service

import (
	"context"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/costing"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/shopspring/decimal"
)

// Movement page bounds.
const (
	DefaultMovementLimit = 20
	MaxMovementLimit     = 100
)

// overstockFactor: a cell is overstocked above this multiple of its reorder level.
const overstockFactor = 3

// StockStatus is the derived health of a cell.
type StockStatus string

const (
	StatusNormal      StockStatus = "normal"
	StatusLowStock    StockStatus = "low_stock"
	StatusOutOfStock  StockStatus = "out_of_stock"
	StatusOverstocked StockStatus = "overstocked"
)

// ClassifyStatus derives a cell's status from its available quantity.
func ClassifyStatus(available, reorderLevel int64) StockStatus {
	switch {
	case available <= 0:
		return StatusOutOfStock
	case available <= reorderLevel:
		return StatusLowStock
	case reorderLevel > 0 && available > overstockFactor*reorderLevel:
		return StatusOverstocked
	default:
		return StatusNormal
	}
}

// CellStatus is a cell with its effective reorder settings and status.
type CellStatus struct {
	repository.CellView
	EffectiveReorderLevel    int64       `json:"effective_reorder_level"`
	EffectiveReorderQuantity int64       `json:"effective_reorder_quantity"`
	Status                   StockStatus `json:"status"`
}

// StatusFilter narrows Status. An empty Status matches every status.
type StatusFilter struct {
	repository.CellFilter
	Status StockStatus
}

// CellValuation is the value of one cell under a costing method.
type CellValuation struct {
	ProductID       string          `json:"product_id"`
	SKU             string          `json:"sku"`
	ProductName     string          `json:"product_name"`
	WarehouseID     string          `json:"warehouse_id"`
	WarehouseName   string          `json:"warehouse_name"`
	OnHand          int64           `json:"on_hand"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	TotalRetail     decimal.Decimal `json:"total_retail"`
	PotentialProfit decimal.Decimal `json:"potential_profit"`
}

// ValuationSummary totals a valuation.
type ValuationSummary struct {
	Cells           int             `json:"cells"`
	TotalUnits      int64           `json:"total_units"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	TotalRetail     decimal.Decimal `json:"total_retail"`
	PotentialProfit decimal.Decimal `json:"potential_profit"`
}

// Valuation is a priced snapshot of stock.
type Valuation struct {
	Method      repository.CostingMethod `json:"method"`
	WarehouseID string                   `json:"warehouse_id,omitempty"`
	Items       []CellValuation          `json:"items"`
	Summary     ValuationSummary         `json:"summary"`
}

// MovementPage is one page of the ledger, newest first.
type MovementPage struct {
	Items      []repository.StockMovement `json:"items"`
	Total      int64                      `json:"total"`
	Page       int                        `json:"page"`
	Limit      int                        `json:"limit"`
	TotalPages int                        `json:"total_pages"`
}

// QueryService serves read models from committed state. It takes no leases.
type QueryService struct {
	store  repository.Reader
	cache  StatusCache
	logger *logger.Logger
}

// NewQueryService creates a new query service. cache may be nil.
func NewQueryService(store repository.Reader, cache StatusCache, log *logger.Logger) *QueryService {
	return &QueryService{
		store:  store,
		cache:  cache,
		logger: log.WithComponent("query"),
	}
}

// Status lists cells with their derived status.
func (q *QueryService) Status(ctx context.Context, filter StatusFilter) ([]CellStatus, error) {
	rows, err := q.statusRows(ctx, filter.CellFilter)
	if err != nil {
		return nil, err
	}
	if filter.Status == "" {
		return rows, nil
	}

	out := make([]CellStatus, 0, len(rows))
	for _, r := range rows {
		if r.Status == filter.Status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (q *QueryService) statusRows(ctx context.Context, filter repository.CellFilter) ([]CellStatus, error) {
	if q.cache != nil {
		rows, ok, err := q.cache.GetStatus(ctx, filter)
		if err != nil {
			q.logger.Warn().Err(err).Msg("status cache read failed")
		} else if ok {
			return rows, nil
		}
	}

	views, err := q.store.ListCellViews(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]CellStatus, len(views))
	for i := range views {
		level, qty := repository.EffectiveReorder(&views[i].InventoryCell, views[i].Product())
		rows[i] = CellStatus{
			CellView:                 views[i],
			EffectiveReorderLevel:    level,
			EffectiveReorderQuantity: qty,
			Status:                   ClassifyStatus(views[i].Available, level),
		}
	}

	if q.cache != nil {
		if err := q.cache.SetStatus(ctx, filter, rows); err != nil {
			q.logger.Warn().Err(err).Msg("status cache write failed")
		}
	}
	return rows, nil
}

// Valuation prices every cell of a warehouse, or all warehouses when
// warehouseID is empty, under method.
//
// AVERAGE values on-hand at the weighted average cost. FIFO and LIFO value
// the remaining cost layers at book; units not covered by a layer fall back
// to the weighted average, then to the product cost price.
func (q *QueryService) Valuation(ctx context.Context, warehouseID string, method repository.CostingMethod) (*Valuation, error) {
	if method == "" {
		method = repository.CostingAverage
	}
	if _, err := repository.ParseCostingMethod(string(method)); err != nil {
		return nil, errors.Input(err.Error())
	}

	views, err := q.store.ListCellViews(ctx, repository.CellFilter{WarehouseID: warehouseID})
	if err != nil {
		return nil, err
	}

	layers := map[repository.CellKey][]repository.CostLayer{}
	if method != repository.CostingAverage {
		all, err := q.store.ListLayersByWarehouse(ctx, warehouseID)
		if err != nil {
			return nil, err
		}
		for _, l := range all {
			key := repository.CellKey{ProductID: l.ProductID, WarehouseID: l.WarehouseID}
			layers[key] = append(layers[key], l)
		}
	}

	result := &Valuation{
		Method:      method,
		WarehouseID: warehouseID,
		Items:       make([]CellValuation, 0, len(views)),
		Summary: ValuationSummary{
			TotalCost:       decimal.Zero,
			TotalRetail:     decimal.Zero,
			PotentialProfit: decimal.Zero,
		},
	}

	for i := range views {
		v := valueCell(&views[i], method, layers[views[i].Key()])
		result.Items = append(result.Items, v)
		result.Summary.Cells++
		result.Summary.TotalUnits += v.OnHand
		result.Summary.TotalCost = result.Summary.TotalCost.Add(v.TotalCost)
		result.Summary.TotalRetail = result.Summary.TotalRetail.Add(v.TotalRetail)
		result.Summary.PotentialProfit = result.Summary.PotentialProfit.Add(v.PotentialProfit)
	}
	return result, nil
}

func valueCell(view *repository.CellView, method repository.CostingMethod, layers []repository.CostLayer) CellValuation {
	fallback := view.WeightedAvgCost
	if fallback.IsZero() {
		fallback = view.CostPrice
	}

	units := max(view.OnHand, 0)
	qty := decimal.NewFromInt(units)

	unitCost := fallback
	total := fallback.Mul(qty)

	if method != repository.CostingAverage && len(layers) > 0 && units > 0 {
		book, covered := costing.BookValue(layers)
		total = book.Add(fallback.Mul(decimal.NewFromInt(max(units-covered, 0))))
		unitCost = total.Div(qty).Round(costing.CostScale)
	}

	retail := view.SellingPrice.Mul(qty)
	return CellValuation{
		ProductID:       view.ProductID,
		SKU:             view.SKU,
		ProductName:     view.ProductName,
		WarehouseID:     view.WarehouseID,
		WarehouseName:   view.WarehouseName,
		OnHand:          view.OnHand,
		UnitCost:        unitCost,
		TotalCost:       total,
		TotalRetail:     retail,
		PotentialProfit: retail.Sub(total),
	}
}

// Movements returns one page of the ledger, newest first.
func (q *QueryService) Movements(ctx context.Context, filter repository.MovementFilter) (*MovementPage, error) {
	if filter.MovementType != "" && !filter.MovementType.Valid() {
		return nil, errors.Input("unknown movement type " + string(filter.MovementType))
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultMovementLimit
	}
	if filter.Limit > MaxMovementLimit {
		filter.Limit = MaxMovementLimit
	}

	items, total, err := q.store.ListMovements(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []repository.StockMovement{}
	}

	return &MovementPage{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int((total + int64(filter.Limit) - 1) / int64(filter.Limit)),
	}, nil
}

// Cell returns a single cell's committed state.
func (q *QueryService) Cell(ctx context.Context, productID, warehouseID string) (*repository.InventoryCell, error) {
	return q.store.GetCell(ctx, productID, warehouseID)
}
