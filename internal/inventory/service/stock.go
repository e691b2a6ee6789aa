package service

import (
	"context"
	"fmt"
	"time"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/costing"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/lease"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/ledger"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/pkg/actor"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/NandhanI20020/IMS-sub000/internal/inventory/service"

// MaxBulkBatchSize caps how many bulk items are processed per batch.
const MaxBulkBatchSize = 50

// DefaultSideEffectTimeout bounds the post-commit cache invalidation and
// broadcast, which run while the cell lease is held.
const DefaultSideEffectTimeout = 2 * time.Second

// Options tunes the stock services.
type Options struct {
	DefaultCostingMethod repository.CostingMethod
	BulkBatchSize        int
	OperationTimeout     time.Duration
	SideEffectTimeout    time.Duration
}

func (o Options) withDefaults() Options {
	if o.DefaultCostingMethod == "" {
		o.DefaultCostingMethod = repository.CostingAverage
	}
	if o.BulkBatchSize <= 0 || o.BulkBatchSize > MaxBulkBatchSize {
		o.BulkBatchSize = MaxBulkBatchSize
	}
	if o.SideEffectTimeout <= 0 {
		o.SideEffectTimeout = DefaultSideEffectTimeout
	}
	return o
}

// UpdateRequest is one stock mutation. Delta is signed and must agree with
// the movement type's direction.
type UpdateRequest struct {
	ProductID       string
	WarehouseID     string
	Delta           int64
	MovementType    repository.MovementType
	UnitCost        *decimal.Decimal
	Reference       *string
	Reason          *string
	Batch           *string
	CostingMethod   repository.CostingMethod
	PreventNegative bool

	// SkipMovement suppresses the ledger entry. Only internal bookkeeping
	// paths set it.
	SkipMovement bool

	// ReservationID consumes an active reservation on the same cell as part
	// of an outbound mutation.
	ReservationID *string
}

// Validate checks the request before any lock is taken.
func (r *UpdateRequest) Validate() error {
	if err := requireCell(r.ProductID, r.WarehouseID); err != nil {
		return err
	}

	sign := r.MovementType.Sign()
	switch {
	case sign == 0:
		return errors.Input(fmt.Sprintf("unknown movement type %q", r.MovementType))
	case r.Delta == 0:
		return errors.Input("quantity change must not be zero")
	case (r.Delta > 0) != (sign > 0):
		return errors.Input(fmt.Sprintf("quantity change %d does not match movement type %s", r.Delta, r.MovementType))
	}

	if r.UnitCost != nil && r.UnitCost.IsNegative() {
		return errors.Input("unit cost must not be negative")
	}
	if r.CostingMethod != "" {
		if _, err := repository.ParseCostingMethod(string(r.CostingMethod)); err != nil {
			return errors.Input(err.Error())
		}
	}
	if r.ReservationID != nil && r.Delta > 0 {
		return errors.Input("a reservation can only be consumed by an outbound movement")
	}
	return nil
}

// Key returns the cell the request targets.
func (r *UpdateRequest) Key() repository.CellKey {
	return repository.CellKey{ProductID: r.ProductID, WarehouseID: r.WarehouseID}
}

// StockUpdate is the committed result of a mutation.
type StockUpdate struct {
	Cell        *repository.InventoryCell `json:"cell"`
	Movement    *repository.StockMovement `json:"movement,omitempty"`
	Reservation *repository.Reservation   `json:"reservation,omitempty"`
}

// mutation carries the in-transaction state of one update through its stages.
type mutation struct {
	req         UpdateRequest
	method      repository.CostingMethod
	product     *repository.Product
	warehouse   *repository.Warehouse
	cell        *repository.InventoryCell
	prevOnHand  int64
	unitCost    decimal.Decimal
	totalCost   decimal.Decimal
	movement    *repository.StockMovement
	reservation *repository.Reservation
	now         time.Time
	auditID     *string
}

// hook runs inside the unit of work after on-hand has been updated and
// before the cell is saved.
type hook func(ctx context.Context, tx repository.Tx, m *mutation) error

// StockService is the stock mutator: every on-hand change goes through it.
type StockService struct {
	store       repository.Store
	leases      *lease.Table
	reorder     Enqueuer
	broadcaster Broadcaster
	cache       StatusCache
	opts        Options
	now         func() time.Time
	tracer      trace.Tracer
	logger      *logger.Logger
}

// NewStockService creates a new stock service. reorder, broadcaster and
// cache may be nil.
func NewStockService(
	store repository.Store,
	leases *lease.Table,
	reorder Enqueuer,
	broadcaster Broadcaster,
	cache StatusCache,
	opts Options,
	log *logger.Logger,
) *StockService {
	if leases == nil {
		leases = lease.NewTable()
	}
	return &StockService{
		store:       store,
		leases:      leases,
		reorder:     reorder,
		broadcaster: broadcaster,
		cache:       cache,
		opts:        opts.withDefaults(),
		now:         func() time.Time { return time.Now().UTC() },
		tracer:      otel.Tracer(tracerName),
		logger:      log.WithComponent("stock"),
	}
}

// SetClock overrides the clock used for movement timestamps.
func (s *StockService) SetClock(now func() time.Time) {
	s.now = now
}

// DefaultCostingMethod returns the method used when a request names none.
func (s *StockService) DefaultCostingMethod() repository.CostingMethod {
	return s.opts.DefaultCostingMethod
}

// UpdateStock applies one mutation atomically.
func (s *StockService) UpdateStock(ctx context.Context, req UpdateRequest) (*StockUpdate, error) {
	var h hook
	if req.ReservationID != nil {
		h = consumeReservation(*req.ReservationID)
	}
	return s.mutate(ctx, "inventory.update_stock", req, h)
}

// AdjustKind is the direction of a manual adjustment.
type AdjustKind string

const (
	AdjustIncrease AdjustKind = "increase"
	AdjustDecrease AdjustKind = "decrease"
)

// AdjustRequest is a manual stock correction.
type AdjustRequest struct {
	ProductID     string
	WarehouseID   string
	Kind          AdjustKind
	Quantity      int64
	Reason        *string
	Reference     *string
	UnitCost      *decimal.Decimal
	CostingMethod repository.CostingMethod
}

// Adjust posts an adjustment_increase or a guarded adjustment_decrease.
func (s *StockService) Adjust(ctx context.Context, req AdjustRequest) (*StockUpdate, error) {
	if req.Quantity <= 0 {
		return nil, errors.Input("adjustment quantity must be positive")
	}

	update := UpdateRequest{
		ProductID:     req.ProductID,
		WarehouseID:   req.WarehouseID,
		Reference:     req.Reference,
		Reason:        req.Reason,
		UnitCost:      req.UnitCost,
		CostingMethod: req.CostingMethod,
	}

	switch req.Kind {
	case AdjustIncrease:
		update.Delta = req.Quantity
		update.MovementType = repository.MovementAdjustmentIncrease
	case AdjustDecrease:
		update.Delta = -req.Quantity
		update.MovementType = repository.MovementAdjustmentDecrease
		update.PreventNegative = true
	default:
		return nil, errors.Input(fmt.Sprintf("unknown adjustment kind %q", req.Kind))
	}

	return s.mutate(ctx, "inventory.adjust", update, nil)
}

// BulkResult is the outcome of one bulk item.
type BulkResult struct {
	Index     int          `json:"index"`
	Success   bool         `json:"success"`
	Update    *StockUpdate `json:"update,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorCode string       `json:"error_code,omitempty"`
}

// BulkUpdate applies items grouped by warehouse in batches. Each item runs in
// its own unit of work; failures do not affect other items. Results are
// returned in input order. Items not reached before ctx is done fail with
// the context error.
func (s *StockService) BulkUpdate(ctx context.Context, items []UpdateRequest) []BulkResult {
	results := make([]BulkResult, len(items))
	for i := range results {
		results[i].Index = i
	}

	var order []string
	groups := map[string][]int{}
	for i, item := range items {
		if _, ok := groups[item.WarehouseID]; !ok {
			order = append(order, item.WarehouseID)
		}
		groups[item.WarehouseID] = append(groups[item.WarehouseID], i)
	}

	for _, warehouseID := range order {
		indexes := groups[warehouseID]
		for start := 0; start < len(indexes); start += s.opts.BulkBatchSize {
			end := min(start+s.opts.BulkBatchSize, len(indexes))
			s.logger.Debug().
				Str("warehouse_id", warehouseID).
				Int("batch_start", start).
				Int("batch_size", end-start).
				Msg("processing bulk batch")

			for _, idx := range indexes[start:end] {
				if err := ctx.Err(); err != nil {
					results[idx].Error = err.Error()
					continue
				}
				update, err := s.UpdateStock(ctx, items[idx])
				if err != nil {
					results[idx].Error = err.Error()
					results[idx].ErrorCode = errors.Code(err)
					continue
				}
				results[idx].Success = true
				results[idx].Update = update
			}
		}
	}
	return results
}

// mutate runs the full update pipeline under the cell lease.
func (s *StockService) mutate(ctx context.Context, spanName string, req UpdateRequest, h hook) (*StockUpdate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.Key()
	release, ok := s.leases.TryAcquire(key.String())
	if !ok {
		return nil, errors.ConcurrentUpdate(key.String())
	}
	defer release()

	ctx, span := s.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("inventory.product_id", req.ProductID),
		attribute.String("inventory.warehouse_id", req.WarehouseID),
		attribute.String("inventory.movement_type", string(req.MovementType)),
		attribute.Int64("inventory.delta", req.Delta),
	))
	defer span.End()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	method := req.CostingMethod
	if method == "" {
		method = s.opts.DefaultCostingMethod
	}

	m := &mutation{
		req:     req,
		method:  method,
		now:     s.now(),
		auditID: actor.FromContext(ctx).AuditID(),
	}

	err := s.store.UnitOfWork(ctx, func(ctx context.Context, tx repository.Tx) error {
		return s.apply(ctx, tx, m, h)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := &StockUpdate{Cell: m.cell, Movement: m.movement, Reservation: m.reservation}
	s.afterCommit(ctx, result.Cell, result.Movement)
	return result, nil
}

// apply is steps 2 through 8 of a mutation, inside the unit of work.
func (s *StockService) apply(ctx context.Context, tx repository.Tx, m *mutation, h hook) error {
	var err error
	if m.product, err = tx.GetProduct(ctx, m.req.ProductID); err != nil {
		return err
	}
	if m.warehouse, err = tx.GetWarehouse(ctx, m.req.WarehouseID); err != nil {
		return err
	}
	if m.cell, err = tx.LockCell(ctx, m.req.ProductID, m.req.WarehouseID); err != nil {
		return err
	}

	m.prevOnHand = m.cell.OnHand
	next := m.prevOnHand + m.req.Delta
	if m.req.PreventNegative && next < 0 {
		return errors.InsufficientStock(m.prevOnHand, -m.req.Delta)
	}

	if m.req.Delta > 0 {
		err = s.costInbound(ctx, tx, m)
	} else {
		err = s.costOutbound(ctx, tx, m)
	}
	if err != nil {
		return err
	}

	m.cell.OnHand = next

	if h != nil {
		if err := h(ctx, tx, m); err != nil {
			return err
		}
	}

	m.cell.RecomputeAvailable()
	at := m.now
	m.cell.LastMovementAt = &at
	m.cell.UpdatedBy = m.auditID

	if err := tx.SaveCell(ctx, m.cell); err != nil {
		return err
	}

	if m.req.SkipMovement {
		return nil
	}

	m.movement, err = ledger.Append(ctx, tx, ledger.Entry{
		ProductID:    m.req.ProductID,
		WarehouseID:  m.req.WarehouseID,
		MovementType: m.req.MovementType,
		Quantity:     abs(m.req.Delta),
		UnitCost:     m.unitCost,
		TotalCost:    m.totalCost,
		PrevOnHand:   m.prevOnHand,
		NewOnHand:    m.cell.OnHand,
		Reference:    m.req.Reference,
		Reason:       m.req.Reason,
		Batch:        m.req.Batch,
		CreatedBy:    m.auditID,
		At:           m.now,
	})
	return err
}

func (s *StockService) costInbound(ctx context.Context, tx repository.Tx, m *mutation) error {
	layers, err := tx.ListLayers(ctx, m.req.ProductID, m.req.WarehouseID)
	if err != nil {
		return err
	}

	unitCost := m.product.CostPrice
	if m.req.UnitCost != nil {
		unitCost = *m.req.UnitCost
	}

	plan, err := costing.PlanInbound(costing.InboundInput{
		Layers:          layers,
		Quantity:        m.req.Delta,
		UnitCost:        unitCost,
		OnHand:          m.prevOnHand,
		WeightedAvgCost: m.cell.WeightedAvgCost,
		Fallback:        m.product.CostPrice,
	})
	if err != nil {
		return err
	}

	if plan.LayerQuantity > 0 {
		layer := &repository.CostLayer{
			ProductID:         m.req.ProductID,
			WarehouseID:       m.req.WarehouseID,
			UnitCost:          plan.UnitCost,
			OriginalQuantity:  plan.LayerQuantity,
			RemainingQuantity: plan.LayerQuantity,
			CreatedAt:         m.now,
		}
		if err := tx.InsertLayer(ctx, layer); err != nil {
			return err
		}
	}

	m.cell.WeightedAvgCost = plan.WeightedAvgCost
	m.unitCost = plan.UnitCost
	m.totalCost = plan.TotalCost
	return nil
}

func (s *StockService) costOutbound(ctx context.Context, tx repository.Tx, m *mutation) error {
	layers, err := tx.ListLayers(ctx, m.req.ProductID, m.req.WarehouseID)
	if err != nil {
		return err
	}

	plan, err := costing.PlanOutbound(costing.OutboundInput{
		Layers:          layers,
		Quantity:        -m.req.Delta,
		Method:          m.method,
		OnHand:          m.prevOnHand,
		WeightedAvgCost: m.cell.WeightedAvgCost,
		Fallback:        m.product.CostPrice,
	})
	if err != nil {
		return err
	}

	for _, d := range plan.Draws {
		if d.Exhausted() {
			err = tx.DeleteLayer(ctx, d.LayerID)
		} else {
			err = tx.UpdateLayerRemaining(ctx, d.LayerID, d.Remaining)
		}
		if err != nil {
			return err
		}
	}

	if plan.Untracked > 0 {
		s.logger.WithCell(m.req.ProductID, m.req.WarehouseID).Debug().
			Int64("untracked", plan.Untracked).
			Str("fallback_cost", m.product.CostPrice.String()).
			Msg("outbound priced at product cost for untracked stock")
	}

	m.unitCost = plan.UnitCost
	m.totalCost = plan.TotalCost
	return nil
}

// consumeReservation marks an active reservation on the mutated cell consumed
// and releases its hold.
func consumeReservation(id string) hook {
	return func(ctx context.Context, tx repository.Tx, m *mutation) error {
		r, err := tx.LockReservation(ctx, id)
		if err != nil {
			return err
		}
		if r.Key() != m.cell.Key() {
			return errors.Input("reservation belongs to a different stock cell")
		}
		if r.Status != repository.ReservationActive {
			return errors.Conflict(fmt.Sprintf("reservation is %s", r.Status))
		}

		m.cell.Reserved = max(m.cell.Reserved-r.Quantity, 0)

		at := m.now
		r.Status = repository.ReservationConsumed
		r.ConsumedAt = &at
		r.ClosedBy = m.auditID
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		m.reservation = r
		return nil
	}
}

// afterCommit runs the best-effort side effects of a committed change. It is
// called while the cell lease is still held so per-key events keep commit order.
func (s *StockService) afterCommit(ctx context.Context, cell *repository.InventoryCell, movement *repository.StockMovement) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.SideEffectTimeout)
	defer cancel()
	log := s.logger.WithCell(cell.ProductID, cell.WarehouseID)

	if s.reorder != nil && !s.reorder.Enqueue(cell.Key()) {
		log.Warn().Msg("reorder queue full, check dropped")
	}

	if s.cache != nil {
		if err := s.cache.InvalidateWarehouse(ctx, cell.WarehouseID); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate status cache")
		}
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastInventoryUpdate(ctx, cell, movement); err != nil {
			log.Warn().Err(err).Msg("failed to broadcast inventory update")
		}
	}
}

func (s *StockService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.OperationTimeout)
}

func requireCell(productID, warehouseID string) error {
	details := map[string]string{}
	if productID == "" {
		details["product_id"] = "required"
	}
	if warehouseID == "" {
		details["warehouse_id"] = "required"
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
