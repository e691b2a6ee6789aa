package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/NandhanI20020/IMS-sub000/pkg/actor"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
)

// MemoryStore is an in-process Store. A unit of work holds the store's write
// lock for its whole duration and restores a snapshot when fn fails, so it
// behaves like a serializable database with row locks. It backs unit tests
// and local development without Postgres.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

type memState struct {
	products     map[string]Product
	warehouses   map[string]Warehouse
	cells        map[CellKey]InventoryCell
	layers       map[CellKey][]CostLayer
	movements    []StockMovement
	reservations map[string]Reservation
	alerts       map[string]ReorderAlert
	transfers    map[string]StockTransfer
	orders       map[string]PurchaseOrder
	users        map[string]CachedUser

	nextLayerID int64
	nextSeq     int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			products:     make(map[string]Product),
			warehouses:   make(map[string]Warehouse),
			cells:        make(map[CellKey]InventoryCell),
			layers:       make(map[CellKey][]CostLayer),
			reservations: make(map[string]Reservation),
			alerts:       make(map[string]ReorderAlert),
			transfers:    make(map[string]StockTransfer),
			orders:       make(map[string]PurchaseOrder),
			users:        make(map[string]CachedUser),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source used for created_at/updated_at.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (st *memState) clone() *memState {
	c := &memState{
		products:     make(map[string]Product, len(st.products)),
		warehouses:   make(map[string]Warehouse, len(st.warehouses)),
		cells:        make(map[CellKey]InventoryCell, len(st.cells)),
		layers:       make(map[CellKey][]CostLayer, len(st.layers)),
		movements:    append([]StockMovement(nil), st.movements...),
		reservations: make(map[string]Reservation, len(st.reservations)),
		alerts:       make(map[string]ReorderAlert, len(st.alerts)),
		transfers:    make(map[string]StockTransfer, len(st.transfers)),
		orders:       make(map[string]PurchaseOrder, len(st.orders)),
		users:        make(map[string]CachedUser, len(st.users)),
		nextLayerID:  st.nextLayerID,
		nextSeq:      st.nextSeq,
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.warehouses {
		c.warehouses[k] = v
	}
	for k, v := range st.cells {
		c.cells[k] = v
	}
	for k, v := range st.layers {
		c.layers[k] = append([]CostLayer(nil), v...)
	}
	for k, v := range st.reservations {
		c.reservations[k] = v
	}
	for k, v := range st.alerts {
		c.alerts[k] = v
	}
	for k, v := range st.transfers {
		c.transfers[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	return c
}

func copyOrder(po PurchaseOrder) PurchaseOrder {
	po.Lines = append([]PurchaseOrderLine(nil), po.Lines...)
	return po
}

// Seeding helpers. Catalogue data is owned by other services in production.

func (s *MemoryStore) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

func (s *MemoryStore) AddWarehouse(w Warehouse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.warehouses[w.ID] = w
}

func (s *MemoryStore) AddPurchaseOrder(po PurchaseOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range po.Lines {
		po.Lines[i].PurchaseOrderID = po.ID
	}
	s.state.orders[po.ID] = copyOrder(po)
}

// PutCell stores a cell as-is, e.g. a legacy cell without cost layers.
func (s *MemoryStore) PutCell(cell InventoryCell) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.cells[cell.Key()] = cell
}

// UnitOfWork runs fn under the store lock and rolls back on error or cancellation.
func (s *MemoryStore) UnitOfWork(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	tx := &memTx{st: s.state, now: s.now}

	if err := fn(ctx, tx); err != nil {
		s.state = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Reader

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.product(id)
}

func (s *MemoryStore) GetWarehouse(ctx context.Context, id string) (*Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.warehouse(id)
}

func (s *MemoryStore) GetCell(ctx context.Context, productID, warehouseID string) (*InventoryCell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cell, ok := s.state.cells[CellKey{productID, warehouseID}]
	if !ok {
		return nil, errors.NotFound("stock cell")
	}
	return &cell, nil
}

func (s *MemoryStore) ListCellViews(ctx context.Context, filter CellFilter) ([]CellView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var views []CellView
	for key, cell := range s.state.cells {
		if filter.WarehouseID != "" && key.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.ProductID != "" && key.ProductID != filter.ProductID {
			continue
		}
		p := s.state.products[key.ProductID]
		w := s.state.warehouses[key.WarehouseID]
		if search != "" && !strings.Contains(strings.ToLower(p.SKU), search) && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		views = append(views, CellView{
			InventoryCell:          cell,
			SKU:                    p.SKU,
			ProductName:            p.Name,
			CostPrice:              p.CostPrice,
			SellingPrice:           p.SellingPrice,
			ProductReorderLevel:    p.ReorderLevel,
			ProductReorderQuantity: p.ReorderQuantity,
			WarehouseName:          w.Name,
		})
	}

	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		if a.WarehouseName != b.WarehouseName {
			return a.WarehouseName < b.WarehouseName
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.WarehouseID < b.WarehouseID
	})

	if filter.Limit > 0 {
		views = window(views, filter.Offset, filter.Limit)
	}
	return views, nil
}

func (s *MemoryStore) ListLayers(ctx context.Context, productID, warehouseID string) ([]CostLayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.sortedLayers(CellKey{productID, warehouseID}), nil
}

func (s *MemoryStore) ListLayersByWarehouse(ctx context.Context, warehouseID string) ([]CostLayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var layers []CostLayer
	for key := range s.state.layers {
		if warehouseID == "" || key.WarehouseID == warehouseID {
			layers = append(layers, s.state.sortedLayers(key)...)
		}
	}
	sort.SliceStable(layers, func(i, j int) bool {
		if layers[i].ProductID != layers[j].ProductID {
			return layers[i].ProductID < layers[j].ProductID
		}
		return layers[i].WarehouseID < layers[j].WarehouseID
	})
	return layers, nil
}

func (s *MemoryStore) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []StockMovement
	for i := len(s.state.movements) - 1; i >= 0; i-- {
		m := s.state.movements[i]
		switch {
		case filter.ProductID != "" && m.ProductID != filter.ProductID,
			filter.WarehouseID != "" && m.WarehouseID != filter.WarehouseID,
			filter.MovementType != "" && m.MovementType != filter.MovementType,
			filter.From != nil && m.CreatedAt.Before(*filter.From),
			filter.To != nil && !m.CreatedAt.Before(*filter.To):
			continue
		}
		matched = append(matched, m)
	}

	total := int64(len(matched))
	return window(matched, filter.Offset(), filter.Limit), total, nil
}

func (s *MemoryStore) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.state.reservations[id]
	if !ok {
		return nil, errors.NotFound("reservation")
	}
	return &res, nil
}

func (s *MemoryStore) GetTransfer(ctx context.Context, id string) (*StockTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.transfers[id]
	if !ok {
		return nil, errors.NotFound("stock transfer")
	}
	return &t, nil
}

// ListTransfers returns every transfer record, oldest first.
func (s *MemoryStore) ListTransfers() []StockTransfer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StockTransfer, 0, len(s.state.transfers))
	for _, t := range s.state.transfers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) GetAlert(ctx context.Context, id string) (*ReorderAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.alerts[id]
	if !ok {
		return nil, errors.NotFound("reorder alert")
	}
	return &a, nil
}

func (s *MemoryStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]ReorderAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var alerts []ReorderAlert
	for _, a := range s.state.alerts {
		if filter.WarehouseID != "" && a.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.ProductID != "" && a.ProductID != filter.ProductID {
			continue
		}
		if filter.AlertType != "" && a.AlertType != filter.AlertType {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, a.Status) {
			continue
		}
		alerts = append(alerts, a)
	}

	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].ID < alerts[j].ID
	})

	if filter.Limit > 0 {
		alerts = window(alerts, 0, filter.Limit)
	}
	return alerts, nil
}

func (s *MemoryStore) GetPurchaseOrder(ctx context.Context, id string) (*PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	po, ok := s.state.orders[id]
	if !ok {
		return nil, errors.NotFound("purchase order")
	}
	po = copyOrder(po)
	return &po, nil
}

func (s *MemoryStore) ListWarehouseManagers(ctx context.Context, warehouseID string) ([]CachedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []CachedUser
	for _, u := range s.state.users {
		if !u.IsActive || u.WarehouseID == nil || *u.WarehouseID != warehouseID {
			continue
		}
		if u.RoleName == actor.RoleAdmin || u.RoleName == actor.RoleManager {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// UserCache

func (s *MemoryStore) GetUser(ctx context.Context, userID string) (*CachedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.users[userID]
	if !ok {
		return nil, errors.NotFound("user")
	}
	return &u, nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, u *CachedUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.UserID] = *u
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.users, userID)
	return nil
}

// memTx operates directly on the live state; UnitOfWork owns rollback.
type memTx struct {
	st  *memState
	now func() time.Time
}

func (t *memTx) GetProduct(ctx context.Context, id string) (*Product, error) {
	return t.st.product(id)
}

func (t *memTx) GetWarehouse(ctx context.Context, id string) (*Warehouse, error) {
	return t.st.warehouse(id)
}

func (t *memTx) LockCell(ctx context.Context, productID, warehouseID string) (*InventoryCell, error) {
	if _, ok := t.st.products[productID]; !ok {
		return nil, errors.NotFound("product")
	}
	if _, ok := t.st.warehouses[warehouseID]; !ok {
		return nil, errors.NotFound("warehouse")
	}

	key := CellKey{productID, warehouseID}
	cell, ok := t.st.cells[key]
	if !ok {
		now := t.now()
		cell = InventoryCell{ProductID: productID, WarehouseID: warehouseID, CreatedAt: now, UpdatedAt: now}
		t.st.cells[key] = cell
	}
	return &cell, nil
}

func (t *memTx) SaveCell(ctx context.Context, cell *InventoryCell) error {
	key := cell.Key()
	if _, ok := t.st.cells[key]; !ok {
		return errors.NotFound("stock cell")
	}
	if cell.Reserved < 0 {
		return errors.InvariantViolation("reserved quantity would become negative")
	}
	if want := max(cell.OnHand-cell.Reserved, 0); cell.Available != want {
		return errors.InvariantViolation("available must equal on hand minus reserved")
	}
	if cell.WeightedAvgCost.IsNegative() {
		return errors.InvariantViolation("weighted average cost must not be negative")
	}
	cell.UpdatedAt = t.now()
	t.st.cells[key] = *cell
	return nil
}

func (t *memTx) ListLayers(ctx context.Context, productID, warehouseID string) ([]CostLayer, error) {
	return t.st.sortedLayers(CellKey{productID, warehouseID}), nil
}

func (t *memTx) InsertLayer(ctx context.Context, layer *CostLayer) error {
	if layer.OriginalQuantity <= 0 || layer.RemainingQuantity < 0 {
		return errors.Input("cost layer quantities must be positive")
	}
	key := CellKey{layer.ProductID, layer.WarehouseID}
	if _, ok := t.st.cells[key]; !ok {
		return errors.NotFound("referenced record")
	}
	t.st.nextLayerID++
	layer.ID = t.st.nextLayerID
	if layer.CreatedAt.IsZero() {
		layer.CreatedAt = t.now()
	}
	t.st.layers[key] = append(t.st.layers[key], *layer)
	return nil
}

func (t *memTx) UpdateLayerRemaining(ctx context.Context, id int64, remaining int64) error {
	if remaining < 0 {
		return errors.InvariantViolation("cost layer remaining quantity would become negative")
	}
	for key, layers := range t.st.layers {
		for i := range layers {
			if layers[i].ID == id {
				layers[i].RemainingQuantity = remaining
				t.st.layers[key] = layers
				return nil
			}
		}
	}
	return errors.NotFound("cost layer")
}

func (t *memTx) DeleteLayer(ctx context.Context, id int64) error {
	for key, layers := range t.st.layers {
		for i := range layers {
			if layers[i].ID == id {
				t.st.layers[key] = append(layers[:i:i], layers[i+1:]...)
				if len(t.st.layers[key]) == 0 {
					delete(t.st.layers, key)
				}
				return nil
			}
		}
	}
	return errors.NotFound("cost layer")
}

func (t *memTx) InsertMovement(ctx context.Context, m *StockMovement) error {
	if m.Quantity <= 0 {
		return errors.Input("quantity must be positive")
	}
	if abs(m.NewOnHand-m.PrevOnHand) != m.Quantity {
		return errors.InvariantViolation("movement quantities do not match the on hand change")
	}
	if _, ok := t.st.cells[CellKey{m.ProductID, m.WarehouseID}]; !ok {
		return errors.NotFound("referenced record")
	}
	t.st.nextSeq++
	m.Seq = t.st.nextSeq
	if m.CreatedAt.IsZero() {
		m.CreatedAt = t.now()
	}
	t.st.movements = append(t.st.movements, *m)
	return nil
}

func (t *memTx) InsertReservation(ctx context.Context, r *Reservation) error {
	if r.Quantity <= 0 {
		return errors.Input("quantity must be positive")
	}
	if _, ok := t.st.reservations[r.ID]; ok {
		return errors.Conflict("a record with these values already exists")
	}
	t.st.reservations[r.ID] = *r
	return nil
}

func (t *memTx) LockReservation(ctx context.Context, id string) (*Reservation, error) {
	r, ok := t.st.reservations[id]
	if !ok {
		return nil, errors.NotFound("reservation")
	}
	return &r, nil
}

func (t *memTx) UpdateReservation(ctx context.Context, r *Reservation) error {
	if _, ok := t.st.reservations[r.ID]; !ok {
		return errors.NotFound("reservation")
	}
	t.st.reservations[r.ID] = *r
	return nil
}

func (t *memTx) InsertTransfer(ctx context.Context, st *StockTransfer) error {
	if st.FromWarehouseID == st.ToWarehouseID {
		return errors.SameWarehouseTransfer()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = t.now()
	}
	t.st.transfers[st.ID] = *st
	return nil
}

func (t *memTx) FindPendingAlert(ctx context.Context, productID, warehouseID string) (*ReorderAlert, error) {
	for _, a := range t.st.alerts {
		if a.ProductID == productID && a.WarehouseID == warehouseID && a.Status == AlertPending {
			return &a, nil
		}
	}
	return nil, nil
}

func (t *memTx) InsertAlert(ctx context.Context, a *ReorderAlert) error {
	if a.Status == AlertPending {
		if existing, _ := t.FindPendingAlert(ctx, a.ProductID, a.WarehouseID); existing != nil {
			return errors.Conflict("a record with these values already exists")
		}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = t.now()
	}
	t.st.alerts[a.ID] = *a
	return nil
}

func (t *memTx) LockAlert(ctx context.Context, id string) (*ReorderAlert, error) {
	a, ok := t.st.alerts[id]
	if !ok {
		return nil, errors.NotFound("reorder alert")
	}
	return &a, nil
}

func (t *memTx) UpdateAlert(ctx context.Context, a *ReorderAlert) error {
	if _, ok := t.st.alerts[a.ID]; !ok {
		return errors.NotFound("reorder alert")
	}
	t.st.alerts[a.ID] = *a
	return nil
}

func (t *memTx) LockPurchaseOrder(ctx context.Context, id string) (*PurchaseOrder, error) {
	po, ok := t.st.orders[id]
	if !ok {
		return nil, errors.NotFound("purchase order")
	}
	po = copyOrder(po)
	return &po, nil
}

func (t *memTx) UpdatePurchaseOrderLine(ctx context.Context, line *PurchaseOrderLine) error {
	po, ok := t.st.orders[line.PurchaseOrderID]
	if !ok {
		return errors.NotFound("purchase order line")
	}
	for i := range po.Lines {
		if po.Lines[i].ID != line.ID {
			continue
		}
		if line.QuantityReceived > po.Lines[i].QuantityOrdered {
			return errors.Input("received quantity exceeds ordered quantity")
		}
		po.Lines[i].QuantityReceived = line.QuantityReceived
		t.st.orders[po.ID] = po
		return nil
	}
	return errors.NotFound("purchase order line")
}

func (t *memTx) UpdatePurchaseOrder(ctx context.Context, po *PurchaseOrder) error {
	existing, ok := t.st.orders[po.ID]
	if !ok {
		return errors.NotFound("purchase order")
	}
	existing.Status = po.Status
	existing.ReceivedAt = po.ReceivedAt
	existing.UpdatedBy = po.UpdatedBy
	existing.UpdatedAt = t.now()
	po.UpdatedAt = existing.UpdatedAt
	t.st.orders[po.ID] = existing
	return nil
}

// helpers

func (st *memState) product(id string) (*Product, error) {
	p, ok := st.products[id]
	if !ok {
		return nil, errors.NotFound("product")
	}
	return &p, nil
}

func (st *memState) warehouse(id string) (*Warehouse, error) {
	w, ok := st.warehouses[id]
	if !ok {
		return nil, errors.NotFound("warehouse")
	}
	return &w, nil
}

func (st *memState) sortedLayers(key CellKey) []CostLayer {
	layers := append([]CostLayer(nil), st.layers[key]...)
	sort.SliceStable(layers, func(i, j int) bool {
		if !layers[i].CreatedAt.Equal(layers[j].CreatedAt) {
			return layers[i].CreatedAt.Before(layers[j].CreatedAt)
		}
		return layers[i].ID < layers[j].ID
	})
	return layers
}

func containsStatus(statuses []AlertStatus, s AlertStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

var (
	_ Store     = (*MemoryStore)(nil)
	_ UserCache = (*MemoryStore)(nil)
	_ Tx        = (*memTx)(nil)
)
