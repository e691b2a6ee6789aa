package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/notify"
	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/pkg/actor"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/google/uuid"
)

// Reorder monitor defaults.
const (
	DefaultThrottleWindow   = time.Hour
	DefaultReorderQueueSize = 1024
)

// MonitorOptions tunes the reorder monitor.
type MonitorOptions struct {
	QueueSize      int
	ThrottleWindow time.Duration
}

// ReorderMonitor consumes cell keys enqueued after stock commits and raises
// low-stock alerts. One alert per cell per throttle window.
type ReorderMonitor struct {
	store       repository.Store
	mailer      Mailer
	broadcaster Broadcaster
	queue       chan repository.CellKey
	window      time.Duration
	now         func() time.Time
	logger      *logger.Logger

	mu        sync.Mutex
	lastAlert map[repository.CellKey]time.Time
}

// NewReorderMonitor creates a new reorder monitor. mailer and broadcaster may be nil.
func NewReorderMonitor(store repository.Store, mailer Mailer, broadcaster Broadcaster, opts MonitorOptions, log *logger.Logger) *ReorderMonitor {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultReorderQueueSize
	}
	if opts.ThrottleWindow <= 0 {
		opts.ThrottleWindow = DefaultThrottleWindow
	}
	return &ReorderMonitor{
		store:       store,
		mailer:      mailer,
		broadcaster: broadcaster,
		queue:       make(chan repository.CellKey, opts.QueueSize),
		window:      opts.ThrottleWindow,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      log.WithComponent("reorder_monitor"),
		lastAlert:   make(map[repository.CellKey]time.Time),
	}
}

// SetClock overrides the clock used for throttling and alert timestamps.
func (m *ReorderMonitor) SetClock(now func() time.Time) {
	m.now = now
}

// Enqueue schedules a check for key. It never blocks; a full queue drops the key.
func (m *ReorderMonitor) Enqueue(key repository.CellKey) bool {
	select {
	case m.queue <- key:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued checks.
func (m *ReorderMonitor) Pending() int {
	return len(m.queue)
}

// Run consumes the queue until ctx is done.
func (m *ReorderMonitor) Run(ctx context.Context) {
	m.logger.Info().Dur("throttle_window", m.window).Int("queue_size", cap(m.queue)).Msg("reorder monitor started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("reorder monitor stopped")
			return
		case key := <-m.queue:
			if _, err := m.Check(ctx, key); err != nil {
				m.logger.WithCell(key.ProductID, key.WarehouseID).Warn().Err(err).Msg("reorder check failed")
			}
		}
	}
}

// Check evaluates one cell. It returns the alert that was raised, or nil when
// the cell is healthy or throttled.
func (m *ReorderMonitor) Check(ctx context.Context, key repository.CellKey) (*repository.ReorderAlert, error) {
	cell, err := m.store.GetCell(ctx, key.ProductID, key.WarehouseID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	product, err := m.store.GetProduct(ctx, key.ProductID)
	if err != nil {
		return nil, err
	}

	level, quantity := repository.EffectiveReorder(cell, product)
	current := cell.Available
	if current > level {
		return nil, nil
	}

	alertType := repository.AlertLowStock
	if current <= 0 {
		alertType = repository.AlertOutOfStock
	}

	now := m.now()
	prev, ok := m.claim(key, now)
	if !ok {
		m.logger.WithCell(key.ProductID, key.WarehouseID).Debug().Msg("reorder alert throttled")
		return nil, nil
	}

	alert := &repository.ReorderAlert{
		ID:                 uuid.NewString(),
		ProductID:          key.ProductID,
		WarehouseID:        key.WarehouseID,
		OnHandAtTrigger:    cell.OnHand,
		AvailableAtTrigger: current,
		ReorderLevel:       level,
		SuggestedQuantity:  SuggestedQuantity(level, quantity, current),
		AlertType:          alertType,
		Status:             repository.AlertPending,
		CreatedAt:          now,
	}

	err = m.store.UnitOfWork(ctx, func(ctx context.Context, tx repository.Tx) error {
		existing, err := tx.FindPendingAlert(ctx, key.ProductID, key.WarehouseID)
		if err != nil {
			return err
		}
		if existing != nil {
			alert = existing
			return nil
		}
		return tx.InsertAlert(ctx, alert)
	})
	if err != nil {
		m.unclaim(key, now, prev)
		return nil, fmt.Errorf("record reorder alert: %w", err)
	}

	log := m.logger.WithCell(key.ProductID, key.WarehouseID)
	log.Info().
		Str("alert_id", alert.ID).
		Str("alert_type", string(alert.AlertType)).
		Int64("available", current).
		Int64("reorder_level", level).
		Msg("reorder alert raised")

	m.notify(ctx, alert, product, log)

	if m.broadcaster != nil {
		if err := m.broadcaster.BroadcastLowStockAlert(ctx, alert); err != nil {
			log.Warn().Err(err).Msg("failed to broadcast reorder alert")
		}
	}
	return alert, nil
}

func (m *ReorderMonitor) notify(ctx context.Context, alert *repository.ReorderAlert, product *repository.Product, log *logger.Logger) {
	if m.mailer == nil {
		return
	}

	managers, err := m.store.ListWarehouseManagers(ctx, alert.WarehouseID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to resolve warehouse managers")
		return
	}
	if len(managers) == 0 {
		log.Debug().Msg("no warehouse managers to notify")
		return
	}
	recipients := make([]string, 0, len(managers))
	for _, u := range managers {
		recipients = append(recipients, u.Email)
	}

	warehouseName := alert.WarehouseID
	if w, err := m.store.GetWarehouse(ctx, alert.WarehouseID); err == nil {
		warehouseName = w.Name
	}

	items := []notify.LowStockItem{{
		ProductID:         product.ID,
		SKU:               product.SKU,
		ProductName:       product.Name,
		OnHand:            alert.OnHandAtTrigger,
		Available:         alert.AvailableAtTrigger,
		ReorderLevel:      alert.ReorderLevel,
		SuggestedQuantity: alert.SuggestedQuantity,
		AlertType:         string(alert.AlertType),
	}}
	if err := m.mailer.SendLowStockAlert(ctx, recipients, items, warehouseName); err != nil {
		log.Warn().Err(err).Int("recipients", len(recipients)).Msg("failed to send low stock mail")
	}
}

// claim reserves the throttle slot for key at now. It fails when the last
// alert for key is inside the window.
func (m *ReorderMonitor) claim(key repository.CellKey, now time.Time) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, seen := m.lastAlert[key]
	if seen && now.Sub(prev) < m.window {
		return prev, false
	}
	m.lastAlert[key] = now
	return prev, true
}

func (m *ReorderMonitor) unclaim(key repository.CellKey, at, prev time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastAlert[key].Equal(at) {
		if prev.IsZero() {
			delete(m.lastAlert, key)
		} else {
			m.lastAlert[key] = prev
		}
	}
}

// PruneThrottle drops throttle entries older than the window and returns how
// many were removed.
func (m *ReorderMonitor) PruneThrottle() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, at := range m.lastAlert {
		if now.Sub(at) >= m.window {
			delete(m.lastAlert, key)
			removed++
		}
	}
	return removed
}

// ThrottleSize returns the number of keys currently tracked by the throttle.
func (m *ReorderMonitor) ThrottleSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lastAlert)
}

// SuggestedQuantity is the reorder quantity when one is configured, otherwise
// enough to bring the cell back to twice its reorder level.
func SuggestedQuantity(level, quantity, current int64) int64 {
	if quantity > 0 {
		return quantity
	}
	return max(2*level-current, 1)
}

// Acknowledge moves a pending alert to acknowledged.
func (m *ReorderMonitor) Acknowledge(ctx context.Context, id string) (*repository.ReorderAlert, error) {
	return m.transition(ctx, id, func(a *repository.ReorderAlert, by *string, at time.Time) error {
		if a.Status != repository.AlertPending {
			return alertConflict(a, "only pending alerts can be acknowledged")
		}
		a.Status = repository.AlertAcknowledged
		a.AcknowledgedBy = by
		a.AcknowledgedAt = &at
		return nil
	})
}

// Resolve closes a pending or acknowledged alert.
func (m *ReorderMonitor) Resolve(ctx context.Context, id string) (*repository.ReorderAlert, error) {
	return m.transition(ctx, id, resolveAlert)
}

// ListAlerts lists alerts newest first.
func (m *ReorderMonitor) ListAlerts(ctx context.Context, filter repository.AlertFilter) ([]repository.ReorderAlert, error) {
	return m.store.ListAlerts(ctx, filter)
}

// SweepResolved resolves open alerts whose cell has recovered above its
// reorder level. It returns the number of alerts resolved.
func (m *ReorderMonitor) SweepResolved(ctx context.Context) (int, error) {
	open, err := m.store.ListAlerts(ctx, repository.AlertFilter{
		Statuses: []repository.AlertStatus{repository.AlertPending, repository.AlertAcknowledged},
	})
	if err != nil {
		return 0, err
	}

	products := map[string]*repository.Product{}
	resolved := 0
	for i := range open {
		a := &open[i]
		if err := ctx.Err(); err != nil {
			return resolved, err
		}

		cell, err := m.store.GetCell(ctx, a.ProductID, a.WarehouseID)
		if err != nil {
			m.logger.WithCell(a.ProductID, a.WarehouseID).Warn().Err(err).Msg("sweep: failed to read cell")
			continue
		}
		product, ok := products[a.ProductID]
		if !ok {
			if product, err = m.store.GetProduct(ctx, a.ProductID); err != nil {
				m.logger.WithCell(a.ProductID, a.WarehouseID).Warn().Err(err).Msg("sweep: failed to read product")
				continue
			}
			products[a.ProductID] = product
		}

		level, _ := repository.EffectiveReorder(cell, product)
		if cell.Available <= level {
			continue
		}

		if _, err := m.transition(ctx, a.ID, resolveAlert); err != nil {
			if errors.Is(err, errors.ErrConflict) {
				continue
			}
			m.logger.Warn().Err(err).Str("alert_id", a.ID).Msg("sweep: failed to resolve alert")
			continue
		}
		resolved++
	}
	return resolved, nil
}

func (m *ReorderMonitor) transition(ctx context.Context, id string, fn func(a *repository.ReorderAlert, by *string, at time.Time) error) (*repository.ReorderAlert, error) {
	by := actor.FromContext(ctx).AuditID()
	var alert *repository.ReorderAlert
	err := m.store.UnitOfWork(ctx, func(ctx context.Context, tx repository.Tx) error {
		a, err := tx.LockAlert(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(a, by, m.now()); err != nil {
			return err
		}
		if err := tx.UpdateAlert(ctx, a); err != nil {
			return err
		}
		alert = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func resolveAlert(a *repository.ReorderAlert, by *string, at time.Time) error {
	if a.Status == repository.AlertResolved {
		return alertConflict(a, "alert is already resolved")
	}
	a.Status = repository.AlertResolved
	a.ResolvedBy = by
	a.ResolvedAt = &at
	return nil
}

func alertConflict(a *repository.ReorderAlert, message string) error {
	return errors.Conflict(message).
		WithDetails(map[string]string{"alert_id": a.ID, "status": string(a.Status)})
}
