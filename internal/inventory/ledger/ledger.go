// Package ledger appends stock movements and checks ledger continuity.
package ledger

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Writer is the part of a unit of work the ledger writes through.
type Writer interface {
	InsertMovement(ctx context.Context, m *repository.StockMovement) error
}

// Entry is a movement about to be recorded.
type Entry struct {
	ProductID    string
	WarehouseID  string
	MovementType repository.MovementType
	Quantity     int64
	UnitCost     decimal.Decimal
	TotalCost    decimal.Decimal
	PrevOnHand   int64
	NewOnHand    int64
	Reference    *string
	Reason       *string
	Batch        *string
	CreatedBy    *string
	At           time.Time
}

// Validate checks the entry against its movement type.
func (e Entry) Validate() error {
	sign := e.MovementType.Sign()
	if sign == 0 {
		return errors.Input(fmt.Sprintf("unknown movement type %q", e.MovementType))
	}
	if e.Quantity <= 0 {
		return errors.Input("movement quantity must be positive")
	}
	if e.PrevOnHand+sign*e.Quantity != e.NewOnHand {
		return errors.InvariantViolation(fmt.Sprintf(
			"ledger continuity broken: %d %+d != %d", e.PrevOnHand, sign*e.Quantity, e.NewOnHand))
	}
	return nil
}

// Append validates e and writes it. Any write failure is returned as an
// InvariantViolation so the enclosing unit of work rolls back.
func Append(ctx context.Context, w Writer, e Entry) (*repository.StockMovement, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	m := &repository.StockMovement{
		ID:           uuid.NewString(),
		ProductID:    e.ProductID,
		WarehouseID:  e.WarehouseID,
		MovementType: e.MovementType,
		Quantity:     e.Quantity,
		UnitCost:     e.UnitCost,
		TotalCost:    e.TotalCost,
		PrevOnHand:   e.PrevOnHand,
		NewOnHand:    e.NewOnHand,
		Reference:    e.Reference,
		Reason:       e.Reason,
		Batch:        e.Batch,
		CreatedBy:    e.CreatedBy,
		CreatedAt:    e.At,
	}

	if err := w.InsertMovement(ctx, m); err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errors.InvariantViolation("ledger write failed").
			WithDetails(map[string]string{"cause": err.Error()})
	}
	return m, nil
}

// CheckContinuity verifies movements of one cell. Order of the input does
// not matter; movements are checked in sequence order.
func CheckContinuity(movements []repository.StockMovement) error {
	sorted := append([]repository.StockMovement(nil), movements...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	for i, m := range sorted {
		sign := m.MovementType.Sign()
		if m.NewOnHand-m.PrevOnHand != sign*m.Quantity {
			return fmt.Errorf("movement %d (seq %d): %d -> %d does not match %s of %d",
				i, m.Seq, m.PrevOnHand, m.NewOnHand, m.MovementType, m.Quantity)
		}
		if i > 0 && sorted[i-1].NewOnHand != m.PrevOnHand {
			return fmt.Errorf("movement seq %d starts at %d, previous ended at %d",
				m.Seq, m.PrevOnHand, sorted[i-1].NewOnHand)
		}
	}
	return nil
}
