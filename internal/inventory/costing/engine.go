// Package costing prices stock movements and keeps cost layers consistent.
//
// The functions here are pure: they take the current layers of a cell and
// return a plan that the caller applies inside its unit of work.
package costing

import (
	"sort"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/shopspring/decimal"
)

// CostScale is the number of decimal places kept for unit costs.
const CostScale = 4

// Draw is the consumption of quantity units from one layer.
type Draw struct {
	LayerID   int64           `json:"layer_id"`
	Quantity  int64           `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Remaining int64           `json:"remaining"`
}

// Exhausted reports whether the layer is empty after the draw.
func (d Draw) Exhausted() bool {
	return d.Remaining == 0
}

// OutboundPlan is the priced result of an outbound movement.
type OutboundPlan struct {
	Quantity  int64
	UnitCost  decimal.Decimal
	TotalCost decimal.Decimal

	// Draws lists layer consumptions in consumption order.
	Draws []Draw

	// Untracked is the part of Quantity priced at the fallback cost because
	// no layer covers it (legacy stock received before cost tracking).
	Untracked int64
}

// InboundPlan is the result of an inbound movement.
type InboundPlan struct {
	Quantity  int64
	UnitCost  decimal.Decimal
	TotalCost decimal.Decimal

	// LayerQuantity is the size of the new layer. Units that only fill a
	// negative on-hand position do not open a layer.
	LayerQuantity int64

	WeightedAvgCost decimal.Decimal
}

// OutboundInput describes the cell state an outbound draw is planned against.
type OutboundInput struct {
	Layers   []repository.CostLayer
	Quantity int64
	Method   repository.CostingMethod

	// OnHand is the cell's on-hand before the movement.
	OnHand int64

	// WeightedAvgCost prices AVERAGE draws.
	WeightedAvgCost decimal.Decimal

	// Fallback prices units not covered by any layer, normally product.cost_price.
	Fallback decimal.Decimal
}

// PlanOutbound consumes in.Quantity across the layers according to the
// costing method.
//
// FIFO draws oldest first and LIFO newest first, ties broken by layer id.
// AVERAGE prices the whole quantity at the weighted average cost and still
// decrements layers oldest first so layer totals track on-hand.
//
// A cell without layers is priced entirely at the fallback cost. Units the
// layers do not cover (legacy on-hand, or an overdraft when the caller allows
// negative stock) are priced at the fallback as well.
func PlanOutbound(in OutboundInput) (*OutboundPlan, error) {
	if in.Quantity <= 0 {
		return nil, errors.Input("outbound quantity must be positive")
	}

	method := in.Method
	if method == "" {
		method = repository.CostingAverage
	}

	var tracked int64
	for _, l := range in.Layers {
		tracked += l.RemainingQuantity
	}

	if tracked == 0 {
		return flat(in.Quantity, in.Fallback, in.Quantity), nil
	}

	order := Order(in.Layers, method)
	draws, shortfall := consume(order, in.Quantity)

	if method == repository.CostingAverage {
		plan := flat(in.Quantity, in.WeightedAvgCost, shortfall)
		plan.Draws = draws
		return plan, nil
	}

	total := in.Fallback.Mul(decimal.NewFromInt(shortfall))
	for _, d := range draws {
		total = total.Add(d.UnitCost.Mul(decimal.NewFromInt(d.Quantity)))
	}

	return &OutboundPlan{
		Quantity:  in.Quantity,
		UnitCost:  total.Div(decimal.NewFromInt(in.Quantity)).Round(CostScale),
		TotalCost: total,
		Draws:     draws,
		Untracked: shortfall,
	}, nil
}

func flat(qty int64, unitCost decimal.Decimal, untracked int64) *OutboundPlan {
	unitCost = unitCost.Round(CostScale)
	return &OutboundPlan{
		Quantity:  qty,
		UnitCost:  unitCost,
		TotalCost: unitCost.Mul(decimal.NewFromInt(qty)),
		Untracked: untracked,
	}
}

// consume walks layers in order and returns the draws and the uncovered quantity.
func consume(layers []repository.CostLayer, qty int64) ([]Draw, int64) {
	var draws []Draw
	for _, l := range layers {
		if qty == 0 {
			break
		}
		if l.RemainingQuantity <= 0 {
			continue
		}
		take := min(l.RemainingQuantity, qty)
		draws = append(draws, Draw{
			LayerID:   l.ID,
			Quantity:  take,
			UnitCost:  l.UnitCost,
			Remaining: l.RemainingQuantity - take,
		})
		qty -= take
	}
	return draws, qty
}

// Order returns a copy of layers in consumption order for method.
func Order(layers []repository.CostLayer, method repository.CostingMethod) []repository.CostLayer {
	sorted := append([]repository.CostLayer(nil), layers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if method == repository.CostingLIFO {
			return olderThan(sorted[j], sorted[i])
		}
		return olderThan(sorted[i], sorted[j])
	})
	return sorted
}

func olderThan(a, b repository.CostLayer) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// InboundInput describes the cell state an inbound movement is applied to.
type InboundInput struct {
	Layers   []repository.CostLayer
	Quantity int64
	UnitCost decimal.Decimal

	// OnHand is the cell's on-hand before the movement. It may be negative
	// when earlier movements ran without prevent_negative.
	OnHand int64

	// WeightedAvgCost is the cell's average before the movement. It prices
	// untracked on-hand units in the new average.
	WeightedAvgCost decimal.Decimal

	// Fallback prices untracked units when WeightedAvgCost is zero, normally
	// product.cost_price.
	Fallback decimal.Decimal
}

// PlanInbound sizes the new layer and recomputes the weighted average over
// all remaining layers plus any untracked on-hand units.
func PlanInbound(in InboundInput) (*InboundPlan, error) {
	if in.Quantity <= 0 {
		return nil, errors.Input("inbound quantity must be positive")
	}
	if in.UnitCost.IsNegative() {
		return nil, errors.Input("unit cost must not be negative")
	}

	unitCost := in.UnitCost.Round(CostScale)
	deficit := max(-in.OnHand, 0)
	layerQty := max(in.Quantity-deficit, 0)

	var tracked int64
	value := decimal.Zero
	for _, l := range in.Layers {
		tracked += l.RemainingQuantity
		value = value.Add(l.UnitCost.Mul(decimal.NewFromInt(l.RemainingQuantity)))
	}
	untracked := max(in.OnHand-tracked, 0)
	untrackedCost := in.WeightedAvgCost
	if untrackedCost.IsZero() {
		untrackedCost = in.Fallback
	}

	value = value.
		Add(unitCost.Mul(decimal.NewFromInt(layerQty))).
		Add(untrackedCost.Mul(decimal.NewFromInt(untracked)))
	units := tracked + layerQty + untracked

	avg := unitCost
	if units > 0 {
		avg = value.Div(decimal.NewFromInt(units)).Round(CostScale)
	}

	return &InboundPlan{
		Quantity:        in.Quantity,
		UnitCost:        unitCost,
		TotalCost:       unitCost.Mul(decimal.NewFromInt(in.Quantity)),
		LayerQuantity:   layerQty,
		WeightedAvgCost: avg,
	}, nil
}

// BookValue is Σ remaining × unit_cost over layers.
func BookValue(layers []repository.CostLayer) (decimal.Decimal, int64) {
	value := decimal.Zero
	var units int64
	for _, l := range layers {
		units += l.RemainingQuantity
		value = value.Add(l.UnitCost.Mul(decimal.NewFromInt(l.RemainingQuantity)))
	}
	return value, units
}
