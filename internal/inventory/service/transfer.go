package service

import (
	"context"
	"fmt"
	"time"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/pkg/actor"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReasonTransferRollback marks the compensating movement of a failed transfer.
const ReasonTransferRollback = "transfer_rollback"

const compensationAttempts = 3

// TransferRequest moves stock of one product between two warehouses.
type TransferRequest struct {
	ProductID       string
	FromWarehouseID string
	ToWarehouseID   string
	Quantity        int64
	Reference       *string
	Reason          *string
	CostingMethod   repository.CostingMethod
}

// TransferResult holds both committed legs and the transfer record.
type TransferResult struct {
	Transfer *repository.StockTransfer `json:"transfer"`
	Out      *StockUpdate              `json:"out"`
	In       *StockUpdate              `json:"in"`
}

// TransferService chains two stock mutations across warehouses. The legs
// are separate units of work; a failed second leg is compensated.
type TransferService struct {
	stock       *StockService
	broadcaster Broadcaster
	logger      *logger.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(stock *StockService, broadcaster Broadcaster, log *logger.Logger) *TransferService {
	return &TransferService{
		stock:       stock,
		broadcaster: broadcaster,
		logger:      log.WithComponent("transfer"),
	}
}

// Transfer moves req.Quantity from the source to the destination warehouse.
// The destination receives the units at the source's weighted average cost.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if err := requireCell(req.ProductID, req.FromWarehouseID); err != nil {
		return nil, err
	}
	if req.ToWarehouseID == "" {
		return nil, errors.Validation(map[string]string{"to_warehouse_id": "required"})
	}
	if req.Quantity <= 0 {
		return nil, errors.Input("transfer quantity must be positive")
	}
	if req.FromWarehouseID == req.ToWarehouseID {
		return nil, errors.SameWarehouseTransfer()
	}

	ctx, span := s.stock.tracer.Start(ctx, "inventory.transfer", trace.WithAttributes(
		attribute.String("inventory.product_id", req.ProductID),
		attribute.String("inventory.from_warehouse_id", req.FromWarehouseID),
		attribute.String("inventory.to_warehouse_id", req.ToWarehouseID),
		attribute.Int64("inventory.quantity", req.Quantity),
	))
	defer span.End()

	out, err := s.stock.mutate(ctx, "inventory.transfer.out", UpdateRequest{
		ProductID:       req.ProductID,
		WarehouseID:     req.FromWarehouseID,
		Delta:           -req.Quantity,
		MovementType:    repository.MovementTransferOut,
		Reference:       req.Reference,
		Reason:          req.Reason,
		CostingMethod:   req.CostingMethod,
		PreventNegative: true,
	}, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	unitCost := out.Cell.WeightedAvgCost
	if unitCost.IsZero() && out.Movement != nil {
		unitCost = out.Movement.UnitCost
	}

	record := &repository.StockTransfer{
		ID:              uuid.NewString(),
		ProductID:       req.ProductID,
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Quantity:        req.Quantity,
		UnitCost:        unitCost,
		Status:          repository.TransferCompleted,
		Reference:       req.Reference,
		Reason:          req.Reason,
		CreatedBy:       actor.FromContext(ctx).AuditID(),
	}

	in, err := s.stock.mutate(ctx, "inventory.transfer.in", UpdateRequest{
		ProductID:    req.ProductID,
		WarehouseID:  req.ToWarehouseID,
		Delta:        req.Quantity,
		MovementType: repository.MovementTransferIn,
		UnitCost:     &unitCost,
		Reference:    req.Reference,
		Reason:       req.Reason,
	}, func(ctx context.Context, tx repository.Tx, m *mutation) error {
		record.CreatedAt = m.now
		return tx.InsertTransfer(ctx, record)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, s.compensate(ctx, req, out, record, err)
	}

	return &TransferResult{Transfer: record, Out: out, In: in}, nil
}

// compensate reverses leg one after leg two failed. It always returns an
// error: the leg-two failure when the source was restored, or an
// InvariantViolation when it could not be.
func (s *TransferService) compensate(ctx context.Context, req TransferRequest, out *StockUpdate, record *repository.StockTransfer, legErr error) error {
	log := s.logger.WithCell(req.ProductID, req.FromWarehouseID)
	log.Warn().Err(legErr).
		Str("to_warehouse_id", req.ToWarehouseID).
		Int64("quantity", req.Quantity).
		Msg("transfer destination leg failed, compensating source")

	// The caller's deadline may be what failed leg two; the rollback must run regardless.
	ctx = context.WithoutCancel(ctx)

	unitCost := decimal.Zero
	if out.Movement != nil {
		unitCost = out.Movement.UnitCost
	}
	reason := ReasonTransferRollback

	var err error
	for attempt := 1; attempt <= compensationAttempts; attempt++ {
		_, err = s.stock.mutate(ctx, "inventory.transfer.compensate", UpdateRequest{
			ProductID:    req.ProductID,
			WarehouseID:  req.FromWarehouseID,
			Delta:        req.Quantity,
			MovementType: repository.MovementAdjustmentIncrease,
			UnitCost:     &unitCost,
			Reference:    req.Reference,
			Reason:       &reason,
		}, nil)
		if err == nil || !errors.Is(err, errors.ErrConcurrentUpdate) {
			break
		}
		time.Sleep(time.Duration(attempt) * 10 * time.Millisecond)
	}
	if err == nil {
		return fmt.Errorf("transfer rolled back: %w", legErr)
	}

	failure := fmt.Sprintf("destination leg: %v; compensation: %v", legErr, err)
	record.Status = repository.TransferFailed
	record.FailureReason = &failure
	record.CreatedAt = s.stock.now()

	log.Error().
		Str("transfer_id", record.ID).
		Str("to_warehouse_id", req.ToWarehouseID).
		Int64("quantity", req.Quantity).
		AnErr("leg_error", legErr).
		AnErr("compensation_error", err).
		Msg("orphaned partial transfer, operator review required")

	recordErr := s.stock.store.UnitOfWork(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.InsertTransfer(ctx, record)
	})
	if recordErr != nil {
		log.Error().Err(recordErr).Str("transfer_id", record.ID).Msg("failed to record failed transfer")
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastTransferFailed(ctx, record); err != nil {
			log.Warn().Err(err).Str("transfer_id", record.ID).Msg("failed to broadcast transfer failure")
		}
	}

	return errors.InvariantViolation("transfer partially applied; operator review required").
		WithDetails(map[string]string{"transfer_id": record.ID, "cause": failure})
}

// Get returns a transfer record by id.
func (s *TransferService) Get(ctx context.Context, id string) (*repository.StockTransfer, error) {
	return s.stock.store.GetTransfer(ctx, id)
}
