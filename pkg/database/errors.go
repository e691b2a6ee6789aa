package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/lib/pq"
)

// MapPQError converts a PostgreSQL error to an AppError.
// Returns nil if the error is not a pq.Error or carries an unmapped code.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// check_violation
	case "23514":
		return mapCheckConstraint(pqErr)

	// unique_violation
	case "23505":
		return errors.Conflict("a record with these values already exists").
			WithDetails(map[string]string{"constraint": pqErr.Constraint})

	// foreign_key_violation
	case "23503":
		return errors.NotFound("referenced record")

	// not_null_violation
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Input(col + " must not be empty")

	default:
		return nil
	}
}

// mapCheckConstraint turns the stock table CHECK constraints into inventory errors.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "available_identity"):
		return errors.InvariantViolation("available must equal on hand minus reserved")
	case strings.Contains(constraint, "continuity"):
		return errors.InvariantViolation("movement quantities do not match the on hand change")
	case strings.Contains(constraint, "not_over_received"):
		return errors.Input("received quantity exceeds ordered quantity")
	case strings.Contains(constraint, "reserved_nonnegative"):
		return errors.InvariantViolation("reserved quantity would become negative")
	case strings.Contains(constraint, "remaining_nonnegative"):
		return errors.InvariantViolation("cost layer remaining quantity would become negative")
	case strings.Contains(constraint, "distinct_warehouses"):
		return errors.SameWarehouseTransfer()
	case strings.Contains(constraint, "quantity_positive"):
		return errors.Input("quantity must be positive")
	default:
		return errors.Input("data validation failed: " + constraint)
	}
}

// MapError normalises a gateway error. AppErrors and context errors pass
// through, sql.ErrNoRows becomes NotFound(resource), mapped pq errors become
// their AppError and everything else becomes a PersistenceError.
func MapError(err error, resource, op string) error {
	if err == nil {
		return nil
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource)
	}
	if mapped := MapPQError(err); mapped != nil {
		return mapped
	}
	return errors.Persistence(err, op)
}
