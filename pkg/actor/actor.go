// Package actor identifies the user or system performing an inventory
// operation. Handlers place an Actor in the request context; the core reads
// it back to fill audit columns.
package actor

import (
	"context"
	"fmt"
)

// SystemID is the identifier used for background and system initiated work.
const SystemID = "00000000-0000-0000-0000-000000000000"

// Roles known to the inventory core.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleOperator = "operator"
)

// Actor represents the entity performing an action in the system.
type Actor struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	RoleName    string `json:"role_name,omitempty"`
	WarehouseID string `json:"warehouse_id,omitempty"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a.IsSystem() {
		return "system"
	}
	return fmt.Sprintf("%s (%s)", a.ID, a.Email)
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	return a == nil || a.ID == "" || a.ID == SystemID
}

// AuditID is the value persisted in created_by/updated_by columns. The
// system actor is stored as NULL.
func (a *Actor) AuditID() *string {
	if a.IsSystem() {
		return nil
	}
	id := a.ID
	return &id
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context, or SystemActor when none is set.
func FromContext(ctx context.Context) *Actor {
	if ctx != nil {
		if a, ok := ctx.Value(actorContextKey).(*Actor); ok && a != nil {
			return a
		}
	}
	return SystemActor()
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// SystemActor returns an Actor representing the system itself.
func SystemActor() *Actor {
	return &Actor{
		ID:    SystemID,
		Email: "system@ims.local",
	}
}
