package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	// User events, consumed to keep the manager cache current
	EventUserCreated     = "user.created"
	EventUserUpdated     = "user.updated"
	EventUserDeleted     = "user.deleted"
	EventUserRoleChanged = "user.role.changed"

	// Inventory events
	EventCellUpdated    = "inventory.cell.updated"
	EventReorderAlert   = "inventory.alert.reorder"
	EventTransferFailed = "inventory.transfer.failed"
)

// Exchange names
const (
	ExchangeUserEvents      = "user.events"
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// GenerateEventID returns a new random event id.
func GenerateEventID() string {
	return uuid.NewString()
}

// User Events

// UserCreatedEvent is published by the user service when a user is created
type UserCreatedEvent struct {
	UserID      string  `json:"user_id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	RoleName    string  `json:"role_name"`
	WarehouseID *string `json:"warehouse_id,omitempty"`
}

// UserUpdatedEvent carries the changed fields of a user. Absent fields are unchanged.
type UserUpdatedEvent struct {
	UserID      string  `json:"user_id"`
	Email       *string `json:"email,omitempty"`
	Name        *string `json:"name,omitempty"`
	WarehouseID *string `json:"warehouse_id,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// UserRoleChangedEvent is published when a user's role changes
type UserRoleChangedEvent struct {
	UserID  string `json:"user_id"`
	OldRole string `json:"old_role"`
	NewRole string `json:"new_role"`
}

// UserDeletedEvent is published when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
}

// Inventory Events

// CellUpdatedEvent is broadcast after every committed stock mutation.
type CellUpdatedEvent struct {
	ProductID       string          `json:"product_id"`
	WarehouseID     string          `json:"warehouse_id"`
	OnHand          int64           `json:"on_hand"`
	Reserved        int64           `json:"reserved"`
	Available       int64           `json:"available"`
	WeightedAvgCost decimal.Decimal `json:"weighted_avg_cost"`
	MovementID      string          `json:"movement_id,omitempty"`
	MovementType    string          `json:"movement_type,omitempty"`
	Quantity        int64           `json:"quantity,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ReorderAlertEvent is broadcast when a cell falls to or below its reorder level.
type ReorderAlertEvent struct {
	AlertID           string    `json:"alert_id"`
	ProductID         string    `json:"product_id"`
	WarehouseID       string    `json:"warehouse_id"`
	AlertType         string    `json:"alert_type"`
	OnHand            int64     `json:"on_hand"`
	Available         int64     `json:"available"`
	ReorderLevel      int64     `json:"reorder_level"`
	SuggestedQuantity int64     `json:"suggested_quantity"`
	CreatedAt         time.Time `json:"created_at"`
}

// TransferFailedEvent reports a transfer whose compensation could not be applied.
type TransferFailedEvent struct {
	TransferID      string `json:"transfer_id"`
	ProductID       string `json:"product_id"`
	FromWarehouseID string `json:"from_warehouse_id"`
	ToWarehouseID   string `json:"to_warehouse_id"`
	Quantity        int64  `json:"quantity"`
	FailureReason   string `json:"failure_reason,omitempty"`
}
