// Package consumers keeps local read copies of other services' data in sync
// from their events.
package consumers

import (
	"context"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/repository"
	"github.com/NandhanI20020/IMS-sub000/pkg/errors"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/NandhanI20020/IMS-sub000/pkg/messaging"
)

// UserEventsQueue is the queue bound to the user events exchange.
const UserEventsQueue = "inventory-service.user-events"

// UserEventConsumer mirrors user events into the user cache the reorder
// monitor reads warehouse managers from.
type UserEventConsumer struct {
	consumer *messaging.Consumer
	users    repository.UserCache
	logger   *logger.Logger
}

// NewUserEventConsumer creates a new user event consumer bound to user.#
func NewUserEventConsumer(rmq *messaging.RabbitMQ, users repository.UserCache, log *logger.Logger) (*UserEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, UserEventsQueue, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeUserEvents, "user.#"); err != nil {
		return nil, err
	}

	return newUserEventConsumer(consumer, users, log), nil
}

func newUserEventConsumer(consumer *messaging.Consumer, users repository.UserCache, log *logger.Logger) *UserEventConsumer {
	c := &UserEventConsumer{
		consumer: consumer,
		users:    users,
		logger:   log.WithComponent("user_consumer"),
	}

	consumer.RegisterHandler(messaging.EventUserCreated, c.handleUserCreated)
	consumer.RegisterHandler(messaging.EventUserUpdated, c.handleUserUpdated)
	consumer.RegisterHandler(messaging.EventUserRoleChanged, c.handleUserRoleChanged)
	consumer.RegisterHandler(messaging.EventUserDeleted, c.handleUserDeleted)
	return c
}

// Start starts consuming messages
func (c *UserEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *UserEventConsumer) handleUserCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Str("role", data.RoleName).
		Msg("received user created event")

	return c.users.UpsertUser(ctx, &repository.CachedUser{
		UserID:      data.UserID,
		Name:        data.Name,
		Email:       data.Email,
		RoleName:    data.RoleName,
		WarehouseID: data.WarehouseID,
		IsActive:    true,
	})
}

func (c *UserEventConsumer) handleUserUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	existing, err := c.users.GetUser(ctx, data.UserID)
	if errors.Is(err, errors.ErrNotFound) {
		// Created before this service subscribed; the next full event fills it in.
		c.logger.Debug().Str("user_id", data.UserID).Msg("update for unknown user ignored")
		return nil
	}
	if err != nil {
		return err
	}

	if data.Email != nil {
		existing.Email = *data.Email
	}
	if data.Name != nil {
		existing.Name = *data.Name
	}
	if data.WarehouseID != nil {
		if *data.WarehouseID == "" {
			existing.WarehouseID = nil
		} else {
			existing.WarehouseID = data.WarehouseID
		}
	}
	if data.IsActive != nil {
		existing.IsActive = *data.IsActive
	}

	c.logger.Info().Str("user_id", data.UserID).Msg("received user updated event")
	return c.users.UpsertUser(ctx, existing)
}

func (c *UserEventConsumer) handleUserRoleChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserRoleChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	existing, err := c.users.GetUser(ctx, data.UserID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Str("old_role", data.OldRole).
		Str("new_role", data.NewRole).
		Msg("received user role changed event")

	existing.RoleName = data.NewRole
	return c.users.UpsertUser(ctx, existing)
}

func (c *UserEventConsumer) handleUserDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user deleted event")

	return c.users.DeleteUser(ctx, data.UserID)
}
