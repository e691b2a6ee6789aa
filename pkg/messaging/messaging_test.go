package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := NewChannelPublisher(func() Channel { return ch }, ExchangeInventoryEvents, "inventory-service", logger.Nop())

	ctx := WithCorrelationID(context.Background(), "req-42")
	err := p.Publish(ctx, EventCellUpdated, CellUpdatedEvent{ProductID: "p1", WarehouseID: "w1", OnHand: 7})
	require.NoError(t, err)

	require.Len(t, ch.sent, 1)
	got := ch.sent[0]
	assert.Equal(t, ExchangeInventoryEvents, got.exchange)
	assert.Equal(t, EventCellUpdated, got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, "req-42", got.msg.CorrelationId)

	var event Event
	require.NoError(t, json.Unmarshal(got.msg.Body, &event))
	assert.Equal(t, EventCellUpdated, event.Type)
	assert.Equal(t, "inventory-service", event.Source)
	assert.Equal(t, got.msg.MessageId, event.ID)

	var data CellUpdatedEvent
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, int64(7), data.OnHand)
}

func TestPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	p := NewChannelPublisher(func() Channel { return ch }, ExchangeInventoryEvents, "inventory-service", logger.Nop())

	err := p.Publish(context.Background(), EventReorderAlert, ReorderAlertEvent{AlertID: "a1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func mustEvent(t *testing.T, eventType string, data any) []byte {
	t.Helper()
	e, err := NewEvent(eventType, "user-service", "corr-1", data)
	require.NoError(t, err)
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return b
}

func TestConsumer_Dispatch(t *testing.T) {
	c := NewDispatcher("inventory-service.user-events", logger.Nop())

	var seen []string
	c.RegisterHandler(EventUserCreated, func(ctx context.Context, e *Event) error {
		var data UserCreatedEvent
		if err := e.UnmarshalData(&data); err != nil {
			return err
		}
		seen = append(seen, data.UserID+"/"+CorrelationID(ctx))
		return nil
	})
	failing := errors.New("db down")
	c.RegisterHandler(EventUserDeleted, func(ctx context.Context, e *Event) error {
		return failing
	})

	ctx := context.Background()
	assert.Equal(t, OutcomeAck, c.Dispatch(ctx, mustEvent(t, EventUserCreated, UserCreatedEvent{UserID: "u1"}), 0))
	assert.Equal(t, []string{"u1/corr-1"}, seen)

	// Unknown types are acknowledged and dropped.
	assert.Equal(t, OutcomeAck, c.Dispatch(ctx, mustEvent(t, "user.password.reset", struct{}{}), 0))

	assert.Equal(t, OutcomeDeadLetter, c.Dispatch(ctx, []byte("{not json"), 0))

	deleted := mustEvent(t, EventUserDeleted, UserDeletedEvent{UserID: "u1"})
	assert.Equal(t, OutcomeRequeue, c.Dispatch(ctx, deleted, 0))
	assert.Equal(t, OutcomeRequeue, c.Dispatch(ctx, deleted, MaxDeliveryAttempts-2))
	assert.Equal(t, OutcomeDeadLetter, c.Dispatch(ctx, deleted, MaxDeliveryAttempts-1))
}

func TestDeathCount(t *testing.T) {
	assert.Zero(t, deathCount(nil))
	assert.Equal(t, 2, deathCount(amqp.Table{"x-delivery-count": int64(2)}))
	assert.Equal(t, 4, deathCount(amqp.Table{
		"x-death": []any{amqp.Table{"count": int64(4), "reason": "rejected"}},
	}))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ack", OutcomeAck.String())
	assert.Equal(t, "requeue", OutcomeRequeue.String())
	assert.Equal(t, "dead_letter", OutcomeDeadLetter.String())
}

type declaration struct {
	kind string
	name string
	args amqp.Table
}

type fakeTopology struct {
	calls    []declaration
	bindings map[string]string
	failOn   string
}

func (f *fakeTopology) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.calls = append(f.calls, declaration{kind: "exchange", name: name, args: args})
	if f.failOn == name {
		return amqp.ErrClosed
	}
	return nil
}

func (f *fakeTopology) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.calls = append(f.calls, declaration{kind: "queue", name: name, args: args})
	return amqp.Queue{Name: name}, nil
}

func (f *fakeTopology) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	f.calls = append(f.calls, declaration{kind: "bind", name: name})
	if f.bindings == nil {
		f.bindings = map[string]string{}
	}
	f.bindings[exchange+"/"+key] = name
	return nil
}

func TestDeclareConsumerQueue_DeclaresDeadLetterPath(t *testing.T) {
	const queue = "inventory-service.user-events"
	ch := &fakeTopology{}

	q, err := DeclareConsumerQueue(ch, queue)
	require.NoError(t, err)
	assert.Equal(t, queue, q.Name)

	require.Len(t, ch.calls, 4)
	assert.Equal(t, declaration{kind: "exchange", name: DeadLetterExchange}, ch.calls[0])

	// Messages dead-lettered from the queue must land in its DLQ.
	declared := ch.calls[3]
	assert.Equal(t, "queue", declared.kind)
	assert.Equal(t, DeadLetterExchange, declared.args["x-dead-letter-exchange"])
	key, _ := declared.args["x-dead-letter-routing-key"].(string)
	assert.Equal(t, DeadLetterQueueName(queue), ch.bindings[DeadLetterExchange+"/"+key])
}

func TestDeclareConsumerQueue_StopsWhenExchangeFails(t *testing.T) {
	ch := &fakeTopology{failOn: DeadLetterExchange}

	_, err := DeclareConsumerQueue(ch, "q")
	require.Error(t, err)
	assert.Len(t, ch.calls, 1)
}
