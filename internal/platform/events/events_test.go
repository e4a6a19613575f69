package events

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, exchange: "radorder.orders"}

	e := NewEvent(OrderFinalized, 12)
	e.OrderNumber = "ROP-20260301-ABCDEF12"
	e.Status = "pending_admin"
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if ch.exchange != "radorder.orders" || ch.key != OrderFinalized {
		t.Errorf("published to %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.DeliveryMode != amqp.Persistent || ch.msg.ContentType != "application/json" {
		t.Errorf("unexpected message properties: %+v", ch.msg)
	}
	if ch.msg.MessageId != e.ID {
		t.Errorf("MessageId = %q, want %q", ch.msg.MessageId, e.ID)
	}

	var decoded Event
	if err := json.Unmarshal(ch.msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.OrderID != 12 || decoded.Status != "pending_admin" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	p := &AMQPPublisher{ch: &fakeChannel{err: amqp.ErrClosed}, exchange: "x"}
	if err := p.Publish(context.Background(), NewEvent(OrderCancelled, 1)); !errors.Is(err, amqp.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestAMQPPublisher_PingWithoutConnection(t *testing.T) {
	p := &AMQPPublisher{ch: &fakeChannel{}}
	if err := p.Ping(context.Background()); err == nil {
		t.Error("expected error without a connection")
	}
}

func TestMemory(t *testing.T) {
	var m Memory
	_ = m.Publish(context.Background(), NewEvent(OrderFinalized, 1))
	_ = m.Publish(context.Background(), NewEvent(OrderSentToRadiology, 1))

	got := m.Events()
	if len(got) != 2 || got[0].Type != OrderFinalized || got[1].Type != OrderSentToRadiology {
		t.Errorf("unexpected events: %+v", got)
	}
	if got[0].ID == got[1].ID {
		t.Error("event ids should be unique")
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Publish(context.Background(), NewEvent(OrderFinalized, 1)); err != nil {
		t.Errorf("Nop.Publish: %v", err)
	}
}
