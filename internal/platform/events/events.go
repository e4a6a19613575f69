// Package events publishes order lifecycle events for downstream
// collaborators such as the notification service. Events are emitted only
// after the owning transaction has committed.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	OrderFinalized        = "order.finalized"
	OrderSentToRadiology  = "order.sent_to_radiology"
	OrderCancelled        = "order.cancelled"
	OrderValidationLogged = "order.validation_logged"
)

// Event is the message body. It carries identifiers only, never PHI.
type Event struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	OrderID     int64             `json:"orderId"`
	OrderNumber string            `json:"orderNumber,omitempty"`
	Status      string            `json:"status,omitempty"`
	ActorUserID int64             `json:"actorUserId,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(eventType string, orderID int64) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OrderID:    orderID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Callers treat publish errors as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Memory keeps published events in order. Useful in tests and local runs.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
