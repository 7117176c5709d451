package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types published by the API.
const (
	EventAppointmentStatusChanged = "appointment.status_changed"
	EventTransactionCreated       = "ledger.transaction_created"
	EventTransactionDeleted       = "ledger.transaction_deleted"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}

// Publisher defines the interface for publishing messages
type Publisher interface {
	Publish(ctx context.Context, eventType string, clinicID uuid.UUID, payload interface{}) error
}

// Event is the envelope written to the broker channel.
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Type       string      `json:"type"`
	ClinicID   uuid.UUID   `json:"clinic_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// EventPublisher wraps every message in an Event and sends it to one channel.
type EventPublisher struct {
	broker  Broker
	channel string
}

func NewEventPublisher(broker Broker, channel string) *EventPublisher {
	return &EventPublisher{broker: broker, channel: channel}
}

func (p *EventPublisher) Publish(ctx context.Context, eventType string, clinicID uuid.UUID, payload interface{}) error {
	return p.broker.Publish(ctx, p.channel, Event{
		ID:         uuid.New(),
		Type:       eventType,
		ClinicID:   clinicID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
}

// NopBroker drops every message. Used when no Redis URL is configured.
type NopBroker struct{}

func (NopBroker) Publish(context.Context, string, interface{}) error { return nil }

func (NopBroker) Close() error { return nil }
