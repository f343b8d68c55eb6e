package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"tx-coordinator/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes the coordinator's saga transition events.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishTransactionStarted publishes a TransactionStarted event
func (ep *EventPublisher) PublishTransactionStarted(ctx context.Context, event *models.TransactionStartedEvent) error {
	return ep.producer.PublishEvent(ctx, event.TransactionID, event)
}

// PublishOrderCreated publishes an OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, event.TransactionID, event)
}

// PublishPaymentCreated publishes a PaymentCreated event
func (ep *EventPublisher) PublishPaymentCreated(ctx context.Context, event *models.PaymentCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, event.TransactionID, event)
}

// PublishTransactionConfirmed publishes a TransactionConfirmed event
func (ep *EventPublisher) PublishTransactionConfirmed(ctx context.Context, event *models.TransactionConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, event.TransactionID, event)
}

// PublishTransactionCompensated publishes a TransactionCompensated event
func (ep *EventPublisher) PublishTransactionCompensated(ctx context.Context, event *models.TransactionCompensatedEvent) error {
	return ep.producer.PublishEvent(ctx, event.TransactionID, event)
}

// PublishTransactionFailed publishes a TransactionFailed event
func (ep *EventPublisher) PublishTransactionFailed(ctx context.Context, event *models.TransactionFailedEvent) error {
	return ep.producer.PublishEvent(ctx, event.TransactionID, event)
}

// EventHandler routes consumed events to registered handlers.
type EventHandler struct {
	onTransactionFailed func(context.Context, *models.TransactionFailedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnTransactionFailed registers a handler for TransactionFailed events
func (eh *EventHandler) OnTransactionFailed(handler func(context.Context, *models.TransactionFailedEvent) error) {
	eh.onTransactionFailed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeTransactionFailed:
		if eh.onTransactionFailed != nil {
			var event models.TransactionFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TransactionFailed event: %w", err)
			}
			return eh.onTransactionFailed(ctx, &event)
		}

	default:
		// Audit-only transitions; nothing to do on the consumer side.
		log.Printf("Skipping event type: %s", baseEvent.EventType)
	}

	return nil
}
