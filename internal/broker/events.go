package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishCartClearFailed publishes CartClearFailed event
func (ep *EventPublisher) PublishCartClearFailed(ctx context.Context, event *models.CartClearFailedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// NoopPublisher drops every event. It is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderPlaced(context.Context, *models.OrderPlacedEvent) error {
	return nil
}

func (NoopPublisher) PublishCartClearFailed(context.Context, *models.CartClearFailedEvent) error {
	return nil
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderPlaced     func(context.Context, *models.OrderPlacedEvent) error
	onCartClearFailed func(context.Context, *models.CartClearFailedEvent) error
	logger            *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderPlaced registers a handler for OrderPlaced events
func (eh *EventHandler) OnOrderPlaced(handler func(context.Context, *models.OrderPlacedEvent) error) {
	eh.onOrderPlaced = handler
}

// OnCartClearFailed registers a handler for CartClearFailed events
func (eh *EventHandler) OnCartClearFailed(handler func(context.Context, *models.CartClearFailedEvent) error) {
	eh.onCartClearFailed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderPlaced:
		if eh.onOrderPlaced != nil {
			var event models.OrderPlacedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
			}
			return eh.onOrderPlaced(ctx, &event)
		}

	case models.EventTypeCartClearFailed:
		if eh.onCartClearFailed != nil {
			var event models.CartClearFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CartClearFailed event: %w", err)
			}
			return eh.onCartClearFailed(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
