package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

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

func listingKey(id string) string {
	return fmt.Sprintf("listing-%s", id)
}

// PublishListingCreated publishes ListingCreated event
func (ep *EventPublisher) PublishListingCreated(ctx context.Context, event *models.ListingCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, listingKey(event.ListingID), event)
}

// PublishListingModerated publishes ListingModerated event
func (ep *EventPublisher) PublishListingModerated(ctx context.Context, event *models.ListingModeratedEvent) error {
	return ep.producer.PublishEvent(ctx, listingKey(event.ListingID), event)
}

// PublishModerationRequested queues a moderation decision for the moderation worker
func (ep *EventPublisher) PublishModerationRequested(ctx context.Context, event *models.ModerationRequestedEvent) error {
	return ep.producer.PublishEvent(ctx, listingKey(event.ListingID), event)
}

// PublishNotificationCreated publishes NotificationCreated event, keyed by recipient
func (ep *EventPublisher) PublishNotificationCreated(ctx context.Context, event *models.NotificationCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("user-%s", event.UserID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onModerationRequested func(context.Context, *models.ModerationRequestedEvent) error
	logger                *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnModerationRequested registers a handler for ModerationRequested events
func (eh *EventHandler) OnModerationRequested(handler func(context.Context, *models.ModerationRequestedEvent) error) {
	eh.onModerationRequested = handler
}

// HandleMessage routes messages to appropriate handlers. Malformed payloads
// are logged and dropped; events nobody subscribed to are skipped.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		eh.logger.Error("Dropping malformed event",
			zap.ByteString("key", msg.Key),
			zap.Error(err))
		return nil
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeModerationRequested:
		if eh.onModerationRequested != nil {
			var event models.ModerationRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				eh.logger.Error("Dropping malformed ModerationRequested event", zap.Error(err))
				return nil
			}
			return eh.onModerationRequested(ctx, &event)
		}

	case models.EventTypeListingCreated, models.EventTypeListingModerated, models.EventTypeNotificationCreated:
		// published by this service for downstream consumers

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
