package models

import "time"

// Event types
const (
	EventTypeListingCreated      = "LISTING_CREATED"
	EventTypeListingModerated    = "LISTING_MODERATED"
	EventTypeModerationRequested = "MODERATION_REQUESTED"
	EventTypeNotificationCreated = "NOTIFICATION_CREATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ListingCreatedEvent published when a listing enters the moderation queue
type ListingCreatedEvent struct {
	BaseEvent
	ListingID string   `json:"listing_id"`
	OwnerID   string   `json:"owner_id"`
	Category  Category `json:"category"`
	Title     string   `json:"title"`
}

// ListingModeratedEvent published after a successful moderation decision
type ListingModeratedEvent struct {
	BaseEvent
	ListingID   string        `json:"listing_id"`
	OwnerID     string        `json:"owner_id"`
	Decision    Decision      `json:"decision"`
	Status      ListingStatus `json:"status"`
	ModeratedBy ActorID       `json:"moderated_by"`
	Comment     string        `json:"comment,omitempty"`
}

// ModerationRequestedEvent lets admin surfaces submit decisions asynchronously
type ModerationRequestedEvent struct {
	BaseEvent
	ListingID   string   `json:"listing_id"`
	Decision    Decision `json:"decision"`
	ModeratorID ActorID  `json:"moderator_id"`
	Comment     string   `json:"comment,omitempty"`
}

// NotificationCreatedEvent fans a new notification out to delivery channels
type NotificationCreatedEvent struct {
	BaseEvent
	NotificationID string           `json:"notification_id"`
	UserID         string           `json:"user_id"`
	Type           NotificationType `json:"type"`
	Message        string           `json:"message"`
	Link           string           `json:"link,omitempty"`
}

// Decision is a moderator verdict
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Type returns the event type used for routing and message headers
func (e BaseEvent) Type() string {
	return e.EventType
}
