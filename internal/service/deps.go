package service

import (
	"context"
	"time"

	"marketplace-service/internal/models"
)

// EventPublisher publishes domain events; broker.EventPublisher satisfies it
type EventPublisher interface {
	PublishListingCreated(ctx context.Context, event *models.ListingCreatedEvent) error
	PublishListingModerated(ctx context.Context, event *models.ListingModeratedEvent) error
	PublishNotificationCreated(ctx context.Context, event *models.NotificationCreatedEvent) error
}

// Locker serialises moderators working on the same listing. A lock is
// released only by the holder of the token AcquireLock returned.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (token string, acquired bool, err error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// IdempotencyStore remembers which asynchronous requests were already applied
type IdempotencyStore interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// UnreadCache caches per-user unread counters. Every notification write bumps
// a per-user version; a counter read from the repository is cached only if
// the version it was read under is still current.
type UnreadCache interface {
	GetUnreadCount(ctx context.Context, userID string) (int, bool, error)
	UnreadCountVersion(ctx context.Context, userID string) (int64, error)
	FillUnreadCount(ctx context.Context, userID string, count int, version int64, ttl time.Duration) (bool, error)
	InvalidateUnreadCount(ctx context.Context, userID string) error
}

// AuditRecorder receives bookkeeping entries; AdminStatsService satisfies it
type AuditRecorder interface {
	RecordTransaction(ctx context.Context, entry models.AuditTransaction) (*models.AuditTransaction, error)
}

type noopPublisher struct{}

func (noopPublisher) PublishListingCreated(context.Context, *models.ListingCreatedEvent) error {
	return nil
}

func (noopPublisher) PublishListingModerated(context.Context, *models.ListingModeratedEvent) error {
	return nil
}

func (noopPublisher) PublishNotificationCreated(context.Context, *models.NotificationCreatedEvent) error {
	return nil
}

func newBaseEvent(eventType string, now time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   newID(),
		EventType: eventType,
		Timestamp: now,
	}
}
