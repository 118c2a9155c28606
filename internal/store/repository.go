package store

import (
	"context"
	"time"

	"marketplace-service/internal/models"
)

// ListingRepository persists listings. Implementations return models.ErrNotFound
// for unknown ids and a *models.TransitionError when a guarded status write finds
// the listing in an unexpected state.
type ListingRepository interface {
	CreateListing(ctx context.Context, listing *models.Listing) error
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	ListListings(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error)
	// UpdateListing writes the owner editable fields and the updated timestamp.
	// Status and moderation metadata are never touched.
	UpdateListing(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	DeleteListing(ctx context.Context, id string) error
	TransitionListing(ctx context.Context, id string, t models.StatusTransition) (*models.Listing, error)
	ResetListingStatuses(ctx context.Context, status models.ListingStatus, at time.Time) (int, error)
	DeletePendingBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// NotificationRepository persists per-user notifications
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	// ListNotifications returns a user's notifications newest first
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, id string) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

// TransactionRepository persists the admin audit log
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, txn *models.AuditTransaction) error
	// ListTransactions returns entries newest first; an empty userID lists all
	ListTransactions(ctx context.Context, userID string) ([]models.AuditTransaction, error)
	UpdateTransaction(ctx context.Context, id string, status models.TransactionStatus, notes string, completedAt *time.Time) (*models.AuditTransaction, error)
	DeleteTransactions(ctx context.Context) error
}

// Repository bundles every collection owned by the service
type Repository interface {
	ListingRepository
	NotificationRepository
	TransactionRepository
	Close() error
}
