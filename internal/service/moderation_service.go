package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

const (
	defaultLockTTL        = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	unreadCacheTTL        = 5 * time.Minute
)

// ModerationResult is returned for an applied moderation decision.
// Notification and Transaction are nil when their side effect failed or
// did not apply.
type ModerationResult struct {
	Listing      *models.Listing          `json:"listing"`
	Notification *models.Notification     `json:"notification,omitempty"`
	Transaction  *models.AuditTransaction `json:"transaction,omitempty"`
}

// ModerationService applies moderation decisions and owns user notifications
type ModerationService struct {
	listings      store.ListingRepository
	notifications store.NotificationRepository
	audit         AuditRecorder
	publisher     EventPublisher

	locker         Locker
	lockTTL        time.Duration
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	unread         UnreadCache

	logger *zap.Logger
	now    func() time.Time
}

// ModerationOption configures optional collaborators
type ModerationOption func(*ModerationService)

// WithLocker serialises moderation of a listing across instances
func WithLocker(l Locker, ttl time.Duration) ModerationOption {
	return func(s *ModerationService) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithIdempotency deduplicates asynchronous moderation requests
func WithIdempotency(st IdempotencyStore, ttl time.Duration) ModerationOption {
	return func(s *ModerationService) {
		s.idempotency = st
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithUnreadCache caches unread counters
func WithUnreadCache(c UnreadCache) ModerationOption {
	return func(s *ModerationService) {
		s.unread = c
	}
}

// NewModerationService creates a new moderation service. audit and publisher may be nil.
func NewModerationService(
	listings store.ListingRepository,
	notifications store.NotificationRepository,
	audit AuditRecorder,
	publisher EventPublisher,
	opts ...ModerationOption,
) *ModerationService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	s := &ModerationService{
		listings:       listings,
		notifications:  notifications,
		audit:          audit,
		publisher:      publisher,
		lockTTL:        defaultLockTTL,
		idempotencyTTL: defaultIdempotencyTTL,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Moderate applies decision to a pending listing, notifies its owner and, on
// approval, records a zero-amount audit entry. Errors wrap models.ErrNotFound,
// models.ErrInvalidTransition, models.ErrInvalidDecision, models.ErrValidation
// or models.ErrUpdateFailed; on error nothing is emitted.
func (s *ModerationService) Moderate(
	ctx context.Context,
	listingID string,
	decision models.Decision,
	moderator models.ActorID,
	comment string,
) (*ModerationResult, error) {
	ctx, span := util.StartSpan(ctx, "ModerationService.Moderate")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ModerationLatency.Observe(time.Since(start).Seconds())
	}()

	if !decision.Valid() {
		util.ModerationFailedTotal.WithLabelValues("invalid_decision").Inc()
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidDecision, decision)
	}
	if moderator == "" {
		util.ModerationFailedTotal.WithLabelValues("missing_moderator").Inc()
		return nil, &models.ValidationError{Field: "moderator", Reason: "is required"}
	}

	if s.locker != nil {
		release, err := s.lock(ctx, listingID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	target := models.ListingStatusActive
	if decision == models.DecisionReject {
		target = models.ListingStatusRejected
	}

	listing, err := s.listings.TransitionListing(ctx, listingID, models.StatusTransition{
		From:              models.ListingStatusPending,
		To:                target,
		ModeratedBy:       moderator,
		ModeratedAt:       s.now(),
		ModerationComment: comment,
	})
	if err != nil {
		return nil, s.moderationFailed(listingID, err)
	}

	result := &ModerationResult{Listing: listing}

	notification := moderationNotification(listing, decision, comment)
	if created, err := s.createNotification(ctx, notification); err != nil {
		util.SideEffectFailuresTotal.WithLabelValues("moderation_notification").Inc()
		s.logger.Error("Failed to create moderation notification",
			zap.String("listing_id", listingID),
			zap.Error(err))
	} else {
		result.Notification = created
	}

	if decision == models.DecisionApprove && s.audit != nil {
		completedAt := s.now()
		txn, err := s.audit.RecordTransaction(ctx, models.AuditTransaction{
			UserID:         listing.OwnerID,
			ProductID:      listing.ID,
			Amount:         0,
			Status:         models.TransactionStatusCompleted,
			PaymentMethod:  "system",
			PaymentDetails: "Listing approved by moderator",
			Notes:          fmt.Sprintf(`Listing "%s" passed moderation`, listing.Title),
			CompletedAt:    &completedAt,
		})
		if err != nil {
			util.SideEffectFailuresTotal.WithLabelValues("audit_transaction").Inc()
			s.logger.Error("Failed to record moderation audit entry",
				zap.String("listing_id", listingID),
				zap.Error(err))
		} else {
			result.Transaction = txn
		}
	}

	event := &models.ListingModeratedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeListingModerated, s.now()),
		ListingID:   listing.ID,
		OwnerID:     listing.OwnerID,
		Decision:    decision,
		Status:      listing.Status,
		ModeratedBy: moderator,
		Comment:     comment,
	}
	if err := s.publisher.PublishListingModerated(ctx, event); err != nil {
		util.SideEffectFailuresTotal.WithLabelValues("publish_listing_moderated").Inc()
		s.logger.Error("Failed to publish ListingModerated event", zap.Error(err))
	}

	util.ModerationDecisionsTotal.WithLabelValues(string(decision)).Inc()
	s.logger.Info("Listing moderated",
		zap.String("listing_id", listingID),
		zap.String("decision", string(decision)),
		zap.String("moderator", string(moderator)),
		zap.String("comment", comment))

	return result, nil
}

func (s *ModerationService) lock(ctx context.Context, listingID string) (func(), error) {
	key := "moderation:" + listingID
	token, acquired, err := s.locker.AcquireLock(ctx, key, s.lockTTL)
	if err != nil {
		// the status guard in the repository still prevents double moderation
		s.logger.Warn("Moderation lock unavailable, relying on status guard",
			zap.String("listing_id", listingID),
			zap.Error(err))
		return func() {}, nil
	}
	if !acquired {
		util.ModerationFailedTotal.WithLabelValues("locked").Inc()
		return nil, fmt.Errorf("listing %s is being moderated: %w", listingID, models.ErrInvalidTransition)
	}
	return func() {
		if err := s.locker.ReleaseLock(context.Background(), key, token); err != nil {
			s.logger.Warn("Failed to release moderation lock",
				zap.String("listing_id", listingID),
				zap.Error(err))
		}
	}, nil
}

func (s *ModerationService) moderationFailed(listingID string, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		util.ModerationFailedTotal.WithLabelValues("not_found").Inc()
		s.logger.Warn("Moderation target not found", zap.String("listing_id", listingID))
		return fmt.Errorf("listing %s: %w", listingID, err)
	case errors.Is(err, models.ErrInvalidTransition):
		util.ModerationFailedTotal.WithLabelValues("invalid_transition").Inc()
		s.logger.Warn("Moderation rejected by status guard",
			zap.String("listing_id", listingID),
			zap.Error(err))
		return err
	default:
		util.ModerationFailedTotal.WithLabelValues("update_failed").Inc()
		s.logger.Error("Failed to update listing status",
			zap.String("listing_id", listingID),
			zap.Error(err))
		return fmt.Errorf("listing %s: %w: %w", listingID, models.ErrUpdateFailed, err)
	}
}

// HandleModerationRequested applies an asynchronously submitted decision.
// Requests that can never succeed are acknowledged so they are not redelivered.
func (s *ModerationService) HandleModerationRequested(ctx context.Context, event *models.ModerationRequestedEvent) error {
	ctx, span := util.StartSpan(ctx, "ModerationService.HandleModerationRequested")
	defer span.End()

	key := "moderation-request:" + event.EventID
	if s.idempotency != nil {
		processed, err := s.idempotency.CheckIdempotencyKey(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to check event processed: %w", err)
		}
		if processed {
			s.logger.Info("Event already processed", zap.String("event_id", event.EventID))
			return nil
		}
	}

	_, err := s.Moderate(ctx, event.ListingID, event.Decision, event.ModeratorID, event.Comment)
	if err != nil && !isPermanent(err) {
		return err
	}
	if err != nil {
		s.logger.Warn("Dropping moderation request",
			zap.String("event_id", event.EventID),
			zap.String("listing_id", event.ListingID),
			zap.Error(err))
	}

	if s.idempotency != nil {
		if err := s.idempotency.SetIdempotencyKey(ctx, key, event.ListingID, s.idempotencyTTL); err != nil {
			s.logger.Error("Failed to mark event processed", zap.Error(err))
		}
	}
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrInvalidTransition) ||
		errors.Is(err, models.ErrInvalidDecision) ||
		errors.Is(err, models.ErrValidation)
}

// Notify creates a notification from a trigger other than moderation
func (s *ModerationService) Notify(ctx context.Context, input models.NotificationInput) (*models.Notification, error) {
	if input.UserID == "" {
		return nil, &models.ValidationError{Field: "user_id", Reason: "is required"}
	}
	if input.Message == "" {
		return nil, &models.ValidationError{Field: "message", Reason: "is required"}
	}
	if !input.Type.Valid() {
		return nil, &models.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown notification type %q", input.Type)}
	}

	return s.createNotification(ctx, &models.Notification{
		UserID:    input.UserID,
		Message:   input.Message,
		Type:      input.Type,
		Link:      input.Link,
		ProductID: input.ProductID,
	})
}

func (s *ModerationService) createNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	n.ID = newID()
	n.IsRead = false
	n.Created = s.now()

	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	util.NotificationsCreatedTotal.WithLabelValues(string(n.Type)).Inc()
	s.invalidateUnread(ctx, n.UserID)

	event := &models.NotificationCreatedEvent{
		BaseEvent:      newBaseEvent(models.EventTypeNotificationCreated, n.Created),
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Message:        n.Message,
		Link:           n.Link,
	}
	if err := s.publisher.PublishNotificationCreated(ctx, event); err != nil {
		util.SideEffectFailuresTotal.WithLabelValues("publish_notification_created").Inc()
		s.logger.Error("Failed to publish NotificationCreated event", zap.Error(err))
	}

	return n, nil
}

// ListForUser returns a user's notifications newest first
func (s *ModerationService) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.notifications.ListNotifications(ctx, userID)
}

// UnreadCountForUser counts a user's unread notifications
func (s *ModerationService) UnreadCountForUser(ctx context.Context, userID string) (int, error) {
	var version int64
	cacheable := false
	if s.unread != nil {
		count, ok, err := s.unread.GetUnreadCount(ctx, userID)
		if err != nil {
			s.logger.Warn("Unread cache read failed", zap.String("user_id", userID), zap.Error(err))
		} else if ok {
			return count, nil
		}

		if version, err = s.unread.UnreadCountVersion(ctx, userID); err != nil {
			s.logger.Warn("Unread cache version read failed", zap.String("user_id", userID), zap.Error(err))
		} else {
			cacheable = true
		}
	}

	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	if cacheable {
		stored, err := s.unread.FillUnreadCount(ctx, userID, count, version, unreadCacheTTL)
		if err != nil {
			s.logger.Warn("Unread cache write failed", zap.String("user_id", userID), zap.Error(err))
		} else if !stored {
			s.logger.Debug("Notifications changed while counting, count not cached", zap.String("user_id", userID))
		}
	}
	return count, nil
}

// MarkRead flags one notification as read
func (s *ModerationService) MarkRead(ctx context.Context, notificationID string) error {
	n, err := s.notifications.MarkNotificationRead(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("notification %s: %w", notificationID, err)
	}
	s.invalidateUnread(ctx, n.UserID)
	return nil
}

// MarkAllReadForUser flags all of a user's notifications as read and reports
// whether anything changed
func (s *ModerationService) MarkAllReadForUser(ctx context.Context, userID string) (bool, error) {
	changed, err := s.notifications.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return false, err
	}
	if changed > 0 {
		s.invalidateUnread(ctx, userID)
	}
	return changed > 0, nil
}

func (s *ModerationService) invalidateUnread(ctx context.Context, userID string) {
	if s.unread == nil {
		return
	}
	if err := s.unread.InvalidateUnreadCount(ctx, userID); err != nil {
		s.logger.Warn("Unread cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func moderationNotification(l *models.Listing, decision models.Decision, comment string) *models.Notification {
	n := &models.Notification{
		UserID:    l.OwnerID,
		ProductID: l.ID,
	}

	if decision == models.DecisionApprove {
		n.Type = models.NotificationTypeSuccess
		n.Message = fmt.Sprintf(`Your listing "%s" was approved and published.`, l.Title)
		n.Link = PublicListingLink(l)
		return n
	}

	n.Type = models.NotificationTypeWarning
	n.Message = fmt.Sprintf(`Your listing "%s" was rejected.`, l.Title)
	if comment != "" {
		n.Message += " Reason: " + comment
	}
	n.Link = "/profile/products/edit/" + l.ID
	return n
}

// PublicListingLink is the storefront route of a published listing
func PublicListingLink(l *models.Listing) string {
	switch l.Category {
	case models.CategoryAccount:
		return "/accounts/" + l.ID
	case models.CategoryKey:
		return "/keys/" + l.ID
	case models.CategoryGame:
		return "/games/" + l.ID
	default:
		return "/products/" + l.ID
	}
}
