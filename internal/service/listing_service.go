package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListingService owns the listing collection
type ListingService struct {
	repo      store.ListingRepository
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewListingService creates a new listing service; publisher may be nil
func NewListingService(repo store.ListingRepository, publisher EventPublisher) *ListingService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &ListingService{
		repo:      repo,
		publisher: publisher,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

func newID() string {
	return uuid.New().String()
}

// Create validates input and stores a new pending listing
func (s *ListingService) Create(ctx context.Context, input models.ListingInput) (*models.Listing, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.Create")
	defer span.End()

	now := s.now()
	listing := &models.Listing{
		ID:            newID(),
		OwnerID:       input.OwnerID,
		Title:         input.Title,
		Description:   input.Description,
		Price:         input.Price,
		DiscountPrice: input.DiscountPrice,
		Category:      input.Category,
		OfferType:     input.OfferType,
		Images:        append([]string(nil), input.Images...),
		FeaturedImage: input.FeaturedImage,
		Attributes:    input.Attributes.Clone(),
		Status:        models.ListingStatusPending,
		Created:       now,
		Updated:       now,
	}
	if listing.FeaturedImage == "" && len(listing.Images) > 0 {
		listing.FeaturedImage = listing.Images[0]
	}

	if listing.OwnerID == "" {
		return nil, s.invalid(&models.ValidationError{Field: "owner_id", Reason: "is required"})
	}
	if err := validateListing(listing); err != nil {
		return nil, s.invalid(err)
	}

	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	util.ListingsCreatedTotal.Inc()
	s.logger.Info("Listing created",
		zap.String("listing_id", listing.ID),
		zap.String("owner_id", listing.OwnerID),
		zap.String("category", string(listing.Category)))

	event := &models.ListingCreatedEvent{
		BaseEvent: newBaseEvent(models.EventTypeListingCreated, now),
		ListingID: listing.ID,
		OwnerID:   listing.OwnerID,
		Category:  listing.Category,
		Title:     listing.Title,
	}
	if err := s.publisher.PublishListingCreated(ctx, event); err != nil {
		util.SideEffectFailuresTotal.WithLabelValues("publish_listing_created").Inc()
		s.logger.Error("Failed to publish ListingCreated event", zap.Error(err))
	}

	return listing, nil
}

// GetByID retrieves a listing by ID
func (s *ListingService) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	listing, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", id, err)
	}
	return listing, nil
}

// List returns every listing matching filter in insertion order
func (s *ListingService) List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	return s.repo.ListListings(ctx, filter)
}

// ListByCategory is the public catalog: active listings of one category
func (s *ListingService) ListByCategory(ctx context.Context, category models.Category) ([]models.Listing, error) {
	if !category.Valid() {
		return nil, &models.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
	}
	return s.repo.ListListings(ctx, models.ListingFilter{
		Category: category,
		Status:   models.ListingStatusActive,
	})
}

// Update merges the set fields of upd into the listing and refreshes Updated
func (s *ListingService) Update(ctx context.Context, id string, upd models.ListingUpdate) (*models.Listing, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.Update")
	defer span.End()

	listing, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", id, err)
	}

	applyUpdate(listing, upd)
	if err := validateListing(listing); err != nil {
		return nil, s.invalid(err)
	}
	listing.Updated = s.now()

	updated, err := s.repo.UpdateListing(ctx, listing)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("listing %s: %w", id, err)
		}
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}

	s.logger.Info("Listing updated", zap.String("listing_id", id))
	return updated, nil
}

// Delete removes a listing permanently. Notifications referencing it are kept.
func (s *ListingService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteListing(ctx, id); err != nil {
		return fmt.Errorf("listing %s: %w", id, err)
	}
	util.ListingsDeletedTotal.Inc()
	s.logger.Info("Listing deleted", zap.String("listing_id", id))
	return nil
}

// OwnerStats counts an owner's listings per status
func (s *ListingService) OwnerStats(ctx context.Context, ownerID string) (*models.ListingStats, error) {
	listings, err := s.repo.ListListings(ctx, models.ListingFilter{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}

	stats := &models.ListingStats{Total: len(listings)}
	for _, l := range listings {
		switch l.Status {
		case models.ListingStatusActive:
			stats.Active++
		case models.ListingStatusPending:
			stats.Pending++
		case models.ListingStatusSold:
			stats.Sold++
		case models.ListingStatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

// PendingQueue returns the listings awaiting moderation
func (s *ListingService) PendingQueue(ctx context.Context) ([]models.Listing, error) {
	return s.repo.ListListings(ctx, models.ListingFilter{Status: models.ListingStatusPending})
}

// ResetAllToActive forces every listing to active. It is an administrative
// escape hatch for demo data and bypasses the moderation state machine.
func (s *ListingService) ResetAllToActive(ctx context.Context) (int, error) {
	n, err := s.repo.ResetListingStatuses(ctx, models.ListingStatusActive, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to reset listing statuses: %w", err)
	}
	s.logger.Warn("All listings reset to active", zap.Int("count", n))
	return n, nil
}

// ClearStalePending deletes pending listings older than maxAge
func (s *ListingService) ClearStalePending(ctx context.Context, maxAge time.Duration) (int, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.ClearStalePending")
	defer span.End()

	cutoff := s.now().Add(-maxAge)
	n, err := s.repo.DeletePendingBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear stale listings: %w", err)
	}
	if n > 0 {
		util.ListingsPurgedTotal.Add(float64(n))
		s.logger.Info("Stale pending listings removed",
			zap.Int("count", n),
			zap.Time("cutoff", cutoff))
	}
	return n, nil
}

func (s *ListingService) invalid(err error) error {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		util.ListingValidationFailedTotal.WithLabelValues(ve.Field).Inc()
	}
	return err
}

func applyUpdate(l *models.Listing, upd models.ListingUpdate) {
	if upd.Title != nil {
		l.Title = *upd.Title
	}
	if upd.Description != nil {
		l.Description = *upd.Description
	}
	if upd.Price != nil {
		l.Price = *upd.Price
	}
	if upd.DiscountPrice != nil {
		v := *upd.DiscountPrice
		l.DiscountPrice = &v
	}
	if upd.Category != nil {
		l.Category = *upd.Category
	}
	if upd.OfferType != nil {
		l.OfferType = *upd.OfferType
	}
	if upd.Images != nil {
		l.Images = append([]string(nil), upd.Images...)
		if upd.FeaturedImage == nil && !contains(l.Images, l.FeaturedImage) && len(l.Images) > 0 {
			l.FeaturedImage = l.Images[0]
		}
	}
	if upd.FeaturedImage != nil {
		l.FeaturedImage = *upd.FeaturedImage
	}
	if upd.Attributes != nil {
		l.Attributes = upd.Attributes.Clone()
	}
}

// validateListing rejects data that would corrupt the catalog
func validateListing(l *models.Listing) error {
	if l.Price <= 0 {
		return &models.ValidationError{Field: "price", Reason: "must be positive"}
	}
	if l.DiscountPrice != nil && (*l.DiscountPrice <= 0 || *l.DiscountPrice >= l.Price) {
		return &models.ValidationError{Field: "discount_price", Reason: "must be positive and below price"}
	}
	if len(l.Images) == 0 {
		return &models.ValidationError{Field: "images", Reason: "at least one image is required"}
	}
	if !contains(l.Images, l.FeaturedImage) {
		return &models.ValidationError{Field: "featured_image", Reason: "must be one of images"}
	}
	if !l.Category.Valid() {
		return &models.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", l.Category)}
	}
	if !l.OfferType.Valid() {
		return &models.ValidationError{Field: "offer_type", Reason: fmt.Sprintf("unknown offer type %q", l.OfferType)}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
