package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() models.ListingInput {
	return models.ListingInput{
		OwnerID:   "seller-1",
		Title:     "Test Key",
		Price:     100,
		Category:  models.CategoryKey,
		OfferType: models.OfferTypeSale,
		Images:    []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"},
	}
}

func newListingService(t *testing.T) (*ListingService, *store.MemoryStore, *recordingPublisher) {
	t.Helper()
	repo := store.NewMemoryStore()
	pub := &recordingPublisher{}
	return NewListingService(repo, pub), repo, pub
}

func TestListingService_Create(t *testing.T) {
	svc, _, pub := newListingService(t)

	listing, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, listing.ID)
	assert.Equal(t, models.ListingStatusPending, listing.Status)
	assert.Equal(t, listing.Created, listing.Updated)
	assert.Equal(t, "https://cdn.example.com/a.png", listing.FeaturedImage)

	got, err := svc.GetByID(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.Title, got.Title)

	require.Len(t, pub.created, 1)
	assert.Equal(t, listing.ID, pub.created[0].ListingID)
	assert.Equal(t, models.EventTypeListingCreated, pub.created[0].EventType)
}

func TestListingService_ReturnedAttributesAreDetached(t *testing.T) {
	svc, _, _ := newListingService(t)
	ctx := context.Background()

	level := 10
	in := validInput()
	in.Category = models.CategoryAccount
	in.Attributes.Level = &level

	listing, err := svc.Create(ctx, in)
	require.NoError(t, err)
	*listing.Attributes.Level = 999
	level = 42

	got, err := svc.GetByID(ctx, listing.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Attributes.Level)
	assert.Equal(t, 10, *got.Attributes.Level)
	assert.Equal(t, got.Created, got.Updated)
}

func TestListingService_CreatePublishFailureIsNotFatal(t *testing.T) {
	svc, _, pub := newListingService(t)
	pub.err = errBackend

	listing, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, listing.ID)
}

func TestListingService_CreateValidation(t *testing.T) {
	discount := func(v float64) *float64 { return &v }

	tests := []struct {
		name   string
		mutate func(*models.ListingInput)
		field  string
	}{
		{"zero price", func(in *models.ListingInput) { in.Price = 0 }, "price"},
		{"negative price", func(in *models.ListingInput) { in.Price = -5 }, "price"},
		{"no images", func(in *models.ListingInput) { in.Images = nil }, "images"},
		{"discount above price", func(in *models.ListingInput) { in.DiscountPrice = discount(150) }, "discount_price"},
		{"discount equal to price", func(in *models.ListingInput) { in.DiscountPrice = discount(100) }, "discount_price"},
		{"featured image outside images", func(in *models.ListingInput) { in.FeaturedImage = "https://elsewhere/x.png" }, "featured_image"},
		{"unknown category", func(in *models.ListingInput) { in.Category = "vehicle" }, "category"},
		{"unknown offer type", func(in *models.ListingInput) { in.OfferType = "auction" }, "offer_type"},
		{"missing owner", func(in *models.ListingInput) { in.OwnerID = "" }, "owner_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, pub := newListingService(t)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrValidation)

			var ve *models.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)

			all, _ := repo.ListListings(context.Background(), models.ListingFilter{})
			assert.Empty(t, all)
			assert.Empty(t, pub.created)
		})
	}
}

func TestListingService_UpdateKeepsIdentity(t *testing.T) {
	svc, _, _ := newListingService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	later := created.Created.Add(time.Minute)
	svc.now = func() time.Time { return later }

	title := "Renamed Key"
	price := 80.0
	updated, err := svc.Update(ctx, created.ID, models.ListingUpdate{Title: &title, Price: &price})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.OwnerID, updated.OwnerID)
	assert.Equal(t, created.Created, updated.Created)
	assert.Equal(t, models.ListingStatusPending, updated.Status)
	assert.Equal(t, "Renamed Key", updated.Title)
	assert.Equal(t, 80.0, updated.Price)
	assert.Equal(t, later, updated.Updated)
}

func TestListingService_UpdateReplacesImages(t *testing.T) {
	svc, _, _ := newListingService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, models.ListingUpdate{Images: []string{"https://cdn.example.com/c.png"}})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/c.png", updated.FeaturedImage)
}

func TestListingService_UpdateErrors(t *testing.T) {
	svc, _, _ := newListingService(t)
	ctx := context.Background()

	title := "x"
	_, err := svc.Update(ctx, "missing", models.ListingUpdate{Title: &title})
	assert.ErrorIs(t, err, models.ErrNotFound)

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	zero := 0.0
	_, err = svc.Update(ctx, created.ID, models.ListingUpdate{Price: &zero})
	assert.ErrorIs(t, err, models.ErrValidation)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Price)
}

func TestListingService_Delete(t *testing.T) {
	svc, _, _ := newListingService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), models.ErrNotFound)
}

func TestListingService_ListByCategoryOnlyActive(t *testing.T) {
	svc, repo, _ := newListingService(t)
	ctx := context.Background()

	pending, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	active, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = repo.TransitionListing(ctx, active.ID, models.StatusTransition{
		From: models.ListingStatusPending, To: models.ListingStatusActive, ModeratedBy: "mod", ModeratedAt: time.Now(),
	})
	require.NoError(t, err)

	catalog, err := svc.ListByCategory(ctx, models.CategoryKey)
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, active.ID, catalog[0].ID)
	assert.NotEqual(t, pending.ID, catalog[0].ID)

	games, err := svc.ListByCategory(ctx, models.CategoryGame)
	require.NoError(t, err)
	assert.Empty(t, games)

	_, err = svc.ListByCategory(ctx, "vehicle")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestListingService_OwnerStatsAndQueue(t *testing.T) {
	svc, repo, _ := newListingService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		l, err := svc.Create(ctx, validInput())
		require.NoError(t, err)
		ids = append(ids, l.ID)
	}
	other := validInput()
	other.OwnerID = "seller-2"
	_, err := svc.Create(ctx, other)
	require.NoError(t, err)

	_, err = repo.TransitionListing(ctx, ids[0], models.StatusTransition{
		From: models.ListingStatusPending, To: models.ListingStatusRejected, ModeratedBy: "mod", ModeratedAt: time.Now(),
	})
	require.NoError(t, err)

	stats, err := svc.OwnerStats(ctx, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, models.ListingStats{Total: 3, Pending: 2, Rejected: 1}, *stats)

	queue, err := svc.PendingQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, queue, 3)
}

func TestListingService_ClearStalePending(t *testing.T) {
	svc, _, _ := newListingService(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	stale, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(20 * time.Hour) }
	fresh, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(30 * time.Hour) }
	n, err := svc.ClearStalePending(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.GetByID(ctx, stale.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = svc.GetByID(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestListingService_ResetAllToActive(t *testing.T) {
	svc, _, _ := newListingService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, validInput())
		require.NoError(t, err)
	}

	n, err := svc.ResetAllToActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	queue, err := svc.PendingQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
}
