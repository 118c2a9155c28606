package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type moderationFixture struct {
	repo       *store.MemoryStore
	listings   *ListingService
	moderation *ModerationService
	stats      *AdminStatsService
	pub        *recordingPublisher
}

func newModerationFixture(t *testing.T, opts ...ModerationOption) *moderationFixture {
	t.Helper()
	repo := store.NewMemoryStore()
	pub := &recordingPublisher{}
	stats := NewAdminStatsService(repo, repo, 0)
	return &moderationFixture{
		repo:       repo,
		listings:   NewListingService(repo, pub),
		moderation: NewModerationService(repo, repo, stats, pub, opts...),
		stats:      stats,
		pub:        pub,
	}
}

func (f *moderationFixture) createListing(t *testing.T, mutate ...func(*models.ListingInput)) *models.Listing {
	t.Helper()
	in := validInput()
	for _, m := range mutate {
		m(&in)
	}
	l, err := f.listings.Create(context.Background(), in)
	require.NoError(t, err)
	return l
}

func TestModerate_ApproveKeyListing(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	listing := f.createListing(t)

	res, err := f.moderation.Moderate(ctx, listing.ID, models.DecisionApprove, "moderator-7", "")
	require.NoError(t, err)

	assert.Equal(t, models.ListingStatusActive, res.Listing.Status)
	assert.Equal(t, models.ActorID("moderator-7"), res.Listing.ModeratedBy)
	require.NotNil(t, res.Listing.ModeratedAt)

	require.NotNil(t, res.Notification)
	assert.Equal(t, "seller-1", res.Notification.UserID)
	assert.Equal(t, models.NotificationTypeSuccess, res.Notification.Type)
	assert.Equal(t, `Your listing "Test Key" was approved and published.`, res.Notification.Message)
	assert.Equal(t, "/keys/"+listing.ID, res.Notification.Link)
	assert.Equal(t, listing.ID, res.Notification.ProductID)
	assert.False(t, res.Notification.IsRead)

	require.NotNil(t, res.Transaction)
	assert.Zero(t, res.Transaction.Amount)
	assert.Equal(t, models.TransactionStatusCompleted, res.Transaction.Status)
	assert.Equal(t, "system", res.Transaction.PaymentMethod)
	assert.Equal(t, listing.ID, res.Transaction.ProductID)
	assert.Equal(t, "seller-1", res.Transaction.UserID)
	assert.NotNil(t, res.Transaction.CompletedAt)

	stored, err := f.listings.GetByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusActive, stored.Status)

	catalog, err := f.listings.ListByCategory(ctx, models.CategoryKey)
	require.NoError(t, err)
	require.Len(t, catalog, 1)

	stats, err := f.stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalListings)
	assert.Zero(t, stats.PendingListings)
	assert.Equal(t, 1, stats.TotalSales)
	assert.Zero(t, stats.TotalRevenue)
	require.Len(t, stats.RecentTransactions, 1)

	require.Len(t, f.pub.moderated, 1)
	assert.Equal(t, models.DecisionApprove, f.pub.moderated[0].Decision)
	assert.Equal(t, models.ListingStatusActive, f.pub.moderated[0].Status)
	require.Len(t, f.pub.notifications, 1)
}

func TestModerate_ApproveLinks(t *testing.T) {
	tests := []struct {
		category models.Category
		prefix   string
	}{
		{models.CategoryAccount, "/accounts/"},
		{models.CategoryKey, "/keys/"},
		{models.CategoryGame, "/games/"},
		{models.CategorySkin, "/products/"},
		{models.CategoryBalance, "/products/"},
		{models.CategoryService, "/products/"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			f := newModerationFixture(t)
			listing := f.createListing(t, func(in *models.ListingInput) { in.Category = tt.category })

			res, err := f.moderation.Moderate(context.Background(), listing.ID, models.DecisionApprove, "mod", "")
			require.NoError(t, err)
			assert.Equal(t, tt.prefix+listing.ID, res.Notification.Link)
		})
	}
}

func TestModerate_RejectWithComment(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	listing := f.createListing(t)

	res, err := f.moderation.Moderate(ctx, listing.ID, models.DecisionReject, "mod", "Blurry images")
	require.NoError(t, err)

	assert.Equal(t, models.ListingStatusRejected, res.Listing.Status)
	assert.Equal(t, "Blurry images", res.Listing.ModerationComment)
	assert.Equal(t, models.NotificationTypeWarning, res.Notification.Type)
	assert.Equal(t, `Your listing "Test Key" was rejected. Reason: Blurry images`, res.Notification.Message)
	assert.Equal(t, "/profile/products/edit/"+listing.ID, res.Notification.Link)
	assert.Nil(t, res.Transaction)

	txns, err := f.stats.Transactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestModerate_RejectWithoutComment(t *testing.T) {
	f := newModerationFixture(t)
	listing := f.createListing(t)

	res, err := f.moderation.Moderate(context.Background(), listing.ID, models.DecisionReject, "mod", "")
	require.NoError(t, err)
	assert.Equal(t, `Your listing "Test Key" was rejected.`, res.Notification.Message)
}

func TestModerate_OnlyFromPending(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	listing := f.createListing(t)

	_, err := f.moderation.Moderate(ctx, listing.ID, models.DecisionReject, "mod", "spam")
	require.NoError(t, err)

	_, err = f.moderation.Moderate(ctx, listing.ID, models.DecisionApprove, "mod", "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, err := f.listings.GetByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusRejected, stored.Status)

	notes, err := f.moderation.ListForUser(ctx, "seller-1")
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	txns, err := f.stats.Transactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestModerate_ConcurrentDecisionsApplyOnce(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	listing := f.createListing(t)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.moderation.Moderate(ctx, listing.ID, models.DecisionApprove, "mod", "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, succeeded)

	notes, _ := f.moderation.ListForUser(ctx, "seller-1")
	assert.Len(t, notes, 1)
	txns, _ := f.stats.Transactions(ctx)
	assert.Len(t, txns, 1)
}

func TestModerate_Failures(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	listing := f.createListing(t)

	_, err := f.moderation.Moderate(ctx, "missing", models.DecisionApprove, "mod", "")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.moderation.Moderate(ctx, listing.ID, "maybe", "mod", "")
	assert.ErrorIs(t, err, models.ErrInvalidDecision)

	_, err = f.moderation.Moderate(ctx, listing.ID, models.DecisionApprove, "", "")
	assert.ErrorIs(t, err, models.ErrValidation)

	notes, _ := f.moderation.ListForUser(ctx, "seller-1")
	assert.Empty(t, notes)
	assert.Empty(t, f.pub.moderated)
}

func TestModerate_UpdateFailed(t *testing.T) {
	repo := store.NewMemoryStore()
	stats := NewAdminStatsService(repo, repo, 0)
	listings := NewListingService(repo, nil)
	moderation := NewModerationService(brokenTransitions{repo}, repo, stats, nil)
	ctx := context.Background()

	listing, err := listings.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = moderation.Moderate(ctx, listing.ID, models.DecisionApprove, "mod", "")
	assert.ErrorIs(t, err, models.ErrUpdateFailed)
	assert.ErrorIs(t, err, errBackend)

	notes, _ := moderation.ListForUser(ctx, "seller-1")
	assert.Empty(t, notes)
	txns, _ := stats.Transactions(ctx)
	assert.Empty(t, txns)
}

func TestModerate_AuditFailureKeepsDecision(t *testing.T) {
	repo := store.NewMemoryStore()
	listings := NewListingService(repo, nil)
	moderation := NewModerationService(repo, repo, failingAudit{}, nil)
	ctx := context.Background()

	listing, err := listings.Create(ctx, validInput())
	require.NoError(t, err)

	res, err := moderation.Moderate(ctx, listing.ID, models.DecisionApprove, "mod", "")
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusActive, res.Listing.Status)
	assert.NotNil(t, res.Notification)
	assert.Nil(t, res.Transaction)
}

func TestModerate_Lock(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{}}
	f := newModerationFixture(t, WithLocker(locker, time.Second))
	ctx := context.Background()
	busy := f.createListing(t)
	free := f.createListing(t)

	locker.held["moderation:"+busy.ID] = true
	_, err := f.moderation.Moderate(ctx, busy.ID, models.DecisionApprove, "mod", "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = f.moderation.Moderate(ctx, free.ID, models.DecisionApprove, "mod", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"moderation:" + free.ID}, locker.released)
	assert.False(t, locker.held["moderation:"+free.ID])
}

func TestModerate_LockUnavailableFallsBackToStatusGuard(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{}, err: errBackend}
	f := newModerationFixture(t, WithLocker(locker, 0))
	listing := f.createListing(t)

	res, err := f.moderation.Moderate(context.Background(), listing.ID, models.DecisionApprove, "mod", "")
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusActive, res.Listing.Status)
}

func TestHandleModerationRequested(t *testing.T) {
	idem := &fakeIdempotency{keys: map[string]bool{}}
	f := newModerationFixture(t, WithIdempotency(idem, time.Hour))
	ctx := context.Background()
	listing := f.createListing(t)

	event := &models.ModerationRequestedEvent{
		BaseEvent:   models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeModerationRequested, Timestamp: time.Now()},
		ListingID:   listing.ID,
		Decision:    models.DecisionApprove,
		ModeratorID: "mod",
	}

	require.NoError(t, f.moderation.HandleModerationRequested(ctx, event))
	assert.True(t, idem.keys["moderation-request:evt-1"])

	// redelivery is acknowledged without a second decision
	require.NoError(t, f.moderation.HandleModerationRequested(ctx, event))
	notes, _ := f.moderation.ListForUser(ctx, "seller-1")
	assert.Len(t, notes, 1)

	// a decision on a listing that is no longer pending can never succeed
	again := *event
	again.EventID = "evt-2"
	require.NoError(t, f.moderation.HandleModerationRequested(ctx, &again))
	assert.True(t, idem.keys["moderation-request:evt-2"])
}

func TestHandleModerationRequested_TransientErrorIsRetried(t *testing.T) {
	idem := &fakeIdempotency{keys: map[string]bool{}}
	repo := store.NewMemoryStore()
	listings := NewListingService(repo, nil)
	moderation := NewModerationService(brokenTransitions{repo}, repo, nil, nil, WithIdempotency(idem, 0))
	ctx := context.Background()

	listing, err := listings.Create(ctx, validInput())
	require.NoError(t, err)

	err = moderation.HandleModerationRequested(ctx, &models.ModerationRequestedEvent{
		BaseEvent:   models.BaseEvent{EventID: "evt-9"},
		ListingID:   listing.ID,
		Decision:    models.DecisionReject,
		ModeratorID: "mod",
	})
	assert.ErrorIs(t, err, models.ErrUpdateFailed)
	assert.False(t, idem.keys["moderation-request:evt-9"])
}

func TestNotifications_ReadTracking(t *testing.T) {
	cache := newFakeUnreadCache()
	f := newModerationFixture(t, WithUnreadCache(cache))
	ctx := context.Background()

	first, err := f.moderation.Notify(ctx, models.NotificationInput{
		UserID: "u1", Message: "Balance topped up by 500", Type: models.NotificationTypeInfo,
	})
	require.NoError(t, err)
	second, err := f.moderation.Notify(ctx, models.NotificationInput{
		UserID: "u1", Message: "Purchase completed", Type: models.NotificationTypeSuccess, Link: "/profile/purchases",
	})
	require.NoError(t, err)

	list, err := f.moderation.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	count, err := f.moderation.UnreadCountForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, cache.counts["u1"])

	require.NoError(t, f.moderation.MarkRead(ctx, first.ID))
	_, cached := cache.counts["u1"]
	assert.False(t, cached)

	count, err = f.moderation.UnreadCountForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, f.moderation.MarkRead(ctx, "missing"), models.ErrNotFound)

	changed, err := f.moderation.MarkAllReadForUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.moderation.MarkAllReadForUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, changed)

	count, err = f.moderation.UnreadCountForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)

	empty, err := f.moderation.ListForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUnreadCount_WriteDuringCountIsNotCached(t *testing.T) {
	repo := store.NewMemoryStore()
	counts := &countHook{MemoryStore: repo}
	cache := newFakeUnreadCache()
	moderation := NewModerationService(repo, counts, nil, nil, WithUnreadCache(cache))
	ctx := context.Background()

	counts.after = func() {
		_, err := moderation.Notify(ctx, models.NotificationInput{
			UserID: "u1", Message: "Your listing was approved", Type: models.NotificationTypeSuccess,
		})
		require.NoError(t, err)
	}

	first, err := moderation.UnreadCountForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, first)
	_, cached := cache.counts["u1"]
	assert.False(t, cached, "a count read before the write must not be cached")

	second, err := moderation.UnreadCountForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, cache.counts["u1"])
}

func TestNotify_Validation(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	_, err := f.moderation.Notify(ctx, models.NotificationInput{Message: "hi", Type: models.NotificationTypeInfo})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.moderation.Notify(ctx, models.NotificationInput{UserID: "u1", Type: models.NotificationTypeInfo})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.moderation.Notify(ctx, models.NotificationInput{UserID: "u1", Message: "hi", Type: "urgent"})
	assert.ErrorIs(t, err, models.ErrValidation)
}
