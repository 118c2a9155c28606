package store

import (
	"context"
	"sync"
	"time"

	"marketplace-service/internal/models"
)

// MemoryStore keeps every collection in process memory. Each collection has
// its own lock so listing writes never block notification reads.
type MemoryStore struct {
	listingsMu   sync.RWMutex
	listings     map[string]*models.Listing
	listingOrder []string

	notificationsMu sync.RWMutex
	notifications   []*models.Notification

	transactionsMu sync.RWMutex
	transactions   []*models.AuditTransaction
}

var _ Repository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[string]*models.Listing),
	}
}

// Close is a no-op kept for Repository
func (m *MemoryStore) Close() error {
	return nil
}

// CreateListing stores a copy of listing
func (m *MemoryStore) CreateListing(ctx context.Context, listing *models.Listing) error {
	m.listingsMu.Lock()
	defer m.listingsMu.Unlock()

	if _, exists := m.listings[listing.ID]; exists {
		return &models.ValidationError{Field: "id", Reason: "already exists"}
	}
	m.listings[listing.ID] = listing.Clone()
	m.listingOrder = append(m.listingOrder, listing.ID)
	return nil
}

// GetListing retrieves a listing by ID
func (m *MemoryStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	m.listingsMu.RLock()
	defer m.listingsMu.RUnlock()

	l, ok := m.listings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return l.Clone(), nil
}

// ListListings returns matching listings in insertion order
func (m *MemoryStore) ListListings(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	m.listingsMu.RLock()
	defer m.listingsMu.RUnlock()

	result := make([]models.Listing, 0, len(m.listingOrder))
	for _, id := range m.listingOrder {
		l := m.listings[id]
		if filter.Match(l) {
			result = append(result, *l.Clone())
		}
	}
	return result, nil
}

// UpdateListing copies the editable fields of listing onto the stored row
func (m *MemoryStore) UpdateListing(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	m.listingsMu.Lock()
	defer m.listingsMu.Unlock()

	cur, ok := m.listings[listing.ID]
	if !ok {
		return nil, models.ErrNotFound
	}

	next := listing.Clone()
	cur.Title = next.Title
	cur.Description = next.Description
	cur.Price = next.Price
	cur.DiscountPrice = next.DiscountPrice
	cur.Category = next.Category
	cur.OfferType = next.OfferType
	cur.Images = next.Images
	cur.FeaturedImage = next.FeaturedImage
	cur.Attributes = next.Attributes
	cur.Updated = next.Updated

	return cur.Clone(), nil
}

// DeleteListing removes a listing permanently
func (m *MemoryStore) DeleteListing(ctx context.Context, id string) error {
	m.listingsMu.Lock()
	defer m.listingsMu.Unlock()

	if _, ok := m.listings[id]; !ok {
		return models.ErrNotFound
	}
	m.deleteLocked(id)
	return nil
}

func (m *MemoryStore) deleteLocked(id string) {
	delete(m.listings, id)
	for i, oid := range m.listingOrder {
		if oid == id {
			m.listingOrder = append(m.listingOrder[:i], m.listingOrder[i+1:]...)
			break
		}
	}
}

// TransitionListing applies t only if the listing is still in t.From
func (m *MemoryStore) TransitionListing(ctx context.Context, id string, t models.StatusTransition) (*models.Listing, error) {
	m.listingsMu.Lock()
	defer m.listingsMu.Unlock()

	cur, ok := m.listings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if cur.Status != t.From {
		return nil, &models.TransitionError{ListingID: id, From: cur.Status, To: t.To}
	}

	at := t.ModeratedAt
	cur.Status = t.To
	cur.ModeratedBy = t.ModeratedBy
	cur.ModeratedAt = &at
	if t.ModerationComment != "" {
		cur.ModerationComment = t.ModerationComment
	}
	cur.Updated = at

	return cur.Clone(), nil
}

// ResetListingStatuses forces every listing into status
func (m *MemoryStore) ResetListingStatuses(ctx context.Context, status models.ListingStatus, at time.Time) (int, error) {
	m.listingsMu.Lock()
	defer m.listingsMu.Unlock()

	for _, l := range m.listings {
		l.Status = status
		l.Updated = at
	}
	return len(m.listings), nil
}

// DeletePendingBefore drops pending listings created before cutoff
func (m *MemoryStore) DeletePendingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.listingsMu.Lock()
	defer m.listingsMu.Unlock()

	var stale []string
	for _, id := range m.listingOrder {
		l := m.listings[id]
		if l.Status == models.ListingStatusPending && l.Created.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		m.deleteLocked(id)
	}
	return len(stale), nil
}

// CreateNotification appends a notification
func (m *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	m.notificationsMu.Lock()
	defer m.notificationsMu.Unlock()

	cp := *n
	m.notifications = append(m.notifications, &cp)
	return nil
}

// ListNotifications returns a user's notifications newest first
func (m *MemoryStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	m.notificationsMu.RLock()
	defer m.notificationsMu.RUnlock()

	result := make([]models.Notification, 0)
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if n := m.notifications[i]; n.UserID == userID {
			result = append(result, *n)
		}
	}
	return result, nil
}

// CountUnread counts a user's unread notifications
func (m *MemoryStore) CountUnread(ctx context.Context, userID string) (int, error) {
	m.notificationsMu.RLock()
	defer m.notificationsMu.RUnlock()

	count := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// MarkNotificationRead flags one notification as read
func (m *MemoryStore) MarkNotificationRead(ctx context.Context, id string) (*models.Notification, error) {
	m.notificationsMu.Lock()
	defer m.notificationsMu.Unlock()

	for _, n := range m.notifications {
		if n.ID == id {
			n.IsRead = true
			cp := *n
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

// MarkAllNotificationsRead flags every unread notification of a user
func (m *MemoryStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	m.notificationsMu.Lock()
	defer m.notificationsMu.Unlock()

	changed := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			changed++
		}
	}
	return changed, nil
}

// CreateTransaction appends an audit entry
func (m *MemoryStore) CreateTransaction(ctx context.Context, txn *models.AuditTransaction) error {
	m.transactionsMu.Lock()
	defer m.transactionsMu.Unlock()

	cp := *txn
	m.transactions = append(m.transactions, &cp)
	return nil
}

// ListTransactions returns audit entries newest first
func (m *MemoryStore) ListTransactions(ctx context.Context, userID string) ([]models.AuditTransaction, error) {
	m.transactionsMu.RLock()
	defer m.transactionsMu.RUnlock()

	result := make([]models.AuditTransaction, 0, len(m.transactions))
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if t := m.transactions[i]; userID == "" || t.UserID == userID {
			result = append(result, *t)
		}
	}
	return result, nil
}

// UpdateTransaction changes the status of an audit entry
func (m *MemoryStore) UpdateTransaction(ctx context.Context, id string, status models.TransactionStatus, notes string, completedAt *time.Time) (*models.AuditTransaction, error) {
	m.transactionsMu.Lock()
	defer m.transactionsMu.Unlock()

	for _, t := range m.transactions {
		if t.ID != id {
			continue
		}
		t.Status = status
		if completedAt != nil {
			at := *completedAt
			t.CompletedAt = &at
		}
		if notes != "" {
			t.Notes = notes
		}
		cp := *t
		return &cp, nil
	}
	return nil, models.ErrNotFound
}

// DeleteTransactions clears the audit log
func (m *MemoryStore) DeleteTransactions(ctx context.Context) error {
	m.transactionsMu.Lock()
	defer m.transactionsMu.Unlock()

	m.transactions = nil
	return nil
}
