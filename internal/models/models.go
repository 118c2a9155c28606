package models

import "time"

// Category is the closed set of listing categories
type Category string

const (
	CategoryAccount Category = "account"
	CategoryBalance Category = "balance"
	CategoryGame    Category = "game"
	CategorySkin    Category = "skin"
	CategoryKey     Category = "key"
	CategoryService Category = "service"
)

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	switch c {
	case CategoryAccount, CategoryBalance, CategoryGame, CategorySkin, CategoryKey, CategoryService:
		return true
	}
	return false
}

// OfferType describes how a listing is offered
type OfferType string

const (
	OfferTypeSale     OfferType = "sale"
	OfferTypeRent     OfferType = "rent"
	OfferTypeExchange OfferType = "exchange"
	OfferTypeDiscount OfferType = "discount"
)

func (o OfferType) Valid() bool {
	switch o {
	case OfferTypeSale, OfferTypeRent, OfferTypeExchange, OfferTypeDiscount:
		return true
	}
	return false
}

// ListingStatus is the lifecycle state of a listing
type ListingStatus string

// Listing statuses
const (
	ListingStatusPending  ListingStatus = "pending"
	ListingStatusActive   ListingStatus = "active"
	ListingStatusSold     ListingStatus = "sold"
	ListingStatusRejected ListingStatus = "rejected"
)

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingStatusPending, ListingStatusActive, ListingStatusSold, ListingStatusRejected:
		return true
	}
	return false
}

// ActorID identifies the caller performing an administrative action.
// It is supplied by the authenticating boundary and is not verified here.
type ActorID string

// ListingAttributes holds category specific fields. Presence is advisory.
type ListingAttributes struct {
	// accounts
	Level *int  `json:"level,omitempty"`
	Games *int  `json:"games,omitempty"`
	Hours *int  `json:"hours,omitempty"`
	Prime *bool `json:"prime,omitempty"`
	CSGO  *bool `json:"csgo,omitempty"`
	Dota2 *bool `json:"dota2,omitempty"`

	// skins
	Game   string `json:"game,omitempty"`
	Rarity string `json:"rarity,omitempty"`
	Wear   string `json:"wear,omitempty"`

	// keys
	Platform string `json:"platform,omitempty"`
	Region   string `json:"region,omitempty"`

	// rent offers, price is per day
	RentDuration *int     `json:"rent_duration,omitempty"`
	RentPrice    *float64 `json:"rent_price,omitempty"`
}

// Clone copies every pointer target so the copy shares nothing with a
// stored row
func (a ListingAttributes) Clone() ListingAttributes {
	c := a
	c.Level = clonePtr(a.Level)
	c.Games = clonePtr(a.Games)
	c.Hours = clonePtr(a.Hours)
	c.Prime = clonePtr(a.Prime)
	c.CSGO = clonePtr(a.CSGO)
	c.Dota2 = clonePtr(a.Dota2)
	c.RentDuration = clonePtr(a.RentDuration)
	c.RentPrice = clonePtr(a.RentPrice)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Listing is a single sellable item
type Listing struct {
	ID            string            `json:"id"`
	OwnerID       string            `json:"owner_id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Price         float64           `json:"price"`
	DiscountPrice *float64          `json:"discount_price,omitempty"`
	Category      Category          `json:"category"`
	OfferType     OfferType         `json:"offer_type"`
	Images        []string          `json:"images"`
	FeaturedImage string            `json:"featured_image"`
	Status        ListingStatus     `json:"status"`
	Attributes    ListingAttributes `json:"attributes"`
	Created       time.Time         `json:"created"`
	Updated       time.Time         `json:"updated"`

	ModeratedBy       ActorID    `json:"moderated_by,omitempty"`
	ModeratedAt       *time.Time `json:"moderated_at,omitempty"`
	ModerationComment string     `json:"moderation_comment,omitempty"`
}

// Clone returns a deep copy so callers never share mutable state with a store
func (l *Listing) Clone() *Listing {
	c := *l
	c.Images = append([]string(nil), l.Images...)
	c.DiscountPrice = clonePtr(l.DiscountPrice)
	c.ModeratedAt = clonePtr(l.ModeratedAt)
	c.Attributes = l.Attributes.Clone()
	return &c
}

// ListingInput carries every caller settable field of a new listing
type ListingInput struct {
	OwnerID       string            `json:"owner_id" binding:"required"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Price         float64           `json:"price"`
	DiscountPrice *float64          `json:"discount_price,omitempty"`
	Category      Category          `json:"category" binding:"required"`
	OfferType     OfferType         `json:"offer_type" binding:"required"`
	Images        []string          `json:"images"`
	FeaturedImage string            `json:"featured_image"`
	Attributes    ListingAttributes `json:"attributes"`
}

// ListingUpdate is a partial update; nil fields are left untouched.
// Identity, ownership, creation time and status are not part of it.
type ListingUpdate struct {
	Title         *string            `json:"title,omitempty"`
	Description   *string            `json:"description,omitempty"`
	Price         *float64           `json:"price,omitempty"`
	DiscountPrice *float64           `json:"discount_price,omitempty"`
	Category      *Category          `json:"category,omitempty"`
	OfferType     *OfferType         `json:"offer_type,omitempty"`
	Images        []string           `json:"images,omitempty"`
	FeaturedImage *string            `json:"featured_image,omitempty"`
	Attributes    *ListingAttributes `json:"attributes,omitempty"`
}

// ListingFilter narrows List results; zero values match everything
type ListingFilter struct {
	OwnerID  string
	Category Category
	Status   ListingStatus
}

// Match reports whether l satisfies the filter
func (f ListingFilter) Match(l *Listing) bool {
	if f.OwnerID != "" && l.OwnerID != f.OwnerID {
		return false
	}
	if f.Category != "" && l.Category != f.Category {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	return true
}

// StatusTransition describes a guarded status write produced by moderation
type StatusTransition struct {
	From              ListingStatus
	To                ListingStatus
	ModeratedBy       ActorID
	ModeratedAt       time.Time
	ModerationComment string
}

// ListingStats counts a single owner's listings per status
type ListingStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Pending  int `json:"pending"`
	Sold     int `json:"sold"`
	Rejected int `json:"rejected"`
}

// NotificationType is the severity shown to the recipient
type NotificationType string

const (
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeError   NotificationType = "error"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeSuccess, NotificationTypeWarning, NotificationTypeInfo, NotificationTypeError:
		return true
	}
	return false
}

// Notification is a per-user message
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Message   string           `db:"message" json:"message"`
	Type      NotificationType `db:"type" json:"type"`
	IsRead    bool             `db:"is_read" json:"is_read"`
	Link      string           `db:"link" json:"link,omitempty"`
	ProductID string           `db:"product_id" json:"product_id,omitempty"`
	Created   time.Time        `db:"created_at" json:"created"`
}

// NotificationInput is used by triggers outside of moderation
type NotificationInput struct {
	UserID    string           `json:"user_id" binding:"required"`
	Message   string           `json:"message" binding:"required"`
	Type      NotificationType `json:"type" binding:"required"`
	Link      string           `json:"link,omitempty"`
	ProductID string           `json:"product_id,omitempty"`
}

// TransactionStatus of an audit entry
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
	TransactionStatusFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusRefunded, TransactionStatusFailed:
		return true
	}
	return false
}

// AuditTransaction is an entry in the admin transaction log
type AuditTransaction struct {
	ID             string            `db:"id" json:"id"`
	UserID         string            `db:"user_id" json:"user_id"`
	ProductID      string            `db:"product_id" json:"product_id"`
	Amount         float64           `db:"amount" json:"amount"`
	Status         TransactionStatus `db:"status" json:"status"`
	PaymentMethod  string            `db:"payment_method" json:"payment_method"`
	PaymentDetails string            `db:"payment_details" json:"payment_details,omitempty"`
	Notes          string            `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	CompletedAt    *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
}

// AdminStats is the dashboard summary
type AdminStats struct {
	TotalListings      int                `json:"total_listings"`
	PendingListings    int                `json:"pending_listings"`
	TotalSales         int                `json:"total_sales"`
	TotalRevenue       float64            `json:"total_revenue"`
	RecentTransactions []AuditTransaction `json:"recent_transactions"`
	PendingModeration  []Listing          `json:"pending_moderation"`
}
