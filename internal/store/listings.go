package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-service/internal/models"

	"github.com/lib/pq"
)

const listingColumns = `id, owner_id, title, description, price, discount_price, category, offer_type,
	images, featured_image, status, attributes, created_at, updated_at,
	moderated_by, moderated_at, moderation_comment`

// attributesJSON stores ListingAttributes in a JSONB column
type attributesJSON models.ListingAttributes

func (a attributesJSON) Value() (driver.Value, error) {
	return json.Marshal(models.ListingAttributes(a))
}

func (a *attributesJSON) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = attributesJSON{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported attributes type %T", src)
	}
	var attrs models.ListingAttributes
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return err
	}
	*a = attributesJSON(attrs)
	return nil
}

type listingRow struct {
	ID                string          `db:"id"`
	OwnerID           string          `db:"owner_id"`
	Title             string          `db:"title"`
	Description       string          `db:"description"`
	Price             float64         `db:"price"`
	DiscountPrice     sql.NullFloat64 `db:"discount_price"`
	Category          string          `db:"category"`
	OfferType         string          `db:"offer_type"`
	Images            pq.StringArray  `db:"images"`
	FeaturedImage     string          `db:"featured_image"`
	Status            string          `db:"status"`
	Attributes        attributesJSON  `db:"attributes"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
	ModeratedBy       string          `db:"moderated_by"`
	ModeratedAt       sql.NullTime    `db:"moderated_at"`
	ModerationComment string          `db:"moderation_comment"`
}

func (r *listingRow) toModel() *models.Listing {
	l := &models.Listing{
		ID:                r.ID,
		OwnerID:           r.OwnerID,
		Title:             r.Title,
		Description:       r.Description,
		Price:             r.Price,
		Category:          models.Category(r.Category),
		OfferType:         models.OfferType(r.OfferType),
		Images:            []string(r.Images),
		FeaturedImage:     r.FeaturedImage,
		Status:            models.ListingStatus(r.Status),
		Attributes:        models.ListingAttributes(r.Attributes),
		Created:           r.CreatedAt,
		Updated:           r.UpdatedAt,
		ModeratedBy:       models.ActorID(r.ModeratedBy),
		ModerationComment: r.ModerationComment,
	}
	if r.DiscountPrice.Valid {
		v := r.DiscountPrice.Float64
		l.DiscountPrice = &v
	}
	if r.ModeratedAt.Valid {
		v := r.ModeratedAt.Time
		l.ModeratedAt = &v
	}
	return l
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// CreateListing inserts a new listing
func (s *Store) CreateListing(ctx context.Context, l *models.Listing) error {
	query := `
		INSERT INTO listings (id, owner_id, title, description, price, discount_price, category,
			offer_type, images, featured_image, status, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.OwnerID, l.Title, l.Description, l.Price, nullFloat(l.DiscountPrice), string(l.Category),
		string(l.OfferType), pq.StringArray(l.Images), l.FeaturedImage, string(l.Status),
		attributesJSON(l.Attributes), l.Created, l.Updated)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// GetListing retrieves a listing by ID
func (s *Store) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	var row listingRow
	err := s.db.GetContext(ctx, &row, "SELECT "+listingColumns+" FROM listings WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// ListListings retrieves listings matching filter
func (s *Store) ListListings(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + listingColumns + " FROM listings"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query = s.db.Rebind(query + " ORDER BY created_at, id")

	var rows []listingRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	listings := make([]models.Listing, 0, len(rows))
	for i := range rows {
		listings = append(listings, *rows[i].toModel())
	}
	return listings, nil
}

// UpdateListing writes the editable columns of a listing
func (s *Store) UpdateListing(ctx context.Context, l *models.Listing) (*models.Listing, error) {
	query := `
		UPDATE listings SET title = $1, description = $2, price = $3, discount_price = $4,
			category = $5, offer_type = $6, images = $7, featured_image = $8, attributes = $9,
			updated_at = $10
		WHERE id = $11
		RETURNING ` + listingColumns

	var row listingRow
	err := s.db.GetContext(ctx, &row, query,
		l.Title, l.Description, l.Price, nullFloat(l.DiscountPrice), string(l.Category),
		string(l.OfferType), pq.StringArray(l.Images), l.FeaturedImage, attributesJSON(l.Attributes),
		l.Updated, l.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// DeleteListing removes a listing
func (s *Store) DeleteListing(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM listings WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// TransitionListing moves a listing from t.From to t.To within a transaction.
// The status predicate in the UPDATE makes concurrent moderators race safely.
func (s *Store) TransitionListing(ctx context.Context, id string, t models.StatusTransition) (*models.Listing, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `
		UPDATE listings SET status = $1, moderated_by = $2, moderated_at = $3,
			moderation_comment = COALESCE(NULLIF($4, ''), moderation_comment), updated_at = $3
		WHERE id = $5 AND status = $6
		RETURNING ` + listingColumns

	var row listingRow
	err = tx.GetContext(ctx, &row, query,
		string(t.To), string(t.ModeratedBy), t.ModeratedAt, t.ModerationComment, id, string(t.From))
	if errors.Is(err, sql.ErrNoRows) {
		var current string
		err = tx.GetContext(ctx, &current, "SELECT status FROM listings WHERE id = $1", id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read listing status: %w", err)
		}
		return nil, &models.TransitionError{ListingID: id, From: models.ListingStatus(current), To: t.To}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to transition listing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// ResetListingStatuses forces every listing into status
func (s *Store) ResetListingStatuses(ctx context.Context, status models.ListingStatus, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE listings SET status = $1, updated_at = $2", string(status), at)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeletePendingBefore drops pending listings created before cutoff
func (s *Store) DeletePendingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM listings WHERE status = $1 AND created_at < $2",
		string(models.ListingStatusPending), cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
