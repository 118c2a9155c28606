package store

import (
	"context"

	"marketplace-service/internal/models"
)

// CreateNotification inserts a notification
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (id, user_id, message, type, is_read, link, product_id, created_at)
		VALUES (:id, :user_id, :message, :type, :is_read, :link, :product_id, :created_at)`, n)
	return err
}

// ListNotifications retrieves a user's notifications newest first
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := s.db.SelectContext(ctx, &notifications,
		"SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	return notifications, err
}

// CountUnread counts a user's unread notifications
func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read", userID)
	return count, err
}

// MarkNotificationRead flags one notification as read
func (s *Store) MarkNotificationRead(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.GetContext(ctx, &n,
		"UPDATE notifications SET is_read = TRUE WHERE id = $1 RETURNING *", id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &n, nil
}

// MarkAllNotificationsRead flags every unread notification of a user
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read", userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
