package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

// NotificationRepository handles persistence of in-app notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create persists a notification record.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, type, title, body, read, read_at, created_at)
        VALUES (:id, :user_id, :type, :title, :body, :read, :read_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List returns a user's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	clause := " WHERE user_id = $1"
	args := []interface{}{filter.UserID}
	if filter.UnreadOnly {
		clause += " AND read = FALSE"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, user_id, type, title, body, read, read_at, created_at
        FROM notifications%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, clause, size, offset)

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notifications%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// CountUnread returns the user's unread badge count.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification as read for its owner.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, readAt time.Time) (bool, error) {
	const query = `UPDATE notifications SET read = TRUE, read_at = $3 WHERE id = $1 AND user_id = $2 AND read = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, userID, readAt)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// MarkAllRead marks all of a user's notifications as read, returning the count.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int64, error) {
	const query = `UPDATE notifications SET read = TRUE, read_at = $2 WHERE user_id = $1 AND read = FALSE`
	res, err := r.db.ExecContext(ctx, query, userID, readAt)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// PurgeReadOlderThan removes read notifications past the retention cutoff.
func (r *NotificationRepository) PurgeReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM notifications WHERE read = TRUE AND created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
