package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"helpdesk-service/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository defines interactions with the notification ledger.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, userID int, kind models.NotificationType, message string, relatedID *int, relatedType *string) (models.Notification, error)
	ListForUser(ctx context.Context, userID int) ([]models.Notification, error)
	GetNotification(ctx context.Context, id int) (models.Notification, error)
	MarkRead(ctx context.Context, id int) error
	MarkAllRead(ctx context.Context, userID int) error
	DeleteNotification(ctx context.Context, id int) error
	DeleteAllForUser(ctx context.Context, userID int) error
	UnreadCountForUser(ctx context.Context, userID int) (int, error)
}

// NotificationRepo is a sqlx-backed repository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, user_id, type, message, related_id, related_type, is_read, created_at`

// CreateNotification inserts one unread row for exactly one recipient.
func (r *NotificationRepo) CreateNotification(ctx context.Context, userID int, kind models.NotificationType, message string, relatedID *int, relatedType *string) (models.Notification, error) {
	var n models.Notification
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO notifications (user_id, type, message, related_id, related_type)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING `+notificationColumns,
		userID, kind, message, relatedID, relatedType).
		Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.RelatedID, &n.RelatedType, &n.IsRead, &n.CreatedAt)
	return n, err
}

// ListForUser returns the recipient's notifications, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID int) ([]models.Notification, error) {
	list := []models.Notification{}
	err := r.db.SelectContext(ctx, &list,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id=$1 ORDER BY id DESC`, userID)
	return list, err
}

// GetNotification fetches a single row.
func (r *NotificationRepo) GetNotification(ctx context.Context, id int) (models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n,
		`SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, ErrNotificationNotFound
	}
	return n, err
}

// MarkRead flags one row as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead flags every row owned by the user as read.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id=$1 AND is_read = FALSE`, userID)
	return err
}

// DeleteNotification removes one row.
func (r *NotificationRepo) DeleteNotification(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id=$1`, id)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// DeleteAllForUser removes every row owned by the user.
func (r *NotificationRepo) DeleteAllForUser(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE user_id=$1`, userID)
	return err
}

// UnreadCountForUser counts unread rows at call time; never cached.
func (r *NotificationRepo) UnreadCountForUser(ctx context.Context, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND is_read = FALSE`, userID)
	return count, err
}
