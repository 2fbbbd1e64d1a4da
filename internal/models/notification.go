package models

import "time"

// NotificationType classifies ledger entries.
type NotificationType string

const (
	NotificationInfo      NotificationType = "info"
	NotificationPromotion NotificationType = "promotion"
	NotificationAlert     NotificationType = "alert"
)

// Notification is one durable, single-recipient ledger row. A send-to-many
// operation fans out into N independent rows at creation time, so each
// recipient's read state stays independent.
type Notification struct {
	ID          int              `db:"id" json:"id"`
	UserID      int              `db:"user_id" json:"user_id"`
	Type        NotificationType `db:"type" json:"type"`
	Message     string           `db:"message" json:"message"`
	RelatedID   *int             `db:"related_id" json:"related_id,omitempty"`
	RelatedType *string          `db:"related_type" json:"related_type,omitempty"`
	IsRead      bool             `db:"is_read" json:"is_read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}
