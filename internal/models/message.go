package models

import "time"

// Message is one entry in a client's support conversation. All messages with
// the same OwnerID form that client's single conversation.
type Message struct {
	ID         int       `db:"id" json:"id"`
	OwnerID    int       `db:"owner_id" json:"owner_id"`
	SenderRole Role      `db:"sender_role" json:"sender_role"`
	SenderName string    `db:"sender_name" json:"sender_name"`
	Text       string    `db:"text" json:"text"`
	IsRead     bool      `db:"is_read" json:"is_read"`
	IsArchived bool      `db:"is_archived" json:"is_archived"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ConversationSummary is the staff-queue view of one client conversation:
// the latest message plus the count of unread client-authored rows. Whether
// the conversation is effectively closed is read off the latest message's
// archived bit, never off a stored aggregate.
type ConversationSummary struct {
	OwnerID     int     `json:"owner_id"`
	LastMessage Message `json:"last_message"`
	UnreadCount int     `json:"unread_count"`
	IsArchived  bool    `json:"is_archived"`
}
