package models

// Event names delivered over the live channel.
const (
	EventMessageReceived      = "message_received"
	EventConversationClosed   = "conversation_closed"
	EventDashboardRefreshHint = "dashboard_refresh_hint"
	EventNotificationCreated  = "notification_created"
)

// SupportEvent is the envelope broadcast through websocket rooms.
type SupportEvent struct {
	Type         string        `json:"type"`
	Message      *Message      `json:"message,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	OwnerID      int           `json:"owner_id,omitempty"`
	ClosedBy     string        `json:"closed_by,omitempty"`
	ClosedByRole Role          `json:"closed_by_role,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}
