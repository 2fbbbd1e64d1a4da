package notify

import (
	"context"

	"helpdesk-service/internal/models"
	"helpdesk-service/internal/observability"
	"helpdesk-service/internal/repositories"
	"helpdesk-service/internal/ws"
)

// Notifier writes ledger rows and pushes best-effort live delivery to the
// recipient's room. The durable row is the only delivery guarantee; the
// publish is at most once and never reported as a failure.
type Notifier struct {
	repo repositories.NotificationRepository
	hub  *ws.Hub
}

// NewNotifier constructs a Notifier.
func NewNotifier(repo repositories.NotificationRepository, hub *ws.Hub) *Notifier {
	return &Notifier{repo: repo, hub: hub}
}

// Create inserts one unread row and publishes notification_created to the
// recipient's user room. The write error, if any, is the caller's; the
// publish has no error path.
func (n *Notifier) Create(ctx context.Context, recipientID int, kind models.NotificationType, message string, relatedID *int, relatedType *string) (models.Notification, error) {
	row, err := n.repo.CreateNotification(ctx, recipientID, kind, message, relatedID, relatedType)
	if err != nil {
		return models.Notification{}, err
	}

	observability.IncFanoutEvent(models.EventNotificationCreated)
	n.hub.Publish([]string{models.UserChannel(recipientID)}, models.SupportEvent{
		Type:         models.EventNotificationCreated,
		Notification: &row,
	})
	return row, nil
}

// Broadcast fans out one message to many recipients as N independent rows,
// one create per recipient, so each read state stays independent. It returns
// the rows created before the first failing write.
func (n *Notifier) Broadcast(ctx context.Context, recipientIDs []int, kind models.NotificationType, message string, relatedID *int, relatedType *string) ([]models.Notification, error) {
	created := make([]models.Notification, 0, len(recipientIDs))
	for _, recipientID := range recipientIDs {
		row, err := n.Create(ctx, recipientID, kind, message, relatedID, relatedType)
		if err != nil {
			return created, err
		}
		created = append(created, row)
	}
	return created, nil
}
