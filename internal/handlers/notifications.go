package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"helpdesk-service/internal/middleware"
	"helpdesk-service/internal/models"
	"helpdesk-service/internal/notify"
	"helpdesk-service/internal/repositories"
	"helpdesk-service/internal/telemetry"
)

// NotificationHandler manages the per-recipient notification ledger. Every
// mutation is scoped to the caller's own rows; the ownership check runs before
// any write.
type NotificationHandler struct {
	repo     repositories.NotificationRepository
	notifier *notify.Notifier
	audit    *telemetry.AuditEmitter
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(repo repositories.NotificationRepository, notifier *notify.Notifier, audit *telemetry.AuditEmitter) *NotificationHandler {
	return &NotificationHandler{repo: repo, notifier: notifier, audit: audit}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	list, err := h.repo.ListForUser(c.Request.Context(), principal.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// UnreadCount returns the live unread count for the caller.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	count, err := h.repo.UnreadCountForUser(c.Request.Context(), principal.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead flags one of the caller's notifications as read. A missing row is
// 404; someone else's row is 403 and stays untouched.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	id, ok := notificationID(c)
	if !ok {
		return
	}

	row, err := h.repo.GetNotification(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "notification not found"})
		return
	}
	if row.UserID != principal.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your notification"})
		return
	}

	if err := h.repo.MarkRead(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notification read"})
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead flags every notification of the caller as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	if err := h.repo.MarkAllRead(c.Request.Context(), principal.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notifications read"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes one of the caller's notifications, with the same
// not-found-then-forbidden ordering as MarkRead.
func (h *NotificationHandler) Delete(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	id, ok := notificationID(c)
	if !ok {
		return
	}

	row, err := h.repo.GetNotification(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "notification not found"})
		return
	}
	if row.UserID != principal.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your notification"})
		return
	}

	if err := h.repo.DeleteNotification(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete notification"})
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAll removes every notification of the caller.
func (h *NotificationHandler) DeleteAll(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	if err := h.repo.DeleteAllForUser(c.Request.Context(), principal.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete notifications"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Announce fans one message out to an explicit recipient list as N
// independent rows, one per recipient. Admin only.
func (h *NotificationHandler) Announce(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	var req struct {
		UserIDs []int  `json:"user_ids" binding:"required,min=1"`
		Type    string `json:"type"`
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, ok := notificationType(req.Type)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification type"})
		return
	}

	created, err := h.notifier.Broadcast(c.Request.Context(), req.UserIDs, kind, req.Message, nil, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create notifications", "created": len(created)})
		return
	}

	h.audit.Emit(c.Request.Context(), "announcement_sent", 0, req.Message, requestIDFromContext(c), &principal.UserID, string(principal.Role))
	c.JSON(http.StatusCreated, gin.H{"created": len(created)})
}

// CreateInternal is the ticket collaborator's entry point: one ledger row for
// one recipient, typically related to a ticket transition. Staff only.
func (h *NotificationHandler) CreateInternal(c *gin.Context) {
	var req struct {
		UserID      int    `json:"user_id" binding:"required"`
		Type        string `json:"type"`
		Message     string `json:"message" binding:"required"`
		RelatedID   *int   `json:"related_id"`
		RelatedType string `json:"related_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, ok := notificationType(req.Type)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification type"})
		return
	}

	var relatedType *string
	if req.RelatedType != "" {
		relatedType = &req.RelatedType
	}

	row, err := h.notifier.Create(c.Request.Context(), req.UserID, kind, req.Message, req.RelatedID, relatedType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create notification"})
		return
	}
	c.JSON(http.StatusCreated, row)
}

func notificationID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return 0, false
	}
	return id, true
}

func notificationType(raw string) (models.NotificationType, bool) {
	if raw == "" {
		return models.NotificationInfo, true
	}
	kind := models.NotificationType(raw)
	switch kind {
	case models.NotificationInfo, models.NotificationPromotion, models.NotificationAlert:
		return kind, true
	}
	return "", false
}
