package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"helpdesk-service/internal/middleware"
	"helpdesk-service/internal/models"
	"helpdesk-service/internal/observability"
	"helpdesk-service/internal/repositories"
	"helpdesk-service/internal/telemetry"
	"helpdesk-service/internal/ws"
)

// SupportHandler manages the support conversation endpoints. The conversation
// state machine lives here: archive flags decided on send, bulk archive on
// close, and the latest-row convention for effective state. Every publish
// happens after the durable write and its failure never reaches the caller.
type SupportHandler struct {
	messages repositories.MessageRepository
	hub      *ws.Hub
	audit    *telemetry.AuditEmitter
}

// NewSupportHandler builds a SupportHandler.
func NewSupportHandler(messages repositories.MessageRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *SupportHandler {
	return &SupportHandler{messages: messages, hub: hub, audit: audit}
}

// GetMyConversation returns the caller's own conversation in its client-facing
// view: archived history stays hidden until a new message reopens it.
func (h *SupportHandler) GetMyConversation(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	msgs, err := h.messages.ListConversation(c.Request.Context(), principal.UserID, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage appends one message. A client send always lands unarchived,
// which is the sole reopen mechanism. A staff send with target_user_id goes to
// that client's conversation unarchived; without a target it goes to the staff
// member's own sandbox pre-archived so it never surfaces in the active queue.
func (h *SupportHandler) SendMessage(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	var req struct {
		Text         string `json:"text" binding:"required"`
		TargetUserID int    `json:"target_user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID := principal.UserID
	archived := false
	if principal.Role.IsStaff() {
		if req.TargetUserID != 0 {
			ownerID = req.TargetUserID
		} else {
			archived = true
		}
	} else if req.TargetUserID != 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "target_user_id is staff only"})
		return
	}

	msg, err := h.messages.CreateMessage(c.Request.Context(), ownerID, principal.Role, principal.Username, req.Text, archived)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.audit.Emit(c.Request.Context(), "message_sent", ownerID, "", requestIDFromContext(c), &principal.UserID, string(principal.Role))

	switch {
	case principal.Role == models.RoleClient:
		h.publish(models.StaffChannels(), models.SupportEvent{
			Type:    models.EventMessageReceived,
			Message: &msg,
		})
		h.publish(models.StaffChannels(), models.SupportEvent{
			Type:   models.EventDashboardRefreshHint,
			Reason: "new client message",
		})
	case ownerID != principal.UserID:
		h.publish([]string{models.UserChannel(ownerID)}, models.SupportEvent{
			Type:    models.EventMessageReceived,
			Message: &msg,
		})
	}
	// Staff sandbox rows produce no delivery at all.

	c.JSON(http.StatusCreated, msg)
}

// CloseMyConversation archives the caller's conversation in one bulk write.
// Closing an already-closed conversation changes nothing.
func (h *SupportHandler) CloseMyConversation(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	if err := h.messages.ArchiveConversation(c.Request.Context(), principal.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to close conversation"})
		return
	}

	h.audit.Emit(c.Request.Context(), "conversation_closed", principal.UserID, "closed by client", requestIDFromContext(c), &principal.UserID, string(principal.Role))

	h.publish(models.StaffChannels(), models.SupportEvent{
		Type:         models.EventConversationClosed,
		OwnerID:      principal.UserID,
		ClosedBy:     principal.Username,
		ClosedByRole: principal.Role,
		Reason:       "closed by client",
	})
	h.publish(models.StaffChannels(), models.SupportEvent{
		Type:   models.EventDashboardRefreshHint,
		Reason: "conversation closed",
	})

	c.Status(http.StatusNoContent)
}

// ListConversations returns the staff queue: one summary per owner with
// last-message preview and chat-unread count.
func (h *SupportHandler) ListConversations(c *gin.Context) {
	summaries, err := h.messages.ListConversationSummaries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// ConversationStatus reports one conversation's effective state, read off the
// latest row's archived bit, together with its live chat-unread count. A
// conversation with no rows yet is a 404, not an empty active one.
func (h *SupportHandler) ConversationStatus(c *gin.Context) {
	ownerID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	latest, err := h.messages.LatestMessage(c.Request.Context(), ownerID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationEmpty) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}

	count, err := h.messages.UnreadCount(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"owner_id":     ownerID,
		"is_archived":  latest.IsArchived,
		"last_message": latest,
		"unread_count": count,
	})
}

// GetConversation returns one owner's full history. Opening the view marks
// client-authored rows read before the list is loaded, so the returned rows
// agree with any counter fetched afterwards.
func (h *SupportHandler) GetConversation(c *gin.Context) {
	ownerID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.messages.MarkConversationRead(c.Request.Context(), ownerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark conversation read"})
		return
	}

	msgs, err := h.messages.ListConversation(c.Request.Context(), ownerID, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// CloseConversation archives a client's conversation on behalf of staff and
// publishes a close event naming the acting staff member, distinct from the
// client's own close notice.
func (h *SupportHandler) CloseConversation(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	ownerID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.messages.ArchiveConversation(c.Request.Context(), ownerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to close conversation"})
		return
	}

	h.audit.Emit(c.Request.Context(), "conversation_closed", ownerID, "closed by staff", requestIDFromContext(c), &principal.UserID, string(principal.Role))

	event := models.SupportEvent{
		Type:         models.EventConversationClosed,
		OwnerID:      ownerID,
		ClosedBy:     principal.Username,
		ClosedByRole: principal.Role,
		Reason:       "closed by staff",
	}
	h.publish(models.StaffChannels(), event)
	h.publish([]string{models.UserChannel(ownerID)}, event)
	h.publish(models.StaffChannels(), models.SupportEvent{
		Type:   models.EventDashboardRefreshHint,
		Reason: "conversation closed",
	})

	c.Status(http.StatusNoContent)
}

// publish is fire-and-forget: the hub swallows write failures and the durable
// row is the fallback for anyone not connected right now.
func (h *SupportHandler) publish(channels []string, event models.SupportEvent) {
	observability.IncFanoutEvent(event.Type)
	h.hub.Publish(channels, event)
}
