package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"helpdesk-service/internal/auth"
	"helpdesk-service/internal/models"
	"helpdesk-service/internal/observability"
)

// SupportWebSocketHandler upgrades connections for the live support channel.
type SupportWebSocketHandler struct {
	hub      *Hub
	verifier auth.Verifier
}

// NewSupportWebSocketHandler constructs a SupportWebSocketHandler.
func NewSupportWebSocketHandler(hub *Hub, verifier auth.Verifier) *SupportWebSocketHandler {
	return &SupportWebSocketHandler{hub: hub, verifier: verifier}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates the credential, computes the subscription set, and
// registers the connection. The connection only ever receives unsolicited
// events; the read pump exists to detect the close.
func (h *SupportWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("helpdesk-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	principal, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		Principal:   principal,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.Subscribe(conn, models.ChannelsFor(principal))

	observability.IncWSActive("support")
	observability.IncWSEvent("support", "ws_connect")
	observability.PublishWSEvent("ws_connect", info.ConnID, principal, 0, "", info.IP, requestID, traceID)

	go func() {
		var closeReason string
		defer func() {
			h.hub.Unsubscribe(conn)
			observability.DecWSActive("support")
			observability.IncWSEvent("support", "ws_disconnect")
			observability.PublishWSEvent("ws_disconnect", info.ConnID, principal,
				time.Since(info.ConnectedAt), closeReason, info.IP, requestID, traceID)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("support", "ws_error")
					observability.PublishWSEvent("ws_error", info.ConnID, principal,
						time.Since(info.ConnectedAt), closeReason, info.IP, requestID, traceID)
				}
				return
			}
		}
	}()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		const prefix = "Bearer "
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			return header[len(prefix):]
		}
		return ""
	}
	return c.Query("token")
}
