package observability

import (
	"context"
	"time"

	"helpdesk-service/internal/models"
)

const wsRoutingKey = "ws_events.support"

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// PublishWSEvent emits a websocket lifecycle event (connect, disconnect,
// error) to the audit exchange. Failures are counted and otherwise ignored.
func PublishWSEvent(event, connID string, principal models.Principal, connected time.Duration, reason, ip, requestID, traceID string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "support",
			"event":       event,
			"conn_id":     connID,
			"duration_ms": connected.Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":  principal.UserID,
			"role":     principal.Role,
			"username": principal.Username,
			"ip":       ip,
		},
	}

	_ = PublishEvent(context.Background(), wsRoutingKey, EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, BuildHeaders(requestID, traceID))
}
