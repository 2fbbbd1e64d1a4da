package telemetry

import (
	"context"
	"log"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter publishes durable audit records for conversation and
// notification writes. Delivery is best-effort; a publish failure is logged
// and dropped because the underlying store row already exists.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	ActorID       *int         `json:"actor_id,omitempty"`
	ActorRole     string       `json:"actor_role,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Action  string `json:"action"`
	OwnerID int    `json:"owner_id,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit records one audit event. Safe to call on a nil emitter.
func (e *AuditEmitter) Emit(ctx context.Context, action string, ownerID int, detail, requestID string, actorID *int, actorRole string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		ActorID:       actorID,
		ActorRole:     actorRole,
		Payload: AuditPayload{
			Action:  action,
			OwnerID: ownerID,
			Detail:  detail,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}
