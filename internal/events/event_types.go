package events

import (
	"time"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventEscalationTicketCreated EventType = "escalation_ticket_created"
	EventEscalationDeduplicated  EventType = "escalation_deduplicated"
)

// Event represents a domain event emitted by the ingestion pipeline.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Identity  string      `json:"identity"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// EscalationPayload describes the escalation that produced the event.
type EscalationPayload struct {
	TicketURL        string                  `json:"ticket_url"`
	DedupKey         string                  `json:"dedup_key,omitempty"`
	Category         domain.Category         `json:"category"`
	EscalationReason domain.EscalationReason `json:"escalation_reason"`
	Confidence       string                  `json:"confidence"`
	Source           domain.Source           `json:"source,omitempty"`
}
