package dto

import (
	"encoding/json"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
	"github.com/helpline-labs/escalation-gateway/internal/ingest"
)

// EscalationRequest payload.
type EscalationRequest struct {
	Note             string `json:"note"`
	Category         string `json:"category"`
	EscalationReason string `json:"escalationReason"`
	Confidence       string `json:"confidence"`
	CallerNumber     string `json:"callerNumber"`
	OAKey            string `json:"oaKey"`
	Source           string `json:"source"`
	IdempotencyKey   string `json:"idempotencyKey"`
}

// ToIngest converts the payload. headerKey is used when the body carries no idempotency key.
func (r EscalationRequest) ToIngest(headerKey string) ingest.Request {
	key := r.IdempotencyKey
	if key == "" {
		key = headerKey
	}
	return ingest.Request{
		Note:             r.Note,
		Category:         r.Category,
		EscalationReason: r.EscalationReason,
		Confidence:       r.Confidence,
		CallerNumber:     r.CallerNumber,
		OAKey:            r.OAKey,
		Source:           domain.Source(r.Source),
		IdempotencyKey:   key,
	}
}

// AppendNoteRequest payload.
type AppendNoteRequest struct {
	TicketID string `json:"ticketId"`
	Note     string `json:"note"`
	Author   string `json:"author"`
}

// ToIngest converts the payload.
func (r AppendNoteRequest) ToIngest() ingest.AppendNoteRequest {
	return ingest.AppendNoteRequest{TicketID: r.TicketID, Note: r.Note, Author: r.Author}
}

// ToolInvokeRequest payload.
type ToolInvokeRequest struct {
	Operation string          `json:"operation"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult wraps the outcome of a non-escalation tool operation.
type ToolResult struct {
	Success   bool   `json:"success"`
	Operation string `json:"operation"`
	Healthy   *bool  `json:"healthy,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success      bool   `json:"success"`
	ErrorKind    string `json:"errorKind"`
	Message      string `json:"message"`
	Field        string `json:"field,omitempty"`
	Stage        string `json:"stage,omitempty"`
	RetryAfterMS int64  `json:"retryAfterMs,omitempty"`
}
