// Package helpdesk talks to the external ticketing backend.
package helpdesk

import (
	"context"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
)

// Client is the helpdesk backend as seen by the ingestion pipeline.
type Client interface {
	CreateTicket(ctx context.Context, req domain.TicketRequest) (domain.Ticket, error)
	AppendNote(ctx context.Context, ticketID, note, author string) error
	HealthCheck(ctx context.Context) bool
}
