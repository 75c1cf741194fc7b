package domain

import "time"

// TicketRecord remembers a helpdesk ticket opened for a dedup key.
type TicketRecord struct {
	DedupKey  string
	TicketID  string
	TicketURL string
	Category  Category
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Ticket is what the helpdesk returns for a created ticket.
type Ticket struct {
	ID  string
	URL string
}

// TicketRequest is the payload sent to the helpdesk when opening a ticket.
type TicketRequest struct {
	Description      string
	Category         Category
	EscalationReason EscalationReason
	CallerNumber     string
	Metadata         map[string]string
}
