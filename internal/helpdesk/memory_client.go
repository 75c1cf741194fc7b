package helpdesk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
)

// Note is a note appended to a ticket held by MemoryClient.
type Note struct {
	Body   string
	Author string
}

// StoredTicket is a ticket held by MemoryClient.
type StoredTicket struct {
	domain.Ticket
	Request domain.TicketRequest
	Notes   []Note
}

// MemoryClient is an in-process helpdesk used when no backend URL is configured.
type MemoryClient struct {
	mu          sync.Mutex
	baseURL     string
	tickets     map[string]*StoredTicket
	createCalls atomic.Int64
}

// NewMemoryClient creates an empty in-memory helpdesk whose ticket URLs live under baseURL.
func NewMemoryClient(baseURL string) *MemoryClient {
	if baseURL == "" {
		baseURL = "memory://helpdesk"
	}
	return &MemoryClient{baseURL: strings.TrimRight(baseURL, "/"), tickets: make(map[string]*StoredTicket)}
}

func (m *MemoryClient) CreateTicket(ctx context.Context, req domain.TicketRequest) (domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return domain.Ticket{}, err
	}
	m.createCalls.Add(1)
	id := uuid.NewString()
	ticket := domain.Ticket{ID: id, URL: m.baseURL + "/tickets/" + id}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[id] = &StoredTicket{Ticket: ticket, Request: req}
	return ticket, nil
}

func (m *MemoryClient) AppendNote(ctx context.Context, ticketID, note, author string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok {
		return fmt.Errorf("ticket %s not found", ticketID)
	}
	t.Notes = append(t.Notes, Note{Body: note, Author: author})
	return nil
}

func (m *MemoryClient) HealthCheck(ctx context.Context) bool {
	return ctx.Err() == nil
}

// CreateCalls returns how many times CreateTicket was called.
func (m *MemoryClient) CreateCalls() int64 {
	return m.createCalls.Load()
}

// Ticket returns a copy of a stored ticket.
func (m *MemoryClient) Ticket(id string) (StoredTicket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return StoredTicket{}, false
	}
	cp := *t
	cp.Notes = append([]Note(nil), t.Notes...)
	return cp, true
}
