package helpdesk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
)

func TestHTTPClientCreateTicket(t *testing.T) {
	var got createTicketBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/tickets", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"T-100","url":"https://hd.example/T-100"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPOptions{BaseURL: srv.URL + "/api/", APIKey: "key-1", Timeout: time.Second}, nil)
	ticket, err := c.CreateTicket(context.Background(), domain.TicketRequest{
		Description:      "Category: WiFi",
		Category:         domain.CategoryWiFi,
		EscalationReason: domain.ReasonCallerRequested,
		CallerNumber:     "+12345678900",
		Metadata:         map[string]string{"source": "phone"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Ticket{ID: "T-100", URL: "https://hd.example/T-100"}, ticket)
	assert.Equal(t, "WiFi", got.Category)
	assert.Equal(t, "CallerRequested", got.EscalationReason)
	assert.Equal(t, "phone", got.Metadata["source"])
}

func TestHTTPClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second}, nil)
	_, err := c.CreateTicket(context.Background(), domain.TicketRequest{Category: domain.CategoryWiFi})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
	assert.Equal(t, "maintenance", statusErr.Body)
	assert.False(t, c.HealthCheck(context.Background()))
}

func TestHTTPClientAppendNoteAndHealth(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second}, nil)
	require.NoError(t, c.AppendNote(context.Background(), "T-1", "another call", "escalation-gateway"))
	assert.Equal(t, "/tickets/T-1/notes", path)
	assert.True(t, c.HealthCheck(context.Background()))
}

func TestHTTPClientHonoursContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPOptions{BaseURL: srv.URL}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.CreateTicket(ctx, domain.TicketRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryClient(t *testing.T) {
	m := NewMemoryClient("https://hd.local/")
	ctx := context.Background()

	ticket, err := m.CreateTicket(ctx, domain.TicketRequest{Category: domain.CategoryBilling})
	require.NoError(t, err)
	assert.Equal(t, "https://hd.local/tickets/"+ticket.ID, ticket.URL)
	assert.Equal(t, int64(1), m.CreateCalls())

	require.NoError(t, m.AppendNote(ctx, ticket.ID, "follow-up", "bot"))
	assert.Error(t, m.AppendNote(ctx, "missing", "x", ""))

	stored, ok := m.Ticket(ticket.ID)
	require.True(t, ok)
	assert.Equal(t, []Note{{Body: "follow-up", Author: "bot"}}, stored.Notes)
	assert.True(t, m.HealthCheck(ctx))
}
