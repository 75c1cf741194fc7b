package helpdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
)

const (
	defaultRatePerSecond = 5
	defaultBurst         = 10
	maxErrorBody         = 512
)

// StatusError is returned when the helpdesk answers with a non-2xx status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("helpdesk %s: status %d: %s", e.Op, e.Status, e.Body)
}

// HTTPOptions configures HTTPClient.
type HTTPOptions struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
}

// HTTPClient is a REST helpdesk client.
type HTTPClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

type createTicketBody struct {
	Description      string            `json:"description"`
	Category         string            `json:"category"`
	EscalationReason string            `json:"escalation_reason"`
	CallerNumber     string            `json:"caller_number,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type createTicketResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type appendNoteBody struct {
	Note   string `json:"note"`
	Author string `json:"author,omitempty"`
}

// NewHTTPClient builds a client for the helpdesk at opts.BaseURL.
func NewHTTPClient(opts HTTPOptions, logger *zap.Logger) *HTTPClient {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = defaultRatePerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		httpClient:  httpClient,
		rateLimiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		logger:      logger,
	}
}

// CreateTicket POST /tickets.
func (c *HTTPClient) CreateTicket(ctx context.Context, req domain.TicketRequest) (domain.Ticket, error) {
	body := createTicketBody{
		Description:      req.Description,
		Category:         string(req.Category),
		EscalationReason: string(req.EscalationReason),
		CallerNumber:     req.CallerNumber,
		Metadata:         req.Metadata,
	}
	var out createTicketResponse
	if err := c.do(ctx, "create_ticket", http.MethodPost, "/tickets", body, &out); err != nil {
		return domain.Ticket{}, err
	}
	if out.ID == "" {
		return domain.Ticket{}, fmt.Errorf("helpdesk create_ticket: response has no ticket id")
	}
	return domain.Ticket{ID: out.ID, URL: out.URL}, nil
}

// AppendNote POST /tickets/:id/notes.
func (c *HTTPClient) AppendNote(ctx context.Context, ticketID, note, author string) error {
	path := "/tickets/" + url.PathEscape(ticketID) + "/notes"
	return c.do(ctx, "append_note", http.MethodPost, path, appendNoteBody{Note: note, Author: author}, nil)
}

// HealthCheck GET /health.
func (c *HTTPClient) HealthCheck(ctx context.Context) bool {
	if err := c.do(ctx, "health_check", http.MethodGet, "/health", nil, nil); err != nil {
		c.logger.Warn("helpdesk health check failed", zap.Error(err))
		return false
	}
	return true
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("helpdesk %s: encode: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("helpdesk %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("helpdesk %s: rate limit wait: %w", op, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("helpdesk %s: %w", op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("helpdesk call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("helpdesk %s: decode: %w", op, err)
	}
	return nil
}
