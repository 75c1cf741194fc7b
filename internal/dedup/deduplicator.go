package dedup

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
)

// CreateFunc opens a ticket in the helpdesk.
type CreateFunc func(ctx context.Context) (domain.Ticket, error)

// Result is what FindOrCreate resolved to.
type Result struct {
	TicketID  string
	TicketURL string
	Created   bool
}

// Deduplicator performs atomic find-or-create over a Store.
type Deduplicator struct {
	store   *Store
	timeout time.Duration
	logger  *zap.Logger
}

// NewDeduplicator constructs a deduplicator. timeout bounds each create call.
func NewDeduplicator(store *Store, timeout time.Duration, logger *zap.Logger) *Deduplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{store: store, timeout: timeout, logger: logger}
}

// Store returns the backing store.
func (d *Deduplicator) Store() *Store {
	return d.store
}

// DeriveKey picks the dedup key for an escalation: the correlation key when
// present, else caller number plus category. An empty result means the
// escalation has no stable identity and always creates a ticket.
func DeriveKey(correlationKey, callerNumber string, category domain.Category) string {
	if k := strings.TrimSpace(correlationKey); k != "" {
		return "oa:" + k
	}
	if n := strings.TrimSpace(callerNumber); n != "" && category != "" {
		return "caller:" + n + "|" + string(category)
	}
	return ""
}

// FindOrCreate returns the live ticket for key, or calls create exactly once
// across all concurrent callers for key and stores the result. Callers that
// waited on another caller's creation observe Created == false and share its
// error if it failed.
func (d *Deduplicator) FindOrCreate(ctx context.Context, key string, category domain.Category, create CreateFunc) (Result, error) {
	if key == "" {
		ticket, err := d.call(ctx, create)
		if err != nil {
			return Result{}, err
		}
		return Result{TicketID: ticket.ID, TicketURL: ticket.URL, Created: true}, nil
	}

	rec, hit, fl, leader := d.store.claim(key)
	if hit {
		d.logger.Debug("dedup hit", zap.String("dedup_key", key), zap.String("ticket_id", rec.TicketID))
		return Result{TicketID: rec.TicketID, TicketURL: rec.TicketURL}, nil
	}

	if !leader {
		select {
		case <-fl.done:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
		if fl.err != nil {
			return Result{}, fl.err
		}
		return Result{TicketID: fl.record.TicketID, TicketURL: fl.record.TicketURL}, nil
	}

	settled := false
	defer func() {
		if !settled {
			d.store.settle(key, fl, category, domain.Ticket{}, errFlightAborted)
		}
	}()

	ticket, err := d.call(ctx, create)
	rec = d.store.settle(key, fl, category, ticket, err)
	settled = true
	if err != nil {
		d.logger.Warn("ticket creation failed", zap.String("dedup_key", key), zap.Error(err))
		return Result{}, err
	}
	return Result{TicketID: rec.TicketID, TicketURL: rec.TicketURL, Created: true}, nil
}

func (d *Deduplicator) call(ctx context.Context, create CreateFunc) (domain.Ticket, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return create(ctx)
}
