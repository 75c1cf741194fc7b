package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EscalationAudit is one row of the escalation audit trail.
type EscalationAudit struct {
	ID             int64
	RequestID      string
	Identity       string
	IdempotencyKey string
	DedupKey       string
	Outcome        string
	Stage          string
	ErrorKind      string
	TicketID       string
	Category       string
	CreatedAt      time.Time
}

// EscalationAuditRepository persists pipeline outcomes.
type EscalationAuditRepository interface {
	Record(ctx context.Context, entry *EscalationAudit) error
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]EscalationAudit, error)
}

type escalationAuditRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationAuditRepository instantiates repository.
func NewEscalationAuditRepository(pool *pgxpool.Pool) EscalationAuditRepository {
	return &escalationAuditRepository{pool: pool}
}

func (r *escalationAuditRepository) Record(ctx context.Context, entry *EscalationAudit) error {
	const query = `
        INSERT INTO escalation_audit (request_id, identity, idempotency_key, dedup_key, outcome, stage, error_kind, ticket_id, category)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.RequestID,
		entry.Identity,
		entry.IdempotencyKey,
		entry.DedupKey,
		entry.Outcome,
		entry.Stage,
		entry.ErrorKind,
		entry.TicketID,
		entry.Category,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *escalationAuditRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]EscalationAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, request_id, identity, idempotency_key, dedup_key, outcome, stage, error_kind, ticket_id, category, created_at
        FROM escalation_audit WHERE ticket_id=$1
        ORDER BY created_at DESC
        LIMIT $2`
	rows, err := r.pool.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EscalationAudit
	for rows.Next() {
		var a EscalationAudit
		if err := rows.Scan(&a.ID, &a.RequestID, &a.Identity, &a.IdempotencyKey, &a.DedupKey,
			&a.Outcome, &a.Stage, &a.ErrorKind, &a.TicketID, &a.Category, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
