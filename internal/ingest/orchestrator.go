// Package ingest sequences authentication, admission, idempotency,
// normalization and deduplication into one escalation lifecycle. Transport
// adapters call only this package.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/helpline-labs/escalation-gateway/internal/auth"
	"github.com/helpline-labs/escalation-gateway/internal/dedup"
	"github.com/helpline-labs/escalation-gateway/internal/domain"
	"github.com/helpline-labs/escalation-gateway/internal/events"
	"github.com/helpline-labs/escalation-gateway/internal/helpdesk"
	"github.com/helpline-labs/escalation-gateway/internal/idempotency"
	"github.com/helpline-labs/escalation-gateway/internal/note"
	"github.com/helpline-labs/escalation-gateway/internal/observability"
	"github.com/helpline-labs/escalation-gateway/internal/ratelimit"
	"github.com/helpline-labs/escalation-gateway/internal/repository"
	apperrors "github.com/helpline-labs/escalation-gateway/pkg/util"
)

// Stage is a step of the ingestion lifecycle.
type Stage string

const (
	StageAuthenticating      Stage = "authenticating"
	StageRateChecking        Stage = "rate_checking"
	StageIdempotencyChecking Stage = "idempotency_checking"
	StageValidating          Stage = "validating"
	StageDeduplicating       Stage = "deduplicating"
	StageCompleted           Stage = "completed"
	StageRejected            Stage = "rejected"

	// StageForwarding covers the backend call of tool operations other than escalation.
	StageForwarding Stage = "forwarding"
)

// Escalation outcomes as reported to metrics and the audit log.
const (
	OutcomeCreated      = "created"
	OutcomeDeduplicated = "deduplicated"
	OutcomeReplayed     = "replayed"
	OutcomeRejected     = "rejected"
)

const (
	defaultNoteAuthor = "escalation-gateway"
	auditTimeout      = 2 * time.Second
)

// Orchestrator runs escalations through the ingestion pipeline.
type Orchestrator struct {
	authenticator *auth.Authenticator
	limiter       *ratelimit.Limiter
	idempotency   *idempotency.Cache[Response]
	dedup         *dedup.Deduplicator
	helpdesk      helpdesk.Client
	dispatcher    events.Dispatcher
	audit         repository.EscalationAuditRepository
	metrics       *observability.Metrics
	logger        *zap.Logger
	appendOnHit   bool
	noteAuthor    string
}

// Dependencies bundles collaborators for the orchestrator. Dispatcher, Audit
// and Metrics are optional.
type Dependencies struct {
	Authenticator      *auth.Authenticator
	Limiter            *ratelimit.Limiter
	Idempotency        *idempotency.Cache[Response]
	Deduplicator       *dedup.Deduplicator
	Helpdesk           helpdesk.Client
	Dispatcher         events.Dispatcher
	Audit              repository.EscalationAuditRepository
	Metrics            *observability.Metrics
	Logger             *zap.Logger
	AppendNoteOnDupHit bool
	NoteAuthor         string
}

// NewOrchestrator constructs the orchestrator.
func NewOrchestrator(deps Dependencies) *Orchestrator {
	o := &Orchestrator{
		authenticator: deps.Authenticator,
		limiter:       deps.Limiter,
		idempotency:   deps.Idempotency,
		dedup:         deps.Deduplicator,
		helpdesk:      deps.Helpdesk,
		dispatcher:    deps.Dispatcher,
		audit:         deps.Audit,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		appendOnHit:   deps.AppendNoteOnDupHit,
		noteAuthor:    deps.NoteAuthor,
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.noteAuthor == "" {
		o.noteAuthor = defaultNoteAuthor
	}
	return o
}

// run tracks the progress of one escalation for logging and audit.
type run struct {
	caller   Caller
	req      Request
	identity domain.Identity
	stage    Stage
	dedupKey string
	outcome  string
}

// Process runs req through every stage. Failures are DomainErrors carrying
// the stage they were raised in; no later stage runs after a failure.
func (o *Orchestrator) Process(ctx context.Context, caller Caller, req Request) (resp Response, err error) {
	r := &run{caller: caller, req: req, stage: StageAuthenticating}
	defer func() {
		if err != nil {
			err = o.reject(r, err)
		}
		o.finish(ctx, r, resp, err)
	}()

	r.identity, err = o.admit(caller, r)
	if err != nil {
		return Response{}, err
	}

	r.stage = StageIdempotencyChecking
	key := idempotencyKey(r.identity, req.IdempotencyKey)
	if key != "" {
		lookup, lerr := o.idempotency.CheckOrReserve(ctx, key, req.Fingerprint())
		if lerr != nil {
			return Response{}, apperrors.NewIdempotencyConflict("request with this idempotency key is still in progress")
		}
		switch lookup.Outcome {
		case idempotency.Conflict:
			return Response{}, apperrors.NewIdempotencyConflict("idempotency key reused with a different payload")
		case idempotency.Cached:
			r.stage = StageCompleted
			r.outcome = OutcomeReplayed
			return lookup.Response, nil
		}

		committed := false
		defer func() {
			if !committed {
				o.idempotency.Release(key)
			}
		}()
		defer func() {
			if err == nil {
				if cerr := o.idempotency.Commit(key, resp); cerr != nil {
					o.logger.Warn("idempotency commit failed", zap.String("request_id", caller.RequestID), zap.Error(cerr))
					return
				}
				committed = true
			}
		}()
	}

	r.stage = StageValidating
	if err = req.Validate(); err != nil {
		return Response{}, err
	}
	fields, text, err := note.Normalize(req.Note, note.Overrides{
		Category:         domain.Category(req.Category),
		EscalationReason: domain.EscalationReason(req.EscalationReason),
		Confidence:       req.Confidence,
	})
	if err != nil {
		return Response{}, err
	}

	r.stage = StageDeduplicating
	r.dedupKey = dedup.DeriveKey(req.OAKey, req.CallerNumber, fields.Category)
	result, err := o.dedup.FindOrCreate(ctx, r.dedupKey, fields.Category, func(ctx context.Context) (domain.Ticket, error) {
		return o.createTicket(ctx, r, fields, text)
	})
	if err != nil {
		return Response{}, apperrors.NewBackendError(err)
	}
	if !result.Created && o.appendOnHit {
		o.appendDuplicate(ctx, r, result.TicketID, text)
	}

	r.stage = StageCompleted
	r.outcome = OutcomeDeduplicated
	if result.Created {
		r.outcome = OutcomeCreated
	}
	resp = Response{
		Success:          true,
		Created:          result.Created,
		TicketID:         result.TicketID,
		TicketURL:        result.TicketURL,
		Category:         fields.Category,
		EscalationReason: fields.EscalationReason,
		Confidence:       fields.Confidence,
		Echo:             Echo{OAKey: req.OAKey, CallerNumber: req.CallerNumber},
	}
	o.publish(ctx, r, resp)
	return resp, nil
}

// AppendNote adds a note to an existing ticket on behalf of an authenticated caller.
func (o *Orchestrator) AppendNote(ctx context.Context, caller Caller, req AppendNoteRequest) error {
	r := &run{caller: caller, stage: StageAuthenticating}
	identity, err := o.admit(caller, r)
	if err != nil {
		return o.reject(r, err)
	}

	r.stage = StageValidating
	if err := req.Validate(); err != nil {
		return o.reject(r, err)
	}
	author := req.Author
	if author == "" {
		author = displayName(identity)
	}

	r.stage = StageForwarding
	start := time.Now()
	err = o.helpdesk.AppendNote(ctx, req.TicketID, req.Note, author)
	o.metrics.ObserveBackend("append_note", err, time.Since(start))
	if err != nil {
		return o.reject(r, apperrors.NewBackendError(err))
	}
	return nil
}

// HealthCheck reports helpdesk reachability to an authenticated caller.
func (o *Orchestrator) HealthCheck(ctx context.Context, caller Caller) (bool, error) {
	r := &run{caller: caller, stage: StageAuthenticating}
	if _, err := o.admit(caller, r); err != nil {
		return false, o.reject(r, err)
	}
	return o.helpdesk.HealthCheck(ctx), nil
}

// BackendHealthy reports helpdesk reachability without authentication, for readiness probes.
func (o *Orchestrator) BackendHealthy(ctx context.Context) bool {
	return o.helpdesk.HealthCheck(ctx)
}

// admit runs the authentication and rate checking stages.
func (o *Orchestrator) admit(caller Caller, r *run) (domain.Identity, error) {
	r.stage = StageAuthenticating
	identity, err := o.authenticator.Authenticate(caller.Credentials, caller.Body)
	if err != nil {
		return domain.Identity{}, err
	}
	r.identity = identity

	r.stage = StageRateChecking
	decision := o.limiter.Allow(rateKey(identity, caller.RemoteAddr))
	if !decision.Allowed {
		return identity, apperrors.NewRateLimitError(decision.RetryAfter)
	}
	return identity, nil
}

func (o *Orchestrator) createTicket(ctx context.Context, r *run, fields domain.NormalizedNote, text string) (domain.Ticket, error) {
	metadata := map[string]string{"identity": r.identity.Subject}
	if r.identity.Label != "" {
		metadata["client"] = r.identity.Label
	}
	if r.req.Source != "" {
		metadata["source"] = string(r.req.Source)
	}
	if r.req.OAKey != "" {
		metadata["oa_key"] = r.req.OAKey
	}
	if r.caller.RequestID != "" {
		metadata["request_id"] = r.caller.RequestID
	}

	start := time.Now()
	ticket, err := o.helpdesk.CreateTicket(ctx, domain.TicketRequest{
		Description:      text,
		Category:         fields.Category,
		EscalationReason: fields.EscalationReason,
		CallerNumber:     r.req.CallerNumber,
		Metadata:         metadata,
	})
	o.metrics.ObserveBackend("create_ticket", err, time.Since(start))
	return ticket, err
}

func (o *Orchestrator) appendDuplicate(ctx context.Context, r *run, ticketID, text string) {
	start := time.Now()
	err := o.helpdesk.AppendNote(ctx, ticketID, text, o.noteAuthor)
	o.metrics.ObserveBackend("append_note", err, time.Since(start))
	if err != nil {
		o.logger.Warn("append note to duplicate ticket failed",
			zap.String("request_id", r.caller.RequestID),
			zap.String("ticket_id", ticketID),
			zap.String("dedup_key", r.dedupKey),
			zap.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, r *run, resp Response) {
	if o.dispatcher == nil {
		return
	}
	eventType := events.EventEscalationDeduplicated
	if resp.Created {
		eventType = events.EventEscalationTicketCreated
	}
	_ = o.dispatcher.Publish(ctx, events.Event{
		Type:     eventType,
		TicketID: resp.TicketID,
		Identity: r.identity.Subject,
		Payload: events.EscalationPayload{
			TicketURL:        resp.TicketURL,
			DedupKey:         r.dedupKey,
			Category:         resp.Category,
			EscalationReason: resp.EscalationReason,
			Confidence:       resp.Confidence,
			Source:           r.req.Source,
		},
	})
}

// reject tags err with the stage it was raised in and records it.
func (o *Orchestrator) reject(r *run, err error) error {
	de := apperrors.ToDomainError(err).WithDetail("stage", string(r.stage))
	o.metrics.RecordRejection(string(r.stage), string(de.Kind))
	o.logger.Info("request rejected",
		zap.String("request_id", r.caller.RequestID),
		zap.String("identity", r.identity.Subject),
		zap.String("stage", string(r.stage)),
		zap.String("error_kind", string(de.Kind)),
		zap.String("reason", de.Message))
	return de
}

func (o *Orchestrator) finish(ctx context.Context, r *run, resp Response, err error) {
	entry := &repository.EscalationAudit{
		RequestID:      r.caller.RequestID,
		Identity:       r.identity.Subject,
		IdempotencyKey: r.req.IdempotencyKey,
		DedupKey:       r.dedupKey,
		Stage:          string(r.stage),
	}

	if err != nil {
		de := apperrors.ToDomainError(err)
		entry.Outcome = OutcomeRejected
		entry.ErrorKind = string(de.Kind)
		if de.Kind == apperrors.KindBackend || de.Kind == apperrors.KindInternal {
			o.logger.Error("escalation failed",
				zap.String("request_id", r.caller.RequestID),
				zap.String("dedup_key", r.dedupKey),
				zap.Error(de))
		}
	} else {
		entry.Outcome = r.outcome
		entry.TicketID = resp.TicketID
		entry.Category = string(resp.Category)
		o.metrics.RecordEscalation(r.outcome)
		o.logger.Info("escalation completed",
			zap.String("request_id", r.caller.RequestID),
			zap.String("identity", r.identity.Subject),
			zap.String("outcome", r.outcome),
			zap.String("ticket_id", resp.TicketID),
			zap.String("dedup_key", r.dedupKey))
	}
	o.recordAudit(ctx, entry)
}

func (o *Orchestrator) recordAudit(ctx context.Context, entry *repository.EscalationAudit) {
	if o.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := o.audit.Record(ctx, entry); err != nil {
		o.logger.Warn("audit record failed", zap.String("request_id", entry.RequestID), zap.Error(err))
	}
}

// idempotencyKey scopes a client key to the authenticated identity so two
// clients cannot collide on the same key.
func idempotencyKey(identity domain.Identity, key string) string {
	if key == "" {
		return ""
	}
	return identity.Subject + "\x00" + key
}

// displayName prefers the caller's own label for human-facing text only.
func displayName(identity domain.Identity) string {
	if identity.Label != "" {
		return identity.Label
	}
	return identity.Subject
}

func rateKey(identity domain.Identity, remoteAddr string) string {
	if identity.Subject != "" {
		return "id:" + identity.Subject
	}
	return "addr:" + remoteAddr
}
