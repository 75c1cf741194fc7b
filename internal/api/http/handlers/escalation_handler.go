package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpline-labs/escalation-gateway/internal/api/dto"
	"github.com/helpline-labs/escalation-gateway/internal/ingest"
)

// EscalationHandler accepts escalations over plain HTTP.
type EscalationHandler struct {
	orchestrator *ingest.Orchestrator
}

// NewEscalationHandler constructs handler.
func NewEscalationHandler(orchestrator *ingest.Orchestrator) *EscalationHandler {
	return &EscalationHandler{orchestrator: orchestrator}
}

// Create POST /v1/escalations.
func (h *EscalationHandler) Create(c *fiber.Ctx) error {
	caller := callerFrom(c)
	var req dto.EscalationRequest
	if err := decodeJSON(caller.Body, &req); err != nil {
		return err
	}

	resp, err := h.orchestrator.Process(c.UserContext(), caller, req.ToIngest(c.Get(HeaderIdempotencyKey)))
	if err != nil {
		return err
	}
	return c.Status(escalationStatus(resp.Created)).JSON(resp)
}
