package handlers

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/helpline-labs/escalation-gateway/internal/api/dto"
	"github.com/helpline-labs/escalation-gateway/internal/ingest"
	apperrors "github.com/helpline-labs/escalation-gateway/pkg/util"
)

// Operation names a tool the conversational agent may invoke.
type Operation string

const (
	OpCreateEscalation Operation = "create_escalation"
	OpAppendNote       Operation = "append_note"
	OpHealthCheck      Operation = "health_check"
)

type toolFunc func(c *fiber.Ctx, caller ingest.Caller, args json.RawMessage) error

// ToolHandler dispatches tool invocations to typed handlers.
type ToolHandler struct {
	orchestrator *ingest.Orchestrator
	tools        map[Operation]toolFunc
}

// NewToolHandler constructs handler.
func NewToolHandler(orchestrator *ingest.Orchestrator) *ToolHandler {
	h := &ToolHandler{orchestrator: orchestrator}
	h.tools = map[Operation]toolFunc{
		OpCreateEscalation: h.createEscalation,
		OpAppendNote:       h.appendNote,
		OpHealthCheck:      h.healthCheck,
	}
	return h
}

// Operations lists the supported operation names.
func (h *ToolHandler) Operations() []string {
	ops := make([]string, 0, len(h.tools))
	for op := range h.tools {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)
	return ops
}

// Invoke POST /v1/tools/invoke.
func (h *ToolHandler) Invoke(c *fiber.Ctx) error {
	caller := callerFrom(c)
	var req dto.ToolInvokeRequest
	if err := decodeJSON(caller.Body, &req); err != nil {
		return err
	}
	tool, ok := h.tools[Operation(req.Operation)]
	if !ok {
		return apperrors.NewValidationError("operation", "operation must be one of: "+strings.Join(h.Operations(), ", "))
	}
	return tool(c, caller, req.Arguments)
}

func (h *ToolHandler) createEscalation(c *fiber.Ctx, caller ingest.Caller, args json.RawMessage) error {
	var req dto.EscalationRequest
	if err := decodeJSON(args, &req); err != nil {
		return err
	}
	resp, err := h.orchestrator.Process(c.UserContext(), caller, req.ToIngest(c.Get(HeaderIdempotencyKey)))
	if err != nil {
		return err
	}
	return c.Status(escalationStatus(resp.Created)).JSON(resp)
}

func (h *ToolHandler) appendNote(c *fiber.Ctx, caller ingest.Caller, args json.RawMessage) error {
	var req dto.AppendNoteRequest
	if err := decodeJSON(args, &req); err != nil {
		return err
	}
	if err := h.orchestrator.AppendNote(c.UserContext(), caller, req.ToIngest()); err != nil {
		return err
	}
	return c.JSON(dto.ToolResult{Success: true, Operation: string(OpAppendNote)})
}

func (h *ToolHandler) healthCheck(c *fiber.Ctx, caller ingest.Caller, _ json.RawMessage) error {
	healthy, err := h.orchestrator.HealthCheck(c.UserContext(), caller)
	if err != nil {
		return err
	}
	return c.JSON(dto.ToolResult{Success: true, Operation: string(OpHealthCheck), Healthy: &healthy})
}
