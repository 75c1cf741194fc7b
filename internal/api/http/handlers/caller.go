package handlers

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/helpline-labs/escalation-gateway/internal/auth"
	"github.com/helpline-labs/escalation-gateway/internal/ingest"
	apperrors "github.com/helpline-labs/escalation-gateway/pkg/util"
)

// Request headers understood by the escalation endpoints.
const (
	HeaderClientID       = "X-Client-Id"
	HeaderAPIKey         = "X-Api-Key"
	HeaderSignature      = "X-Signature"
	HeaderTimestamp      = "X-Timestamp"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// callerFrom collects credentials and the raw body of the request.
func callerFrom(c *fiber.Ctx) ingest.Caller {
	creds := auth.Credentials{
		ClientID:  strings.TrimSpace(c.Get(HeaderClientID)),
		Token:     c.Get(HeaderAPIKey),
		Signature: c.Get(HeaderSignature),
		Timestamp: c.Get(HeaderTimestamp),
	}
	if authz := c.Get(fiber.HeaderAuthorization); len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		creds.Bearer = strings.TrimSpace(authz[7:])
	}

	caller := ingest.Caller{
		Credentials: creds,
		Body:        append([]byte(nil), c.Body()...),
		RemoteAddr:  c.IP(),
	}
	if rid, ok := c.Locals("requestid").(string); ok {
		caller.RequestID = rid
	}
	return caller
}

func decodeJSON(raw []byte, out any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewValidationError("body", "invalid JSON payload")
	}
	return nil
}

func escalationStatus(created bool) int {
	if created {
		return fiber.StatusCreated
	}
	return fiber.StatusOK
}
